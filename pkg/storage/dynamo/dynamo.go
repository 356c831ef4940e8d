// Package dynamo implements the record store on AWS DynamoDB. Composite
// indexes map onto global secondary indexes and predicates onto key
// condition and filter expressions.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/predicate"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the part of the DynamoDB client the store calls.
type API interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Store is a storage.RecordStore over one DynamoDB table. Query and Scan
// limits count evaluated items, so a page may come back short while still
// carrying a LastKey.
type Store struct {
	client   API
	table    string
	registry *schema.Registry
	logger   *zap.Logger
}

var _ storage.RecordStore = (*Store)(nil)

type Option func(*Store)

func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

func WithRegistry(registry *schema.Registry) Option {
	return func(s *Store) {
		if registry != nil {
			s.registry = registry
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps client. The table defaults to the users table.
func New(client API, opts ...Option) *Store {
	s := &Store{
		client:   client,
		table:    schema.UsersTable,
		registry: schema.Users(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient loads the default AWS configuration for region. A non-empty
// endpoint overrides the service endpoint, e.g. for DynamoDB Local.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Query reads one GSI partition. Residual clauses on the index sort field
// become part of the key condition; the rest become a filter expression.
func (s *Store) Query(ctx context.Context, in storage.QueryInput) (storage.QueryOutput, error) {
	keyCond := expression.Key(in.Index.PartitionField).Equal(expression.Value(in.PartitionValue.Interface()))
	onSort, rest := in.Filter.Split(in.Index.SortField)
	if sortCond, ok := sortKeyCondition(in.Index.SortField, onSort); ok {
		keyCond = keyCond.And(sortCond)
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if cond, ok := filterCondition(rest); ok {
		builder = builder.WithFilter(cond)
	}
	expr, err := builder.Build()
	if err != nil {
		return storage.QueryOutput{}, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(in.Index.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(in.Forward),
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(int32(in.Limit))
	}
	if in.StartKey != nil {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			domain.FieldID:          idAttr(in.StartKey.ID),
			in.Index.PartitionField: attr(in.PartitionValue),
			in.Index.SortField:      attr(in.StartKey.SortValue),
		}
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return storage.QueryOutput{}, fmt.Errorf("dynamodb query on %s: %w", in.Index.Name, err)
	}

	var out storage.QueryOutput
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &out.Items); err != nil {
		return storage.QueryOutput{}, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	if len(result.LastEvaluatedKey) > 0 {
		key, err := s.indexKey(in.Index, result.LastEvaluatedKey)
		if err != nil {
			return storage.QueryOutput{}, err
		}
		out.LastKey = key
	}

	s.logger.Debug("dynamodb query",
		zap.String("index", in.Index.Name),
		zap.Int32("scanned", result.ScannedCount),
		zap.Int("returned", len(out.Items)),
		zap.Bool("more", out.LastKey != nil),
	)
	return out, nil
}

// Scan walks the table with the predicate as a filter expression.
func (s *Store) Scan(ctx context.Context, in storage.ScanInput) (storage.ScanOutput, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	if cond, ok := filterCondition(in.Filter); ok {
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return storage.ScanOutput{}, fmt.Errorf("failed to build scan expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(int32(in.Limit))
	}
	if in.StartKey != nil {
		input.ExclusiveStartKey = map[string]types.AttributeValue{domain.FieldID: idAttr(in.StartKey.ID)}
	}

	result, err := s.client.Scan(ctx, input)
	if err != nil {
		return storage.ScanOutput{}, fmt.Errorf("dynamodb scan: %w", err)
	}

	var out storage.ScanOutput
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &out.Items); err != nil {
		return storage.ScanOutput{}, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	if len(result.LastEvaluatedKey) > 0 {
		id, err := idOf(result.LastEvaluatedKey)
		if err != nil {
			return storage.ScanOutput{}, err
		}
		out.LastKey = &storage.ScanKey{ID: id}
	}
	return out, nil
}

// Put writes rec, replacing any item with the same id.
func (s *Store) Put(ctx context.Context, rec domain.Record) error {
	return s.put(ctx, rec, false)
}

// Create writes rec on the condition that no item has its id.
func (s *Store) Create(ctx context.Context, rec domain.Record) error {
	return s.put(ctx, rec, true)
}

func (s *Store) put(ctx context.Context, rec domain.Record, create bool) error {
	if err := s.checkEmail(ctx, rec); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %d: %w", rec.ID, err)
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}
	if create {
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeNotExists(expression.Name(domain.FieldID))).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build put condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return fmt.Errorf("%w: %d", storage.ErrAlreadyExists, rec.ID)
		}
		return fmt.Errorf("dynamodb put %d: %w", rec.ID, err)
	}
	return nil
}

// checkEmail scans for another item holding rec's email. DynamoDB has no
// unique constraint besides the key, and the comparison is exact.
func (s *Store) checkEmail(ctx context.Context, rec domain.Record) error {
	if rec.Email == nil {
		return nil
	}
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name(domain.FieldEmail).Equal(expression.Value(*rec.Email))).
		WithProjection(expression.NamesList(expression.Name(domain.FieldID))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build email filter: %w", err)
	}

	var start map[string]types.AttributeValue
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.table),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return fmt.Errorf("dynamodb scan email: %w", err)
		}
		for _, item := range result.Items {
			id, err := idOf(item)
			if err != nil {
				return err
			}
			if id != rec.ID {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateEmail, *rec.Email)
			}
		}
		if len(result.LastEvaluatedKey) == 0 {
			return nil
		}
		start = result.LastEvaluatedKey
	}
}

// Get reads the record with id.
func (s *Store) Get(ctx context.Context, id int64) (domain.Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       map[string]types.AttributeValue{domain.FieldID: idAttr(id)},
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("dynamodb get %d: %w", id, err)
	}
	if len(result.Item) == 0 {
		return domain.Record{}, fmt.Errorf("%w: %d", storage.ErrNotFound, id)
	}
	var rec domain.Record
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return domain.Record{}, fmt.Errorf("failed to unmarshal record %d: %w", id, err)
	}
	return rec, nil
}

// NextID scans the id attribute of the whole table and returns the highest
// id plus one. The id is not reserved; concurrent creators may collide.
func (s *Store) NextID(ctx context.Context) (int64, error) {
	expr, err := expression.NewBuilder().
		WithProjection(expression.NamesList(expression.Name(domain.FieldID))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build projection: %w", err)
	}

	var (
		maxID int64
		start map[string]types.AttributeValue
	)
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(s.table),
			ProjectionExpression:     expr.Projection(),
			ExpressionAttributeNames: expr.Names(),
			ExclusiveStartKey:        start,
		})
		if err != nil {
			return 0, fmt.Errorf("dynamodb scan ids: %w", err)
		}
		for _, item := range result.Items {
			id, err := idOf(item)
			if err != nil {
				return 0, err
			}
			if id > maxID {
				maxID = id
			}
		}
		if len(result.LastEvaluatedKey) == 0 {
			return maxID + 1, nil
		}
		start = result.LastEvaluatedKey
	}
}

// CreateTable creates the table keyed by id with one GSI per registry index.
// An existing table is not an error.
func (s *Store) CreateTable(ctx context.Context) error {
	attrs := map[string]types.ScalarAttributeType{domain.FieldID: types.ScalarAttributeTypeN}
	var gsis []types.GlobalSecondaryIndex
	for _, idx := range s.registry.Indexes() {
		attrs[idx.PartitionField] = s.attrType(idx.PartitionField)
		attrs[idx.SortField] = s.attrType(idx.SortField)
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName: aws.String(idx.Name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(idx.PartitionField), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(idx.SortField), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	defs := make([]types.AttributeDefinition, 0, len(attrs))
	for _, name := range sortedKeys(attrs) {
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: attrs[name],
		})
	}

	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:              aws.String(s.table),
		AttributeDefinitions:   defs,
		KeySchema:              []types.KeySchemaElement{{AttributeName: aws.String(domain.FieldID), KeyType: types.KeyTypeHash}},
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			s.logger.Info("table already exists", zap.String("table", s.table))
			return nil
		}
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	s.logger.Info("table created", zap.String("table", s.table), zap.Int("indexes", len(gsis)))
	return nil
}

func (s *Store) attrType(field string) types.ScalarAttributeType {
	if f, ok := s.registry.Field(field); ok && f.Type == schema.FieldTypeInteger {
		return types.ScalarAttributeTypeN
	}
	return types.ScalarAttributeTypeS
}

func (s *Store) indexKey(idx schema.IndexDescriptor, key map[string]types.AttributeValue) (*storage.IndexKey, error) {
	id, err := idOf(key)
	if err != nil {
		return nil, err
	}
	pv, err := valueOf(key[idx.PartitionField])
	if err != nil {
		return nil, fmt.Errorf("last key %s: %w", idx.PartitionField, err)
	}
	sv, err := valueOf(key[idx.SortField])
	if err != nil {
		return nil, fmt.Errorf("last key %s: %w", idx.SortField, err)
	}
	return &storage.IndexKey{PartitionValue: pv, SortValue: sv, ID: id}, nil
}

// sortKeyCondition folds the clauses on the sort key into one key
// condition: equality, a single bound, or BETWEEN for both bounds.
func sortKeyCondition(field string, clauses []predicate.Clause) (expression.KeyConditionBuilder, bool) {
	var eq, lo, hi *domain.Value
	for i := range clauses {
		c := clauses[i]
		switch c.Op {
		case predicate.OpEq:
			eq = &c.Value
		case predicate.OpGte:
			lo = &c.Value
		case predicate.OpLte:
			hi = &c.Value
		}
	}
	key := expression.Key(field)
	switch {
	case eq != nil:
		return key.Equal(expression.Value(eq.Interface())), true
	case lo != nil && hi != nil:
		return key.Between(expression.Value(lo.Interface()), expression.Value(hi.Interface())), true
	case lo != nil:
		return key.GreaterThanEqual(expression.Value(lo.Interface())), true
	case hi != nil:
		return key.LessThanEqual(expression.Value(hi.Interface())), true
	}
	return expression.KeyConditionBuilder{}, false
}

// filterCondition renders p as an AND of comparisons.
func filterCondition(p *predicate.Predicate) (expression.ConditionBuilder, bool) {
	if p.Empty() {
		return expression.ConditionBuilder{}, false
	}
	var cond expression.ConditionBuilder
	for i, c := range p.Clauses {
		name, value := expression.Name(c.Field), expression.Value(c.Value.Interface())
		var next expression.ConditionBuilder
		switch c.Op {
		case predicate.OpGte:
			next = name.GreaterThanEqual(value)
		case predicate.OpLte:
			next = name.LessThanEqual(value)
		default:
			next = name.Equal(value)
		}
		if i == 0 {
			cond = next
		} else {
			cond = cond.And(next)
		}
	}
	return cond, true
}

func attr(v domain.Value) types.AttributeValue {
	if v.Kind == domain.KindInteger {
		return idAttr(v.Int)
	}
	return &types.AttributeValueMemberS{Value: v.Str}
}

func idAttr(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func valueOf(av types.AttributeValue) (domain.Value, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return domain.StringValue(v.Value), nil
	case *types.AttributeValueMemberN:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("non-integer number %q: %w", v.Value, err)
		}
		return domain.IntValue(n), nil
	case nil:
		return domain.Value{}, errors.New("missing attribute")
	default:
		return domain.Value{}, fmt.Errorf("unsupported attribute type %T", av)
	}
}

func idOf(item map[string]types.AttributeValue) (int64, error) {
	v, err := valueOf(item[domain.FieldID])
	if err != nil {
		return 0, fmt.Errorf("item id: %w", err)
	}
	if v.Kind != domain.KindInteger {
		return 0, fmt.Errorf("item id: expected number, got %s", v.Kind)
	}
	return v.Int, nil
}

func sortedKeys(m map[string]types.ScalarAttributeType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
