package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/predicate"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	queryIn  *dynamodb.QueryInput
	queryOut *dynamodb.QueryOutput
	scanIns  []*dynamodb.ScanInput
	scanOuts []*dynamodb.ScanOutput
	putIn    *dynamodb.PutItemInput
	putErr   error
	getOut   *dynamodb.GetItemOutput
	createIn *dynamodb.CreateTableInput
	err      error
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.queryOut, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanIns = append(f.scanIns, in)
	if f.err != nil {
		return nil, f.err
	}
	out := f.scanOuts[0]
	f.scanOuts = f.scanOuts[1:]
	return out, nil
}

func (f *fakeAPI) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getOut, f.err
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putIn = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, f.err
}

func (f *fakeAPI) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.createIn = in
	return &dynamodb.CreateTableOutput{}, f.err
}

func item(t *testing.T, rec domain.Record) map[string]types.AttributeValue {
	t.Helper()
	m, err := attributevalue.MarshalMap(rec)
	require.NoError(t, err)
	return m
}

func nameValues(names map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, v := range names {
		out = append(out, v)
	}
	return out
}

func byCompany(t *testing.T) schema.IndexDescriptor {
	idx, ok := schema.Users().IndexByName(schema.IndexCompanyJobTitle)
	require.True(t, ok)
	return idx
}

func TestStore_Query(t *testing.T) {
	carol := domain.Record{ID: 3, Company: domain.StringPtr("Acme Corp"), JobTitle: domain.StringPtr("Designer")}
	api := &fakeAPI{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{item(t, carol)},
		LastEvaluatedKey: map[string]types.AttributeValue{
			"id":        &types.AttributeValueMemberN{Value: "3"},
			"company":   &types.AttributeValueMemberS{Value: "Acme Corp"},
			"job_title": &types.AttributeValueMemberS{Value: "Designer"},
		},
	}}
	s := New(api, WithTable("users-test"))

	out, err := s.Query(context.Background(), storage.QueryInput{
		Index:          byCompany(t),
		PartitionValue: domain.StringValue("Acme Corp"),
		Forward:        false,
		Limit:          3,
		StartKey:       &storage.IndexKey{SortValue: domain.StringValue("Manager"), ID: 7},
		Filter: predicate.Build(domain.FilterSet{
			"city": domain.Eq(domain.StringValue("Boston")),
		}),
	})
	require.NoError(t, err)

	in := api.queryIn
	assert.Equal(t, "users-test", aws.ToString(in.TableName))
	assert.Equal(t, schema.IndexCompanyJobTitle, aws.ToString(in.IndexName))
	assert.False(t, aws.ToBool(in.ScanIndexForward))
	assert.Equal(t, int32(3), aws.ToInt32(in.Limit))
	assert.NotNil(t, in.KeyConditionExpression)
	assert.NotNil(t, in.FilterExpression)
	assert.ElementsMatch(t, []string{"company", "city"}, nameValues(in.ExpressionAttributeNames))
	assert.Equal(t, map[string]types.AttributeValue{
		"id":        &types.AttributeValueMemberN{Value: "7"},
		"company":   &types.AttributeValueMemberS{Value: "Acme Corp"},
		"job_title": &types.AttributeValueMemberS{Value: "Manager"},
	}, in.ExclusiveStartKey)

	assert.Equal(t, []domain.Record{carol}, out.Items)
	assert.Equal(t, &storage.IndexKey{
		PartitionValue: domain.StringValue("Acme Corp"),
		SortValue:      domain.StringValue("Designer"),
		ID:             3,
	}, out.LastKey)
}

func TestStore_QuerySortKeyClausesBecomeKeyCondition(t *testing.T) {
	api := &fakeAPI{queryOut: &dynamodb.QueryOutput{}}
	s := New(api)

	_, err := s.Query(context.Background(), storage.QueryInput{
		Index:          byCompany(t),
		PartitionValue: domain.StringValue("Acme Corp"),
		Forward:        true,
		Filter: predicate.Build(domain.FilterSet{
			"job_title": domain.Eq(domain.StringValue("Designer")),
		}),
	})
	require.NoError(t, err)
	assert.Nil(t, api.queryIn.FilterExpression)
	assert.Nil(t, api.queryIn.Limit)
	assert.Nil(t, api.queryIn.ExclusiveStartKey)
	assert.ElementsMatch(t, []string{"company", "job_title"}, nameValues(api.queryIn.ExpressionAttributeNames))
}

func TestStore_QueryError(t *testing.T) {
	boom := errors.New("throttled")
	s := New(&fakeAPI{err: boom})
	_, err := s.Query(context.Background(), storage.QueryInput{
		Index:          byCompany(t),
		PartitionValue: domain.StringValue("Acme Corp"),
	})
	assert.ErrorIs(t, err, boom)
}

func TestStore_Scan(t *testing.T) {
	api := &fakeAPI{scanOuts: []*dynamodb.ScanOutput{{
		Items: []map[string]types.AttributeValue{
			item(t, domain.Record{ID: 5, EventsHosted: domain.Int64Ptr(2)}),
		},
		LastEvaluatedKey: map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: "9"}},
	}}}
	s := New(api)

	out, err := s.Scan(context.Background(), storage.ScanInput{
		Filter:   predicate.Build(domain.FilterSet{"events_hosted": domain.Between(domain.Int64Ptr(1), domain.Int64Ptr(3))}),
		Limit:    4,
		StartKey: &storage.ScanKey{ID: 2},
	})
	require.NoError(t, err)

	in := api.scanIns[0]
	assert.NotNil(t, in.FilterExpression)
	assert.Len(t, in.ExpressionAttributeValues, 2)
	assert.Equal(t, int32(4), aws.ToInt32(in.Limit))
	assert.Equal(t, map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: "2"}}, in.ExclusiveStartKey)

	assert.Equal(t, []int64{5}, []int64{out.Items[0].ID})
	assert.Equal(t, &storage.ScanKey{ID: 9}, out.LastKey)
}

func TestStore_ScanWithoutFilter(t *testing.T) {
	api := &fakeAPI{scanOuts: []*dynamodb.ScanOutput{{}}}
	out, err := New(api).Scan(context.Background(), storage.ScanInput{})
	require.NoError(t, err)
	assert.Nil(t, api.scanIns[0].FilterExpression)
	assert.Nil(t, out.LastKey)
	assert.Empty(t, out.Items)
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	rec := domain.Record{ID: 11, FirstName: domain.StringPtr("Kim"), EventsAttended: domain.Int64Ptr(3)}

	api := &fakeAPI{}
	s := New(api)
	require.NoError(t, s.Put(ctx, rec))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "11"}, api.putIn.Item["id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Kim"}, api.putIn.Item["first_name"])
	assert.NotContains(t, api.putIn.Item, "company", "absent attributes are omitted")

	api.getOut = &dynamodb.GetItemOutput{Item: api.putIn.Item}
	got, err := s.Get(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	api.getOut = &dynamodb.GetItemOutput{}
	_, err = s.Get(ctx, 12)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()
	idItem := func(n string) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: n}}
	}
	rec := domain.Record{ID: 11, FirstName: domain.StringPtr("Kim"), Email: domain.StringPtr("kim@example.com")}

	t.Run("conditional on a free id", func(t *testing.T) {
		api := &fakeAPI{scanOuts: []*dynamodb.ScanOutput{{}}}
		require.NoError(t, New(api).Create(ctx, rec))

		require.Len(t, api.scanIns, 1)
		assert.Contains(t, nameValues(api.scanIns[0].ExpressionAttributeNames), "email")
		require.NotNil(t, api.putIn.ConditionExpression)
		assert.Contains(t, aws.ToString(api.putIn.ConditionExpression), "attribute_not_exists")
		assert.Contains(t, nameValues(api.putIn.ExpressionAttributeNames), "id")
	})

	t.Run("taken id", func(t *testing.T) {
		api := &fakeAPI{
			scanOuts: []*dynamodb.ScanOutput{{}},
			putErr:   &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")},
		}
		assert.ErrorIs(t, New(api).Create(ctx, rec), storage.ErrAlreadyExists)
	})

	t.Run("email held by another id", func(t *testing.T) {
		api := &fakeAPI{scanOuts: []*dynamodb.ScanOutput{
			{LastEvaluatedKey: idItem("5")},
			{Items: []map[string]types.AttributeValue{idItem("3")}},
		}}
		assert.ErrorIs(t, New(api).Create(ctx, rec), storage.ErrDuplicateEmail)
		assert.Len(t, api.scanIns, 2)
		assert.Nil(t, api.putIn)
	})

	t.Run("replace keeps its own email", func(t *testing.T) {
		api := &fakeAPI{scanOuts: []*dynamodb.ScanOutput{{Items: []map[string]types.AttributeValue{idItem("11")}}}}
		require.NoError(t, New(api).Put(ctx, rec))
		assert.Nil(t, api.putIn.ConditionExpression)
	})
}

func TestStore_NextID(t *testing.T) {
	id := func(n string) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: n}}
	}
	api := &fakeAPI{scanOuts: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{id("4"), id("17")}, LastEvaluatedKey: id("17")},
		{Items: []map[string]types.AttributeValue{id("9")}},
	}}

	next, err := New(api).NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(18), next)
	require.Len(t, api.scanIns, 2)
	assert.NotNil(t, api.scanIns[0].ProjectionExpression)
	assert.Equal(t, id("17"), api.scanIns[1].ExclusiveStartKey)
}

func TestStore_CreateTable(t *testing.T) {
	api := &fakeAPI{}
	s := New(api)
	require.NoError(t, s.CreateTable(context.Background()))

	in := api.createIn
	assert.Equal(t, schema.UsersTable, aws.ToString(in.TableName))
	assert.Equal(t, types.BillingModePayPerRequest, in.BillingMode)
	require.Len(t, in.KeySchema, 1)
	assert.Equal(t, "id", aws.ToString(in.KeySchema[0].AttributeName))

	defs := map[string]types.ScalarAttributeType{}
	for _, d := range in.AttributeDefinitions {
		defs[aws.ToString(d.AttributeName)] = d.AttributeType
	}
	assert.Equal(t, map[string]types.ScalarAttributeType{
		"id":        types.ScalarAttributeTypeN,
		"company":   types.ScalarAttributeTypeS,
		"job_title": types.ScalarAttributeTypeS,
	}, defs)

	require.Len(t, in.GlobalSecondaryIndexes, 2)
	names := []string{
		aws.ToString(in.GlobalSecondaryIndexes[0].IndexName),
		aws.ToString(in.GlobalSecondaryIndexes[1].IndexName),
	}
	assert.Equal(t, []string{schema.IndexCompanyJobTitle, schema.IndexJobTitleCompany}, names)
	assert.Equal(t, types.ProjectionTypeAll, in.GlobalSecondaryIndexes[0].Projection.ProjectionType)
}

func TestStore_CreateTableExists(t *testing.T) {
	s := New(&fakeAPI{err: &types.ResourceInUseException{Message: aws.String("Table already exists")}})
	assert.NoError(t, s.CreateTable(context.Background()))

	boom := errors.New("access denied")
	s = New(&fakeAPI{err: boom})
	assert.ErrorIs(t, s.CreateTable(context.Background()), boom)
}
