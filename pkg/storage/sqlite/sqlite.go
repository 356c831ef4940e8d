// Package sqlite implements the record store on a SQLite database. Composite
// indexes are SQL indexes over (partition, sort, id) and pages are read with
// keyset conditions on those columns.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/predicate"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// columns lists the users table columns in Record field order.
var columns = []string{
	domain.FieldID,
	domain.FieldFirstName,
	domain.FieldLastName,
	domain.FieldEmail,
	domain.FieldPhoneNumber,
	domain.FieldAvatar,
	domain.FieldGender,
	domain.FieldJobTitle,
	domain.FieldCompany,
	domain.FieldCity,
	domain.FieldState,
	domain.FieldRole,
	domain.FieldEventsHosted,
	domain.FieldEventsAttended,
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		m[c] = struct{}{}
	}
	return m
}()

// Store is a storage.RecordStore over the users table.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ storage.RecordStore = (*Store)(nil)

// Open creates or opens the database at dsn and applies the schema.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("dsn", dsn))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query reads one index partition ordered by (sort, id). Rows missing the
// sort column are not part of the index.
func (s *Store) Query(ctx context.Context, in storage.QueryInput) (storage.QueryOutput, error) {
	part, sortCol := in.Index.PartitionField, in.Index.SortField
	if err := checkColumns(part, sortCol); err != nil {
		return storage.QueryOutput{}, fmt.Errorf("%w: %s: %v", storage.ErrUnknownIndex, in.Index.Name, err)
	}

	where := []string{quote(part) + " = ?", quote(sortCol) + " IS NOT NULL"}
	args := []interface{}{in.PartitionValue.Interface()}

	cmp, dir := ">", "ASC"
	if !in.Forward {
		cmp, dir = "<", "DESC"
	}
	if in.StartKey != nil {
		where = append(where, fmt.Sprintf("(%s, id) %s (?, ?)", quote(sortCol), cmp))
		args = append(args, in.StartKey.SortValue.Interface(), in.StartKey.ID)
	}
	clauses, filterArgs, err := renderPredicate(in.Filter)
	if err != nil {
		return storage.QueryOutput{}, err
	}
	where = append(where, clauses...)
	args = append(args, filterArgs...)

	q := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY %s %s, id %s",
		strings.Join(columns, ", "), strings.Join(where, " AND "), quote(sortCol), dir, dir)
	q, args = withLimit(q, args, in.Limit)

	items, err := s.selectRecords(ctx, q, args...)
	if err != nil {
		return storage.QueryOutput{}, err
	}

	var out storage.QueryOutput
	out.Items, out.LastKey = trimIndex(items, in, sortCol)
	return out, nil
}

// Scan walks the table in id order.
func (s *Store) Scan(ctx context.Context, in storage.ScanInput) (storage.ScanOutput, error) {
	where, args, err := renderPredicate(in.Filter)
	if err != nil {
		return storage.ScanOutput{}, err
	}
	if in.StartKey != nil {
		where = append([]string{"id > ?"}, where...)
		args = append([]interface{}{in.StartKey.ID}, args...)
	}

	q := "SELECT " + strings.Join(columns, ", ") + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id ASC"
	q, args = withLimit(q, args, in.Limit)

	items, err := s.selectRecords(ctx, q, args...)
	if err != nil {
		return storage.ScanOutput{}, err
	}

	var out storage.ScanOutput
	out.Items = items
	if in.Limit > 0 && len(items) > in.Limit {
		out.Items = items[:in.Limit]
		out.LastKey = &storage.ScanKey{ID: out.Items[in.Limit-1].ID}
	}
	return out, nil
}

var (
	insertSQL = fmt.Sprintf("INSERT INTO users (%s) VALUES (%s)",
		strings.Join(columns, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	upsertSQL = insertSQL + " ON CONFLICT(id) DO UPDATE SET " + func() string {
		set := make([]string, 0, len(columns)-1)
		for _, c := range columns[1:] {
			set = append(set, fmt.Sprintf("%s = excluded.%s", quote(c), quote(c)))
		}
		return strings.Join(set, ", ")
	}()
)

// Put inserts rec or updates the row with rec.ID in place.
func (s *Store) Put(ctx context.Context, rec domain.Record) error {
	if err := s.write(ctx, upsertSQL, rec); err != nil {
		return fmt.Errorf("failed to put record %d: %w", rec.ID, err)
	}
	return nil
}

// Create inserts rec. The primary key rejects a taken id.
func (s *Store) Create(ctx context.Context, rec domain.Record) error {
	if err := s.write(ctx, insertSQL, rec); err != nil {
		return fmt.Errorf("failed to create record %d: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, q string, rec domain.Record) error {
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.FirstName, rec.LastName, rec.Email, rec.PhoneNumber, rec.Avatar, rec.Gender,
		rec.JobTitle, rec.Company, rec.City, rec.State, rec.Role, rec.EventsHosted, rec.EventsAttended,
	)
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", storage.ErrAlreadyExists, err)
		case sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %v", storage.ErrDuplicateEmail, err)
		}
	}
	return err
}

// Get reads the record with id.
func (s *Store) Get(ctx context.Context, id int64) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+strings.Join(columns, ", ")+" FROM users WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("%w: %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	return rec, nil
}

// NextID returns the highest stored id plus one.
func (s *Store) NextID(ctx context.Context) (int64, error) {
	var next int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM users").Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to read max id: %w", err)
	}
	return next, nil
}

func (s *Store) selectRecords(ctx context.Context, q string, args ...interface{}) ([]domain.Record, error) {
	s.logger.Debug("sqlite select", zap.String("sql", q), zap.Int("args", len(args)))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()

	var items []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var rec domain.Record
	err := row.Scan(
		&rec.ID, &rec.FirstName, &rec.LastName, &rec.Email, &rec.PhoneNumber, &rec.Avatar, &rec.Gender,
		&rec.JobTitle, &rec.Company, &rec.City, &rec.State, &rec.Role, &rec.EventsHosted, &rec.EventsAttended,
	)
	return rec, err
}

// withLimit reads one row past limit so callers can tell whether more remain.
func withLimit(q string, args []interface{}, limit int) (string, []interface{}) {
	if limit <= 0 {
		return q, args
	}
	return q + " LIMIT ?", append(args, limit+1)
}

func trimIndex(items []domain.Record, in storage.QueryInput, sortCol string) ([]domain.Record, *storage.IndexKey) {
	if in.Limit <= 0 || len(items) <= in.Limit {
		return items, nil
	}
	items = items[:in.Limit]
	last := items[in.Limit-1]
	sv, _ := last.Value(sortCol)
	return items, &storage.IndexKey{PartitionValue: in.PartitionValue, SortValue: sv, ID: last.ID}
}

// renderPredicate turns p into parameterised SQL conditions.
func renderPredicate(p *predicate.Predicate) ([]string, []interface{}, error) {
	if p.Empty() {
		return nil, nil, nil
	}
	where := make([]string, 0, len(p.Clauses))
	args := make([]interface{}, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		if err := checkColumns(c.Field); err != nil {
			return nil, nil, err
		}
		switch c.Op {
		case predicate.OpEq, predicate.OpGte, predicate.OpLte:
		default:
			return nil, nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
		where = append(where, fmt.Sprintf("%s %s ?", quote(c.Field), c.Op))
		args = append(args, c.Value.Interface())
	}
	return where, args, nil
}

func checkColumns(names ...string) error {
	for _, n := range names {
		if _, ok := known[n]; !ok {
			return fmt.Errorf("unknown column %q", n)
		}
	}
	return nil
}

func quote(col string) string {
	return `"` + col + `"`
}

// CreateIndexes adds an SQL index for every registry index not in the
// embedded schema.
func (s *Store) CreateIndexes(ctx context.Context, reg *schema.Registry) error {
	for _, idx := range reg.Indexes() {
		if err := checkColumns(idx.PartitionField, idx.SortField); err != nil {
			return fmt.Errorf("index %s: %w", idx.Name, err)
		}
		q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON users (%s, %s, id)",
			quote(idx.Name), quote(idx.PartitionField), quote(idx.SortField))
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
	}
	return nil
}
