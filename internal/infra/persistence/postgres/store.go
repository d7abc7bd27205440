// Package postgres provides a PostgreSQL-backed record store and change log
// using the pgx driver through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"pumpcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.RecordStore = (*Store)(nil)
	_ domain.ChangeLog   = (*Store)(nil)
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/pumpcore?sslmode=disable"
)

// sqlOpen is swappable for tests.
var sqlOpen = sql.Open

// Store persists records and audit_trail rows to PostgreSQL, with record
// payloads held as JSONB.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection using the provided DSN (falls back to
// defaultDSN) and ensures the schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sqlOpen(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			record_id BIGINT PRIMARY KEY,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_trail (
			id TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			record_id BIGINT NOT NULL,
			operation TEXT NOT NULL,
			old_data JSONB,
			new_data JSONB,
			modified_by TEXT NOT NULL,
			modified_at TIMESTAMPTZ NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS audit_trail_modified_at_idx ON audit_trail(modified_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	prev := sqlOpen
	sqlOpen = fn
	return func() { sqlOpen = prev }
}

// Insert stores a new record; identifier collisions surface as
// ErrRecordExists through the primary key constraint.
func (s *Store) Insert(ctx context.Context, record domain.Record) (domain.Record, error) {
	payload, err := domain.EncodeSnapshot(record.Fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode record: %w", err)
	}
	if payload == nil {
		payload = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records(record_id, payload) VALUES($1, $2)`, record.RecordID, payload)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Record{}, domain.ErrRecordExists
		}
		return domain.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return record.Clone(), nil
}

// Update replaces the record's field set.
func (s *Store) Update(ctx context.Context, id int64, fields domain.Snapshot) (domain.Record, error) {
	payload, err := domain.EncodeSnapshot(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode record: %w", err)
	}
	if payload == nil {
		payload = []byte("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET payload = $1 WHERE record_id = $2`, payload, id)
	if err != nil {
		return domain.Record{}, fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Record{}, err
	}
	if affected == 0 {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return domain.Record{RecordID: id, Fields: fields.Clone()}, nil
}

// Delete removes a record and returns its prior state.
func (s *Store) Delete(ctx context.Context, id int64) (domain.Record, error) {
	prior, err := s.Get(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_id = $1`, id); err != nil {
		return domain.Record{}, fmt.Errorf("delete record: %w", err)
	}
	return prior, nil
}

// DeleteMany removes the given records, returning the prior state of each
// one that existed.
func (s *Store) DeleteMany(ctx context.Context, ids []int64) ([]domain.Record, error) {
	removed := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		prior, err := s.Delete(ctx, id)
		if errors.Is(err, domain.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed = append(removed, prior)
	}
	return removed, nil
}

// Get retrieves a record by identifier.
func (s *Store) Get(ctx context.Context, id int64) (domain.Record, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE record_id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("select record: %w", err)
	}
	fields, err := domain.DecodeSnapshot(payload)
	if err != nil {
		return domain.Record{}, fmt.Errorf("decode record %d: %w", id, err)
	}
	return domain.Record{RecordID: id, Fields: fields}, nil
}

// List returns records matching the options, ordered by identifier.
func (s *Store) List(ctx context.Context, opts domain.ListOptions) ([]domain.Record, error) {
	order := "ASC"
	if opts.Descending {
		order = "DESC"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, payload FROM records ORDER BY record_id `+order)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Record
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		fields, err := domain.DecodeSnapshot(payload)
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", id, err)
		}
		record := domain.Record{RecordID: id, Fields: fields}
		if matchesFilter(record, opts.Filter) {
			out = append(out, record)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return page(out, opts.Offset, opts.Limit), nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// MaxRecordID returns the highest assigned identifier.
func (s *Store) MaxRecordID(ctx context.Context) (int64, bool, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(record_id) FROM records`).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("max record id: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return max.Int64, true, nil
}

// Append writes an audit_trail row; the table is append-only.
func (s *Store) Append(ctx context.Context, entry domain.ChangeEntry) error {
	oldData, err := domain.EncodeSnapshot(entry.OldData)
	if err != nil {
		return fmt.Errorf("encode old snapshot: %w", err)
	}
	newData, err := domain.EncodeSnapshot(entry.NewData)
	if err != nil {
		return fmt.Errorf("encode new snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_trail(id, table_name, record_id, operation, old_data, new_data, modified_by, modified_at, description)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.TableName, entry.RecordID, string(entry.Operation),
		oldData, newData, entry.ModifiedBy, entry.ModifiedAt, entry.Description)
	if err != nil {
		return fmt.Errorf("append change entry: %w", err)
	}
	return nil
}

// ListChanges returns matching audit_trail rows ordered most-recent-first.
func (s *Store) ListChanges(ctx context.Context, filter domain.ChangeFilter) ([]domain.ChangeEntry, error) {
	query := `SELECT id, table_name, record_id, operation, old_data, new_data, modified_by, modified_at, description
		FROM audit_trail`
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Table != "" {
		conds = append(conds, "table_name = "+arg(filter.Table))
	}
	if filter.Actor != "" {
		conds = append(conds, "modified_by = "+arg(filter.Actor))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "modified_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "modified_at < "+arg(filter.To))
	}
	if len(filter.Operations) > 0 {
		ops := make([]string, 0, len(filter.Operations))
		for _, op := range filter.Operations {
			ops = append(ops, arg(string(op)))
		}
		conds = append(conds, "operation IN ("+strings.Join(ops, ", ")+")")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY modified_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ChangeEntry
	for rows.Next() {
		var entry domain.ChangeEntry
		var op string
		var oldData, newData []byte
		var modifiedAt time.Time
		if err := rows.Scan(&entry.ID, &entry.TableName, &entry.RecordID, &op,
			&oldData, &newData, &entry.ModifiedBy, &modifiedAt, &entry.Description); err != nil {
			return nil, fmt.Errorf("scan change entry: %w", err)
		}
		entry.Operation = domain.Operation(op)
		entry.ModifiedAt = modifiedAt
		if entry.OldData, err = domain.DecodeSnapshot(oldData); err != nil {
			return nil, fmt.Errorf("decode old snapshot: %w", err)
		}
		if entry.NewData, err = domain.DecodeSnapshot(newData); err != nil {
			return nil, fmt.Errorf("decode new snapshot: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit trail: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	// 23505 is unique_violation; pgx surfaces the SQLSTATE in the message
	// when used through database/sql.
	return err != nil && strings.Contains(err.Error(), "23505")
}

func matchesFilter(record domain.Record, filter domain.Snapshot) bool {
	for field, want := range filter {
		got, ok := record.Fields.Get(field)
		if field == domain.RecordIDField {
			got, ok = domain.Int(record.RecordID), true
		}
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

func page(records []domain.Record, offset, limit int) []domain.Record {
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
