// Package sqlite persists the record set and audit trail to an embedded
// SQLite database using the pure-Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"pumpcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.RecordStore = (*Store)(nil)
	_ domain.ChangeLog   = (*Store)(nil)
)

// timeFormat is the stored modified_at layout: UTC with a fixed-width
// fractional second, so TEXT comparison and ORDER BY are chronological
// regardless of the civil timezone the entry was stamped in.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists records as JSON payloads keyed by identifier and change
// entries as append-only audit_trail rows.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "pumpcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			record_id INTEGER PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_trail (
			id TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			record_id INTEGER NOT NULL,
			operation TEXT NOT NULL,
			old_data BLOB,
			new_data BLOB,
			modified_by TEXT NOT NULL,
			modified_at TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS audit_trail_modified_at ON audit_trail(modified_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert stores a new record. The primary key constraint turns a lost
// allocation race into ErrRecordExists instead of a silent overwrite.
func (s *Store) Insert(ctx context.Context, record domain.Record) (domain.Record, error) {
	payload, err := domain.EncodeSnapshot(record.Fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode record: %w", err)
	}
	if payload == nil {
		payload = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records(record_id, payload) VALUES(?, ?)`, record.RecordID, payload)
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
		`UPDATE records SET payload = ? WHERE record_id = ?`, payload, id)
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_id = ?`, id); err != nil {
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
		`SELECT payload FROM records WHERE record_id = ?`, id).Scan(&payload)
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

// List returns records matching the options, ordered by identifier. Field
// filtering happens over the decoded payloads; callers treat the result as
// a snapshot, not a live view.
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

// Append writes an audit_trail row. There is no corresponding update or
// delete statement anywhere in this package.
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
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TableName, entry.RecordID, string(entry.Operation),
		oldData, newData, entry.ModifiedBy,
		entry.ModifiedAt.UTC().Format(timeFormat), entry.Description)
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
	if filter.Table != "" {
		conds = append(conds, "table_name = ?")
		args = append(args, filter.Table)
	}
	if filter.Actor != "" {
		conds = append(conds, "modified_by = ?")
		args = append(args, filter.Actor)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "modified_at >= ?")
		args = append(args, filter.From.UTC().Format(timeFormat))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "modified_at < ?")
		args = append(args, filter.To.UTC().Format(timeFormat))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY modified_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ChangeEntry
	for rows.Next() {
		entry, err := scanChangeEntry(rows)
		if err != nil {
			return nil, err
		}
		// Operation filtering stays in Go: the closed set is tiny and the
		// timestamp columns are stored as text, not as an enum.
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit trail: %w", err)
	}
	return out, nil
}

func scanChangeEntry(rows *sql.Rows) (domain.ChangeEntry, error) {
	var entry domain.ChangeEntry
	var op, modifiedAt string
	var oldData, newData []byte
	if err := rows.Scan(&entry.ID, &entry.TableName, &entry.RecordID, &op,
		&oldData, &newData, &entry.ModifiedBy, &modifiedAt, &entry.Description); err != nil {
		return domain.ChangeEntry{}, fmt.Errorf("scan change entry: %w", err)
	}
	entry.Operation = domain.Operation(op)
	ts, err := time.Parse(time.RFC3339Nano, modifiedAt)
	if err != nil {
		return domain.ChangeEntry{}, fmt.Errorf("parse modified_at %q: %w", modifiedAt, err)
	}
	entry.ModifiedAt = ts
	if entry.OldData, err = domain.DecodeSnapshot(oldData); err != nil {
		return domain.ChangeEntry{}, fmt.Errorf("decode old snapshot: %w", err)
	}
	if entry.NewData, err = domain.DecodeSnapshot(newData); err != nil {
		return domain.ChangeEntry{}, fmt.Errorf("decode new snapshot: %w", err)
	}
	return entry, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text;
	// the driver does not expose a typed error for them.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
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
