package domain

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned when an identifier resolves to no record.
var ErrRecordNotFound = errors.New("record not found")

// ErrRecordExists is returned when an insert collides with an existing
// identifier. With the best-effort max+1 allocator this is how a lost
// allocation race surfaces instead of silently overwriting.
var ErrRecordExists = errors.New("record already exists")

// ListOptions narrows and orders a record listing. The zero value lists
// everything ordered by ascending identifier.
type ListOptions struct {
	// Filter keeps only records whose named fields equal the given values.
	Filter Snapshot
	// Descending reverses the identifier ordering.
	Descending bool
	// Offset/Limit page through results. Limit 0 means no limit.
	Offset int
	Limit  int
}

// RecordStore is the synchronous persistence surface for the managed record
// set. Implementations mirror the hosted backend's select/insert/update/
// delete/count query forms.
type RecordStore interface {
	Insert(ctx context.Context, record Record) (Record, error)
	// Update replaces the record's field set. Callers follow the
	// read-old-then-write-new pattern; there is no version check.
	Update(ctx context.Context, id int64, fields Snapshot) (Record, error)
	// Delete removes a record and returns its prior state for change capture.
	Delete(ctx context.Context, id int64) (Record, error)
	DeleteMany(ctx context.Context, ids []int64) ([]Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Count(ctx context.Context) (int64, error)
	// MaxRecordID returns the highest assigned identifier; ok is false when
	// the record set is empty.
	MaxRecordID(ctx context.Context) (int64, bool, error)
}

// ChangeFilter narrows a change log listing. Zero fields match everything.
type ChangeFilter struct {
	Table      string
	Actor      string
	From       time.Time // inclusive
	To         time.Time // exclusive
	Operations []Operation
}

// Matches reports whether an entry satisfies the filter.
func (f ChangeFilter) Matches(e ChangeEntry) bool {
	if f.Table != "" && e.TableName != f.Table {
		return false
	}
	if f.Actor != "" && e.ModifiedBy != f.Actor {
		return false
	}
	if !f.From.IsZero() && e.ModifiedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.ModifiedAt.Before(f.To) {
		return false
	}
	if len(f.Operations) > 0 {
		found := false
		for _, op := range f.Operations {
			if e.Operation == op {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ChangeLog is the append-only persistence surface for change entries.
// There is deliberately no update or delete: entries are immutable and
// outlive the records they describe.
type ChangeLog interface {
	Append(ctx context.Context, entry ChangeEntry) error
	// ListChanges returns matching entries ordered most-recent-first.
	ListChanges(ctx context.Context, filter ChangeFilter) ([]ChangeEntry, error)
}
