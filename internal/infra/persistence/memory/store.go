// Package memory provides an in-memory record store and change log used by
// tests and as the ephemeral driver.
package memory

import (
	"context"
	"sort"
	"sync"

	"pumpcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.RecordStore = (*Store)(nil)
	_ domain.ChangeLog   = (*Store)(nil)
)

// Store keeps records and change entries in process memory behind a mutex.
// All reads and writes hand out defensive clones; callers hold snapshots,
// never live views.
type Store struct {
	mu      sync.RWMutex
	records map[int64]domain.Record
	entries []domain.ChangeEntry
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{records: make(map[int64]domain.Record)}
}

// Insert stores a new record, rejecting identifier collisions.
func (s *Store) Insert(_ context.Context, record domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.RecordID]; exists {
		return domain.Record{}, domain.ErrRecordExists
	}
	s.records[record.RecordID] = record.Clone()
	return record.Clone(), nil
}

// Update replaces the record's field set.
func (s *Store) Update(_ context.Context, id int64, fields domain.Snapshot) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	updated := domain.Record{RecordID: id, Fields: fields.Clone()}
	s.records[id] = updated
	return updated.Clone(), nil
}

// Delete removes a record and returns its prior state.
func (s *Store) Delete(_ context.Context, id int64) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior, ok := s.records[id]
	if !ok {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	delete(s.records, id)
	return prior.Clone(), nil
}

// DeleteMany removes the given records, returning the prior state of each
// one that existed. Unknown identifiers are skipped, not errors.
func (s *Store) DeleteMany(_ context.Context, ids []int64) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		if prior, ok := s.records[id]; ok {
			delete(s.records, id)
			removed = append(removed, prior.Clone())
		}
	}
	return removed, nil
}

// Get retrieves a record by identifier.
func (s *Store) Get(_ context.Context, id int64) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return record.Clone(), nil
}

// List returns records matching the options, ordered by identifier.
func (s *Store) List(_ context.Context, opts domain.ListOptions) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, 0, len(s.records))
	for _, record := range s.records {
		if matchesFilter(record, opts.Filter) {
			out = append(out, record.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.Descending {
			return out[i].RecordID > out[j].RecordID
		}
		return out[i].RecordID < out[j].RecordID
	})
	return page(out, opts.Offset, opts.Limit), nil
}

// Count returns the number of stored records.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// MaxRecordID returns the highest assigned identifier; ok is false when the
// record set is empty.
func (s *Store) MaxRecordID(_ context.Context) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return 0, false, nil
	}
	var max int64
	for id := range s.records {
		if id > max {
			max = id
		}
	}
	return max, true, nil
}

// Append stores a change entry. Entries are immutable once appended.
func (s *Store) Append(_ context.Context, entry domain.ChangeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry.Clone())
	return nil
}

// ListChanges returns matching change entries ordered most-recent-first.
func (s *Store) ListChanges(_ context.Context, filter domain.ChangeFilter) ([]domain.ChangeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChangeEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out, nil
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
