package service

import (
	"context"

	"pumpcore/pkg/domain"
)

// Allocator derives the next record identifier from the current maximum.
// Allocation is best effort: two concurrent allocations can hand out the
// same identifier, and the store's primary key turns the loser's insert
// into ErrRecordExists.
type Allocator struct {
	store domain.RecordStore
}

// NewAllocator constructs an allocator over the store.
func NewAllocator(store domain.RecordStore) *Allocator {
	return &Allocator{store: store}
}

// Next returns max+1, or 1 when the record set is empty.
func (a *Allocator) Next(ctx context.Context) (int64, error) {
	max, ok, err := a.store.MaxRecordID(ctx)
	if err != nil {
		return 0, AllocationError{Err: err}
	}
	if !ok {
		return 1, nil
	}
	return max + 1, nil
}
