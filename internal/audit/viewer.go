package audit

import (
	"context"
	"fmt"

	"pumpcore/pkg/domain"
)

// Viewer reads change history from a ChangeLog.
type Viewer struct {
	log domain.ChangeLog
}

// NewViewer constructs a viewer over the supplied change log.
func NewViewer(log domain.ChangeLog) *Viewer {
	return &Viewer{log: log}
}

// List returns change entries matching the filter, most recent first.
func (v *Viewer) List(ctx context.Context, filter domain.ChangeFilter) ([]domain.ChangeEntry, error) {
	if v.log == nil {
		return nil, fmt.Errorf("audit viewer: no change log configured")
	}
	entries, err := v.log.ListChanges(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("audit viewer: list changes: %w", err)
	}
	return entries, nil
}

// Diff renders the field-level difference between an entry's old and new
// snapshots. Fields absent on one side render as "N/A".
func (v *Viewer) Diff(entry domain.ChangeEntry) []domain.FieldDiff {
	return domain.DiffSnapshots(entry.OldData, entry.NewData)
}
