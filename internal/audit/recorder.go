// Package audit records and reads the change trail for record mutations.
// The recorder is strictly best effort: a failed audit write is logged and
// reported as false, never surfaced as an error to the calling operation.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pumpcore/internal/observability"
	"pumpcore/pkg/domain"
)

// DefaultTimezone is the civil timezone change timestamps are recorded in.
const DefaultTimezone = "Asia/Taipei"

// DefaultTables is the set of table names the recorder accepts out of the box.
func DefaultTables() []string {
	return []string{"pump_selection_data"}
}

// Recorder validates and appends change entries to a ChangeLog.
type Recorder struct {
	log      domain.ChangeLog
	tables   map[string]struct{}
	location *time.Location
	clock    observability.Clock
	logger   observability.Logger
	newID    func() string
}

// RecorderOption customises recorder construction.
type RecorderOption func(*Recorder)

// WithTables replaces the table allow-list.
func WithTables(tables ...string) RecorderOption {
	return func(r *Recorder) {
		r.tables = make(map[string]struct{}, len(tables))
		for _, name := range tables {
			r.tables[name] = struct{}{}
		}
	}
}

// WithLocation sets the civil timezone used for change timestamps.
func WithLocation(loc *time.Location) RecorderOption {
	return func(r *Recorder) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithClock substitutes the time source.
func WithClock(clock observability.Clock) RecorderOption {
	return func(r *Recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger failures are reported through.
func WithLogger(logger observability.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator substitutes entry ID generation, used by tests.
func WithIDGenerator(gen func() string) RecorderOption {
	return func(r *Recorder) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewRecorder constructs a recorder over the supplied change log.
func NewRecorder(log domain.ChangeLog, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		log:    log,
		tables: make(map[string]struct{}),
		clock:  observability.SystemClock(),
		logger: observability.NopLogger{},
		newID:  uuid.NewString,
	}
	for _, name := range DefaultTables() {
		r.tables[name] = struct{}{}
	}
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	r.location = loc
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Change describes one mutation to record.
type Change struct {
	Table       string
	RecordID    any
	Operation   string
	Old         domain.Snapshot
	New         domain.Snapshot
	Actor       domain.Identity
	Description string
}

// Record appends a change entry. It returns true when the entry was written
// and false otherwise; it never panics and never returns an error.
func (r *Recorder) Record(ctx context.Context, change Change) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("audit record panicked", "panic", fmt.Sprint(p))
			ok = false
		}
	}()

	if r.log == nil {
		r.logger.Error("audit record skipped", "reason", "no change log configured")
		return false
	}
	if _, allowed := r.tables[change.Table]; !allowed {
		r.logger.Error("audit record rejected", "reason", "table not allowed", "table", change.Table)
		return false
	}
	op, err := domain.ParseOperation(change.Operation)
	if err != nil {
		r.logger.Error("audit record rejected", "reason", "unknown operation", "operation", change.Operation)
		return false
	}
	recordID, err := domain.CoerceRecordID(change.RecordID)
	if err != nil {
		r.logger.Error("audit record rejected", "reason", "bad record id", "record_id", fmt.Sprint(change.RecordID))
		return false
	}

	entry := domain.ChangeEntry{
		ID:          r.newID(),
		TableName:   change.Table,
		RecordID:    recordID,
		Operation:   op,
		OldData:     change.Old.Clone(),
		NewData:     change.New.Clone(),
		ModifiedBy:  change.Actor.Actor(),
		ModifiedAt:  r.clock.Now().In(r.location),
		Description: change.Description,
	}
	if err := r.log.Append(ctx, entry); err != nil {
		r.logger.Error("audit record failed", "table", change.Table, "record_id", recordID, "operation", string(op), "error", err.Error())
		return false
	}
	r.logger.Debug("audit record written", "table", change.Table, "record_id", recordID, "operation", string(op), "actor", entry.ModifiedBy)
	return true
}
