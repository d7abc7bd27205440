package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"pumpcore/internal/infra/persistence/memory"
	"pumpcore/internal/observability"
	"pumpcore/pkg/domain"
)

func fixedClock(t time.Time) observability.Clock {
	return observability.ClockFunc(func() time.Time { return t })
}

func TestRecordInsert(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	rec := NewRecorder(store,
		WithClock(fixedClock(now)),
		WithIDGenerator(func() string { return "entry-1" }),
	)

	ok := rec.Record(ctx, Change{
		Table:     "pump_selection_data",
		RecordID:  1,
		Operation: "INSERT",
		New:       domain.Snapshot{"Model No.": domain.Text("X9"), "Frequency (Hz)": domain.Int(50)},
		Actor:     domain.Authenticated("ops@example.com"),
	})
	if !ok {
		t.Fatalf("record returned false")
	}

	entries, err := store.ListChanges(ctx, domain.ChangeFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.ID != "entry-1" || got.Operation != domain.OpInsert || got.RecordID != 1 {
		t.Fatalf("entry = %+v", got)
	}
	if got.ModifiedBy != "ops@example.com" {
		t.Fatalf("actor = %q", got.ModifiedBy)
	}
	if got.OldData != nil {
		t.Fatalf("insert entry should carry no old snapshot")
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		if got.ModifiedAt.Location().String() != loc.String() {
			t.Fatalf("timestamp zone = %v", got.ModifiedAt.Location())
		}
	}
	if !got.ModifiedAt.Equal(now) {
		t.Fatalf("timestamp = %v, want same instant as %v", got.ModifiedAt, now)
	}
}

func TestRecordRejectsUnknownOperation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := NewRecorder(store)

	ok := rec.Record(ctx, Change{
		Table:     "pump_selection_data",
		RecordID:  1,
		Operation: "PATCH",
	})
	if ok {
		t.Fatalf("PATCH operation was accepted")
	}
	entries, _ := store.ListChanges(ctx, domain.ChangeFilter{})
	if len(entries) != 0 {
		t.Fatalf("rejected operation still wrote %d entries", len(entries))
	}
}

func TestRecordRejectsUnlistedTable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := NewRecorder(store)

	ok := rec.Record(ctx, Change{
		Table:     "users",
		RecordID:  1,
		Operation: "DELETE",
	})
	if ok {
		t.Fatalf("unlisted table was accepted")
	}
	entries, _ := store.ListChanges(ctx, domain.ChangeFilter{})
	if len(entries) != 0 {
		t.Fatalf("rejected table still wrote %d entries", len(entries))
	}
}

func TestRecordRejectsBadRecordID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := NewRecorder(store)

	for _, id := range []any{"garbage", 1.5, nil} {
		if rec.Record(ctx, Change{Table: "pump_selection_data", RecordID: id, Operation: "UPDATE"}) {
			t.Fatalf("record id %v was accepted", id)
		}
	}
}

func TestRecordAnonymousActor(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := NewRecorder(store)

	if !rec.Record(ctx, Change{Table: "pump_selection_data", RecordID: 3, Operation: "delete"}) {
		t.Fatalf("lowercase operation should normalise and record")
	}
	entries, _ := store.ListChanges(ctx, domain.ChangeFilter{})
	if entries[0].ModifiedBy != domain.AnonymousActor {
		t.Fatalf("actor = %q, want %q", entries[0].ModifiedBy, domain.AnonymousActor)
	}
}

type failingLog struct{}

func (failingLog) Append(context.Context, domain.ChangeEntry) error {
	return errors.New("disk full")
}

func (failingLog) ListChanges(context.Context, domain.ChangeFilter) ([]domain.ChangeEntry, error) {
	return nil, errors.New("disk full")
}

type captureLogger struct {
	errors []string
}

func (l *captureLogger) Debug(string, ...any)          {}
func (l *captureLogger) Info(string, ...any)           {}
func (l *captureLogger) Warn(string, ...any)           {}
func (l *captureLogger) Error(msg string, args ...any) { l.errors = append(l.errors, msg) }

func TestRecordAppendFailureIsLoggedNotRaised(t *testing.T) {
	logger := &captureLogger{}
	rec := NewRecorder(failingLog{}, WithLogger(logger))

	ok := rec.Record(context.Background(), Change{
		Table:     "pump_selection_data",
		RecordID:  1,
		Operation: "INSERT",
	})
	if ok {
		t.Fatalf("append failure reported as success")
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected one error log, got %v", logger.errors)
	}
}

type panickyLog struct{}

func (panickyLog) Append(context.Context, domain.ChangeEntry) error { panic("backend exploded") }

func (panickyLog) ListChanges(context.Context, domain.ChangeFilter) ([]domain.ChangeEntry, error) {
	return nil, nil
}

func TestRecordRecoversFromPanic(t *testing.T) {
	logger := &captureLogger{}
	rec := NewRecorder(panickyLog{}, WithLogger(logger))

	ok := rec.Record(context.Background(), Change{
		Table:     "pump_selection_data",
		RecordID:  1,
		Operation: "INSERT",
	})
	if ok {
		t.Fatalf("panicking backend reported as success")
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected panic to be logged, got %v", logger.errors)
	}
}

func TestRecordSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := NewRecorder(store)

	snapshot := domain.Snapshot{"HP": domain.Text("5")}
	if !rec.Record(ctx, Change{Table: "pump_selection_data", RecordID: 1, Operation: "INSERT", New: snapshot}) {
		t.Fatalf("record failed")
	}
	snapshot["HP"] = domain.Text("7")

	entries, _ := store.ListChanges(ctx, domain.ChangeFilter{})
	if v, _ := entries[0].NewData.Get("HP"); !v.Equal(domain.Text("5")) {
		t.Fatalf("stored snapshot mutated by caller: %v", entries[0].NewData)
	}
}

func TestWithTablesReplacesAllowList(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := NewRecorder(store, WithTables("motor_data"))

	if rec.Record(ctx, Change{Table: "pump_selection_data", RecordID: 1, Operation: "INSERT"}) {
		t.Fatalf("default table accepted after allow-list replacement")
	}
	if !rec.Record(ctx, Change{Table: "motor_data", RecordID: 1, Operation: "INSERT"}) {
		t.Fatalf("configured table rejected")
	}
}
