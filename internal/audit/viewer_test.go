package audit

import (
	"context"
	"testing"
	"time"

	"pumpcore/internal/infra/persistence/memory"
	"pumpcore/pkg/domain"
)

func seedEntries(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	entries := []domain.ChangeEntry{
		{
			ID: "a", TableName: "pump_selection_data", RecordID: 1,
			Operation:  domain.OpInsert,
			NewData:    domain.Snapshot{"Model No.": domain.Text("X9"), "HP": domain.Text("5")},
			ModifiedBy: "ops@example.com", ModifiedAt: base,
		},
		{
			ID: "b", TableName: "pump_selection_data", RecordID: 1,
			Operation:  domain.OpUpdate,
			OldData:    domain.Snapshot{"Model No.": domain.Text("X9"), "HP": domain.Text("5")},
			NewData:    domain.Snapshot{"Model No.": domain.Text("X9"), "HP": domain.Text("7")},
			ModifiedBy: "admin@example.com", ModifiedAt: base.Add(time.Hour),
		},
		{
			ID: "c", TableName: "pump_selection_data", RecordID: 2,
			Operation:  domain.OpDelete,
			OldData:    domain.Snapshot{"Model No.": domain.Text("Z1")},
			ModifiedBy: "ops@example.com", ModifiedAt: base.Add(2 * time.Hour),
		},
	}
	for _, e := range entries {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func TestViewerListMostRecentFirst(t *testing.T) {
	store := memory.NewStore()
	seedEntries(t, store)
	viewer := NewViewer(store)

	out, err := viewer.List(context.Background(), domain.ChangeFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	for i, want := range []string{"c", "b", "a"} {
		if out[i].ID != want {
			t.Fatalf("order = %v", out)
		}
	}
}

func TestViewerListFilterByActor(t *testing.T) {
	store := memory.NewStore()
	seedEntries(t, store)
	viewer := NewViewer(store)

	out, err := viewer.List(context.Background(), domain.ChangeFilter{Actor: "admin@example.com"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("actor filter = %v", out)
	}
}

func TestViewerDiffUpdate(t *testing.T) {
	store := memory.NewStore()
	seedEntries(t, store)
	viewer := NewViewer(store)

	out, err := viewer.List(context.Background(), domain.ChangeFilter{Operations: []domain.Operation{domain.OpUpdate}})
	if err != nil || len(out) != 1 {
		t.Fatalf("list updates: %v err=%v", out, err)
	}
	diffs := viewer.Diff(out[0])

	byField := make(map[string]domain.FieldDiff, len(diffs))
	for _, d := range diffs {
		byField[d.Field] = d
	}
	hp := byField["HP"]
	if hp.Status != domain.DiffChanged || hp.Old != "5" || hp.New != "7" {
		t.Fatalf("HP diff = %+v", hp)
	}
	if byField["Model No."].Status != domain.DiffUnchanged {
		t.Fatalf("Model No. diff = %+v", byField["Model No."])
	}
}

func TestViewerDiffDeleteRendersMissingSideAsNA(t *testing.T) {
	store := memory.NewStore()
	seedEntries(t, store)
	viewer := NewViewer(store)

	out, err := viewer.List(context.Background(), domain.ChangeFilter{Operations: []domain.Operation{domain.OpDelete}})
	if err != nil || len(out) != 1 {
		t.Fatalf("list deletes: %v err=%v", out, err)
	}
	diffs := viewer.Diff(out[0])
	if len(diffs) != 1 {
		t.Fatalf("diffs = %v", diffs)
	}
	if diffs[0].New != "N/A" || diffs[0].Status != domain.DiffRemoved {
		t.Fatalf("delete diff = %+v", diffs[0])
	}
}

func TestViewerWithoutLog(t *testing.T) {
	viewer := NewViewer(nil)
	if _, err := viewer.List(context.Background(), domain.ChangeFilter{}); err == nil {
		t.Fatalf("expected error from nil change log")
	}
}
