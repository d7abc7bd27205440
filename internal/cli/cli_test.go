package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pumpcore/internal/infra/persistence/sqlite"
	"pumpcore/pkg/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	if _, err := execute(t, "history", "--format", "yaml"); err == nil {
		t.Fatalf("invalid format accepted")
	}
}

func TestBuildChangeFilter(t *testing.T) {
	opts := &HistoryOptions{
		RootOptions: &RootOptions{},
		Table:       "pump_selection_data",
		Actor:       "ops@example.com",
		Operations:  []string{"insert", "UPDATE"},
		From:        "2025-06-01",
		To:          "2025-07-01",
	}
	filter, err := buildChangeFilter(opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if filter.Table != "pump_selection_data" || filter.Actor != "ops@example.com" {
		t.Fatalf("filter = %+v", filter)
	}
	if len(filter.Operations) != 2 || filter.Operations[0] != domain.OpInsert {
		t.Fatalf("operations = %v", filter.Operations)
	}
	if filter.From.IsZero() || filter.To.IsZero() || !filter.From.Before(filter.To) {
		t.Fatalf("dates = %v .. %v", filter.From, filter.To)
	}

	opts.Operations = []string{"PATCH"}
	if _, err := buildChangeFilter(opts); err == nil {
		t.Fatalf("PATCH operation accepted")
	}

	opts.Operations = nil
	opts.From = "June 1st"
	if _, err := buildChangeFilter(opts); err == nil {
		t.Fatalf("bad date accepted")
	}
}

func TestImportThenHistory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PUMPCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("PUMPCORE_SQLITE_PATH", filepath.Join(dir, "pumpcore.db"))
	t.Setenv("PUMPCORE_ARCHIVE_DRIVER", "memory")

	csvPath := filepath.Join(dir, "pumps.csv")
	csv := "Model No.,Frequency (Hz),HP\nX9,50.7,5\nZ1,60,3\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out, err := execute(t, "import", csvPath, "--actor", "ops@example.com")
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 2/2 rows") {
		t.Fatalf("import output = %q", out)
	}

	out, err = execute(t, "history", "--format", "json", "--actor", "ops@example.com")
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	var entries []domain.ChangeEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Operation != domain.OpInsert || entry.ModifiedBy != "ops@example.com" {
			t.Fatalf("entry = %+v", entry)
		}
	}
}

func TestHistoryTextOutputWithDiff(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PUMPCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("PUMPCORE_SQLITE_PATH", filepath.Join(dir, "pumpcore.db"))
	t.Setenv("PUMPCORE_ARCHIVE_DRIVER", "memory")

	csvPath := filepath.Join(dir, "pumps.csv")
	if err := os.WriteFile(csvPath, []byte("Model No.\nX9\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if out, err := execute(t, "import", csvPath); err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}

	out, err := execute(t, "history", "--diff")
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	if !strings.Contains(out, "INSERT") || !strings.Contains(out, "pump_selection_data") {
		t.Fatalf("history output = %q", out)
	}
	if !strings.Contains(out, "N/A -> X9") {
		t.Fatalf("diff output missing N/A rendering: %q", out)
	}
}

func TestHistoryDateFilterMatchesDisplayedDates(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "pumpcore.db")
	t.Setenv("PUMPCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("PUMPCORE_SQLITE_PATH", dbPath)

	// Stamp entries in the same civil timezone the listing displays, the
	// way the recorder stamps them. A late-evening entry on June 1 must
	// match --to 2025-06-02 and an early-morning entry on June 2 must not,
	// no matter how the civil times map to UTC.
	loc := auditLocation()
	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	for _, entry := range []domain.ChangeEntry{
		{
			ID:         "evening",
			TableName:  "pump_selection_data",
			RecordID:   1,
			Operation:  domain.OpInsert,
			ModifiedBy: "ops@example.com",
			ModifiedAt: time.Date(2025, 6, 1, 23, 0, 0, 0, loc),
		},
		{
			ID:         "morning",
			TableName:  "pump_selection_data",
			RecordID:   2,
			Operation:  domain.OpUpdate,
			ModifiedBy: "ops@example.com",
			ModifiedAt: time.Date(2025, 6, 2, 7, 0, 0, 0, loc),
		},
	} {
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("append %s: %v", entry.ID, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, err := execute(t, "history", "--to", "2025-06-02")
	if err != nil {
		t.Fatalf("history --to: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2025-06-01 23:00:00") {
		t.Fatalf("June 1 entry missing before exclusive --to: %q", out)
	}
	if strings.Contains(out, "2025-06-02 07:00:00") {
		t.Fatalf("exclusive --to leaked a June 2 entry: %q", out)
	}

	out, err = execute(t, "history", "--from", "2025-06-02")
	if err != nil {
		t.Fatalf("history --from: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2025-06-02 07:00:00") || strings.Contains(out, "2025-06-01 23:00:00") {
		t.Fatalf("inclusive --from boundary off: %q", out)
	}
}

func TestHistoryEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PUMPCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("PUMPCORE_SQLITE_PATH", filepath.Join(dir, "pumpcore.db"))

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No matching changes.") {
		t.Fatalf("output = %q", out)
	}
}
