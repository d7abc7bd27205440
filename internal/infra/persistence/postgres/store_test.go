package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestNewStorePropagatesOpenFailure(t *testing.T) {
	wantErr := errors.New("no driver available")
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("driver = %q", driverName)
		}
		if dsn != defaultDSN {
			t.Fatalf("dsn = %q, want default", dsn)
		}
		return nil, wantErr
	})
	defer restore()

	if _, err := NewStore(context.Background(), ""); !errors.Is(err, wantErr) {
		t.Fatalf("open: %v", err)
	}
}

func TestOverrideSQLOpenRestores(t *testing.T) {
	called := false
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		called = true
		return nil, errors.New("stub")
	})
	restore()

	inner := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return nil, errors.New("second stub")
	})
	defer inner()
	_, _ = sqlOpen("pgx", "dsn")
	if called {
		t.Fatalf("restored hook still active")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "records_pkey" (SQLSTATE 23505)`)) {
		t.Fatalf("unique violation not detected")
	}
	if isUniqueViolation(nil) || isUniqueViolation(errors.New("connection refused")) {
		t.Fatalf("false positive")
	}
}
