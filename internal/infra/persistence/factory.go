// Package persistence selects a concrete storage backend for the record set
// and its audit trail.
package persistence

import (
	"context"
	"fmt"
	"os"

	"pumpcore/internal/infra/persistence/memory"
	"pumpcore/internal/infra/persistence/postgres"
	"pumpcore/internal/infra/persistence/sqlite"
	"pumpcore/pkg/domain"
)

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Backend bundles the two persistence surfaces every driver provides: the
// record set and the append-only change log share one database.
type Backend interface {
	domain.RecordStore
	domain.ChangeLog
}

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	PUMPCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	PUMPCORE_SQLITE_PATH: path to sqlite file (default ./pumpcore.db)
//	PUMPCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(ctx context.Context) (Backend, error) {
	driver := os.Getenv("PUMPCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(os.Getenv("PUMPCORE_SQLITE_PATH"))
	case DriverPostgres:
		return postgres.NewStore(ctx, os.Getenv("PUMPCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
