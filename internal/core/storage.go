package core

import (
	"context"
	"fmt"
	"os"

	"ampcore/internal/infra/persistence/memory"
	"ampcore/internal/infra/persistence/postgres"
	"ampcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete dataset store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenDatasetStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	AMPCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	AMPCORE_SQLITE_PATH: path to sqlite file (default ./ampcore.db)
//	AMPCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenDatasetStore(ctx context.Context) (DatasetStore, error) {
	driver := os.Getenv("AMPCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, os.Getenv("AMPCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv("AMPCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
