package core

import (
	"context"
	"fmt"
	"os"

	"bankcore/internal/infra/persistence/memory"
	"bankcore/internal/infra/persistence/postgres"
	"bankcore/internal/infra/persistence/sqlite"
	"bankcore/internal/storage"
)

// StorageDriver identifies a persistence backend.
type StorageDriver string

// Supported storage drivers.
const (
	StorageMemory   StorageDriver = "memory"
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
)

// OpenBackend selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	BANKCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	BANKCORE_SQLITE_PATH: path to sqlite file (default ./bankcore.db)
//	BANKCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenBackend(ctx context.Context) (storage.Backend, error) {
	driver := os.Getenv("BANKCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("BANKCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv("BANKCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// OpenFromEnv opens the environment-selected backend and builds the store,
// loading the shared caches.
func OpenFromEnv(ctx context.Context, opts ...Option) (*Store, error) {
	backend, err := OpenBackend(ctx)
	if err != nil {
		return nil, err
	}
	store, err := Open(ctx, backend, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}
