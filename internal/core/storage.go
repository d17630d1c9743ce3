package core

import (
	"context"
	"fmt"
	"os"

	"lifecyclecore/internal/infra/persistence/memory"
	"lifecyclecore/internal/infra/persistence/postgres"
	"lifecyclecore/internal/infra/persistence/sqlite"
	"lifecyclecore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Seeder is implemented by stores that persist a freshly imported dataset
// to their durable backend. The in-memory store satisfies Importer only.
type Seeder interface {
	Seed(ctx context.Context, ds Dataset) error
}

// Importer accepts a validated dataset without any durable side effect.
type Importer interface {
	ImportDataset(ctx context.Context, ds Dataset) error
}

// OpenStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	LIFECYCLE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	LIFECYCLE_SQLITE_PATH: path to sqlite file (default ./lifecycle.db)
//	LIFECYCLE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenStore(engine *RulesEngine) (domain.Store, error) {
	driver := os.Getenv("LIFECYCLE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("LIFECYCLE_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("LIFECYCLE_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
