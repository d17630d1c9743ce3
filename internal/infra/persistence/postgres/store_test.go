package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"lifecyclecore/internal/infra/persistence/postgres/testutil"
	"lifecyclecore/internal/seed"
	"lifecyclecore/pkg/domain"
)

func stubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	store, err := NewStore("postgres://stub", domain.DefaultRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, conn
}

func TestPostgresStoreAppliesSchema(t *testing.T) {
	_, conn := stubStore(t)
	created := 0
	for _, stmt := range conn.Execs {
		if strings.HasPrefix(strings.TrimSpace(stmt), "CREATE TABLE") {
			created++
		}
	}
	if created != 4 {
		t.Fatalf("expected 4 CREATE TABLE statements, got %d", created)
	}
}

func TestPostgresStoreSeedPersistsRows(t *testing.T) {
	store, conn := stubStore(t)
	ds := seed.MustDataset()
	if err := store.Seed(context.Background(), ds); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := len(conn.Tables["stages"]); got != len(ds.Stages) {
		t.Fatalf("expected %d stage rows, got %d", len(ds.Stages), got)
	}
	if got := len(conn.Tables["tools"]); got != len(ds.Tools) {
		t.Fatalf("expected %d tool rows, got %d", len(ds.Tools), got)
	}
	if got := len(conn.Tables["connections"]); got != len(ds.Connections) {
		t.Fatalf("expected %d connection rows, got %d", len(ds.Connections), got)
	}
}

func TestPostgresStoreHydratesFromExistingRows(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	first, err := NewStore("postgres://stub", domain.DefaultRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ds := seed.MustDataset()
	if err := first.Seed(context.Background(), ds); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(conn.Tables["tool_categories"]) == 0 {
		t.Fatal("expected persisted category rows")
	}

	second, err := NewStore("postgres://stub", domain.DefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if got := len(second.ListStages()); got != len(ds.Stages) {
		t.Fatalf("expected %d hydrated stages, got %d", len(ds.Stages), got)
	}
	matches := 0
	for range second.SearchTools("data") {
		matches++
	}
	if matches == 0 {
		t.Fatal("expected search matches from hydrated store")
	}
}

func TestPostgresStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	if _, err := NewStore("postgres://stub", domain.DefaultRulesEngine()); err == nil {
		t.Fatal("expected ping failure to surface")
	}
}

func TestPostgresStoreSeedExecFailure(t *testing.T) {
	store, conn := stubStore(t)
	conn.FailExec = true

	if err := store.Seed(context.Background(), seed.MustDataset()); err == nil {
		t.Fatal("expected persist failure to surface")
	}
}

func TestPostgresStoreClosesDBWhenSchemaFails(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	if _, err := NewStore("postgres://stub", domain.DefaultRulesEngine()); err == nil {
		t.Fatal("expected schema failure to surface")
	}
	// The handle must not leak: a failed NewStore closes it.
	if err := db.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("expected closed database handle, got %v", err)
	}
}

func TestPostgresStoreSeedRejectsBrokenDataset(t *testing.T) {
	store, conn := stubStore(t)
	broken := seed.MustDataset()
	broken.Connections[0].ToStageID = 999

	if err := store.Seed(context.Background(), broken); err == nil {
		t.Fatal("expected integrity rejection")
	}
	if len(conn.Tables["stages"]) != 0 {
		t.Fatal("rejected dataset must not reach the tables")
	}
}
