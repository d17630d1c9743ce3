// Package postgres provides a Postgres-backed taxonomy store that mirrors
// the SQLite semantics: normalized tables on the server, queries served
// from the embedded in-memory store hydrated at open time.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"lifecyclecore/internal/infra/persistence/memory"
	"lifecyclecore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/lifecycle?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open hook for tests and returns a restore func.
func OverrideSQLOpen(fn func(driver, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stages (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		order_index INTEGER NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS tool_categories (
		id BIGINT PRIMARY KEY,
		stage_id BIGINT NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tools (
		id BIGINT PRIMARY KEY,
		category_id BIGINT NOT NULL REFERENCES tool_categories(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'open',
		interoperable BOOLEAN NOT NULL DEFAULT TRUE,
		scope TEXT NOT NULL DEFAULT 'Generic'
	)`,
	`CREATE TABLE IF NOT EXISTS connections (
		id BIGINT PRIMARY KEY,
		from_stage_id BIGINT NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		to_stage_id BIGINT NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		connection_type TEXT NOT NULL DEFAULT 'normal'
	)`,
}

// Store persists the taxonomy to Postgres while reusing the in-memory
// implementation for query serving.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls
// back to defaultDSN), applies the schema, and hydrates the in-memory
// index from existing rows. Hydration failures are fatal.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	s := &Store{Store: memory.NewStore(engine), db: db}
	ds, err := loadDataset(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if !ds.Empty() {
		if err := s.ImportDataset(ctx, ds); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Seed writes the dataset to the normalized tables and hydrates the
// in-memory index. Existing rows are replaced.
func (s *Store) Seed(ctx context.Context, ds domain.Dataset) error {
	if err := s.ImportDataset(ctx, ds); err != nil {
		return err
	}
	return s.persist(ctx, s.Snapshot())
}

func (s *Store) persist(ctx context.Context, ds domain.Dataset) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, table := range []string{"tools", "tool_categories", "connections", "stages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			retErr = fmt.Errorf("clear %s: %w", table, err)
			return retErr
		}
	}
	for _, stage := range ds.Stages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO stages(id,name,description,order_index) VALUES($1,$2,$3,$4)`,
			stage.ID, stage.Name, stage.Description, stage.OrderIndex); err != nil {
			retErr = fmt.Errorf("insert stage %d: %w", stage.ID, err)
			return retErr
		}
	}
	for _, cat := range ds.Categories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tool_categories(id,stage_id,name,description) VALUES($1,$2,$3,$4)`,
			cat.ID, cat.StageID, cat.Name, cat.Description); err != nil {
			retErr = fmt.Errorf("insert category %d: %w", cat.ID, err)
			return retErr
		}
	}
	for _, tool := range ds.Tools {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tools(id,category_id,name,description,url,source,interoperable,scope) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			tool.ID, tool.CategoryID, tool.Name, tool.Description, tool.URL, string(tool.Source), tool.Interoperable, string(tool.Scope)); err != nil {
			retErr = fmt.Errorf("insert tool %d: %w", tool.ID, err)
			return retErr
		}
	}
	for _, conn := range ds.Connections {
		if _, err := tx.ExecContext(ctx, `INSERT INTO connections(id,from_stage_id,to_stage_id,connection_type) VALUES($1,$2,$3,$4)`,
			conn.ID, conn.FromStageID, conn.ToStageID, string(conn.Type)); err != nil {
			retErr = fmt.Errorf("insert connection %d: %w", conn.ID, err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

func loadDataset(ctx context.Context, db *sql.DB) (domain.Dataset, error) {
	var ds domain.Dataset

	rows, err := db.QueryContext(ctx, `SELECT id, name, description, order_index FROM stages ORDER BY order_index`)
	if err != nil {
		return ds, fmt.Errorf("select stages: %w", err)
	}
	for rows.Next() {
		var stage domain.Stage
		if err := rows.Scan(&stage.ID, &stage.Name, &stage.Description, &stage.OrderIndex); err != nil {
			_ = rows.Close()
			return ds, fmt.Errorf("scan stage: %w", err)
		}
		ds.Stages = append(ds.Stages, stage)
	}
	if err := closeRows(rows); err != nil {
		return ds, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, stage_id, name, description FROM tool_categories ORDER BY id`)
	if err != nil {
		return ds, fmt.Errorf("select tool_categories: %w", err)
	}
	for rows.Next() {
		var cat domain.ToolCategory
		if err := rows.Scan(&cat.ID, &cat.StageID, &cat.Name, &cat.Description); err != nil {
			_ = rows.Close()
			return ds, fmt.Errorf("scan tool_category: %w", err)
		}
		ds.Categories = append(ds.Categories, cat)
	}
	if err := closeRows(rows); err != nil {
		return ds, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, category_id, name, description, url, source, interoperable, scope FROM tools ORDER BY id`)
	if err != nil {
		return ds, fmt.Errorf("select tools: %w", err)
	}
	for rows.Next() {
		var tool domain.Tool
		var source, scope string
		if err := rows.Scan(&tool.ID, &tool.CategoryID, &tool.Name, &tool.Description, &tool.URL, &source, &tool.Interoperable, &scope); err != nil {
			_ = rows.Close()
			return ds, fmt.Errorf("scan tool: %w", err)
		}
		tool.Source = domain.ToolSource(source)
		tool.Scope = domain.ToolScope(scope)
		ds.Tools = append(ds.Tools, tool)
	}
	if err := closeRows(rows); err != nil {
		return ds, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, from_stage_id, to_stage_id, connection_type FROM connections ORDER BY id`)
	if err != nil {
		return ds, fmt.Errorf("select connections: %w", err)
	}
	for rows.Next() {
		var conn domain.Connection
		var kind string
		if err := rows.Scan(&conn.ID, &conn.FromStageID, &conn.ToStageID, &kind); err != nil {
			_ = rows.Close()
			return ds, fmt.Errorf("scan connection: %w", err)
		}
		conn.Type = domain.ConnectionType(kind)
		ds.Connections = append(ds.Connections, conn)
	}
	if err := closeRows(rows); err != nil {
		return ds, err
	}

	return ds, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
