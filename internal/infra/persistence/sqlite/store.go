// Package sqlite provides a SQLite-backed taxonomy store. The four tables
// are kept normalized on disk; queries are served from the embedded
// in-memory store hydrated at open time.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lifecyclecore/internal/infra/persistence/memory"
	"lifecyclecore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS stages (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	order_index INTEGER NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS tool_categories (
	id INTEGER PRIMARY KEY,
	stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS tools (
	id INTEGER PRIMARY KEY,
	category_id INTEGER NOT NULL REFERENCES tool_categories(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT 'open',
	interoperable INTEGER NOT NULL DEFAULT 1,
	scope TEXT NOT NULL DEFAULT 'Generic'
);
CREATE TABLE IF NOT EXISTS connections (
	id INTEGER PRIMARY KEY,
	from_stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
	to_stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
	connection_type TEXT NOT NULL DEFAULT 'normal'
);
`

// Store persists the taxonomy to normalized SQLite tables and serves all
// queries from the embedded in-memory store.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if necessary) a SQLite-backed store at path,
// applies the schema, and hydrates the in-memory index from any existing
// rows. Hydration failures, including integrity violations, are fatal.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "lifecycle.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	ds, err := loadDataset(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if !ds.Empty() {
		if err := s.ImportDataset(context.Background(), ds); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Seed writes the dataset to the normalized tables and hydrates the
// in-memory index. Existing rows are replaced. The dataset is validated
// before anything touches disk.
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
	// Children first so cascades never fire mid-replace.
	for _, table := range []string{"tools", "tool_categories", "connections", "stages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			retErr = fmt.Errorf("clear %s: %w", table, err)
			return retErr
		}
	}
	for _, stage := range ds.Stages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO stages(id,name,description,order_index) VALUES(?,?,?,?)`,
			stage.ID, stage.Name, stage.Description, stage.OrderIndex); err != nil {
			retErr = fmt.Errorf("insert stage %d: %w", stage.ID, err)
			return retErr
		}
	}
	for _, cat := range ds.Categories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tool_categories(id,stage_id,name,description) VALUES(?,?,?,?)`,
			cat.ID, cat.StageID, cat.Name, cat.Description); err != nil {
			retErr = fmt.Errorf("insert category %d: %w", cat.ID, err)
			return retErr
		}
	}
	for _, tool := range ds.Tools {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tools(id,category_id,name,description,url,source,interoperable,scope) VALUES(?,?,?,?,?,?,?,?)`,
			tool.ID, tool.CategoryID, tool.Name, tool.Description, tool.URL, string(tool.Source), tool.Interoperable, string(tool.Scope)); err != nil {
			retErr = fmt.Errorf("insert tool %d: %w", tool.ID, err)
			return retErr
		}
	}
	for _, conn := range ds.Connections {
		if _, err := tx.ExecContext(ctx, `INSERT INTO connections(id,from_stage_id,to_stage_id,connection_type) VALUES(?,?,?,?)`,
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
