// Package testutil provides a stub database/sql driver that records
// normalized taxonomy statements for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

var stubSeq uint64

// StubConn records statements and keeps table rows in memory. Inserted
// rows are stored positionally, matching the column order the store uses
// in both its INSERT and SELECT statements.
type StubConn struct {
	Execs     []string
	Tables    map[string][][]driver.Value
	FailExec  bool
	FailBegin bool
	FailPing  bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][][]driver.Value)}
	name := fmt.Sprintf("stubpg%d", atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return stubTx{}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO"):
		table := tableName(query, "INSERT INTO")
		row := make([]driver.Value, len(args))
		for i, arg := range args {
			row[i] = arg.Value
		}
		c.Tables[table] = append(c.Tables[table], row)
	case strings.HasPrefix(upper, "DELETE FROM"):
		delete(c.Tables, tableName(query, "DELETE FROM"))
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for the store's SELECTs.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	table := tableAfterFrom(query)
	if table == "" {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	rows := c.Tables[table]
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	} else {
		width = selectWidth(query)
	}
	cols := make([]string, width)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	return &stubRows{cols: cols, rows: rows}, nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	pos  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func tableName(query, prefix string) string {
	rest := strings.TrimSpace(query[len(prefix):])
	for i, ch := range rest {
		if ch == '(' || ch == ' ' || ch == '\n' || ch == '\t' {
			return rest[:i]
		}
	}
	return rest
}

func tableAfterFrom(query string) string {
	upper := strings.ToUpper(query)
	idx := strings.Index(upper, " FROM ")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(query[idx+len(" FROM "):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func selectWidth(query string) int {
	upper := strings.ToUpper(query)
	idx := strings.Index(upper, " FROM ")
	if idx < 0 {
		return 0
	}
	selectList := query[len("SELECT "):idx]
	return len(strings.Split(selectList, ","))
}
