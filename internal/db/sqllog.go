package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// NewLoggingConnector returns a driver.Connector over the sqlite3 driver that
// logs every statement and its args at debug level. Open the pool with
// sql.OpenDB(connector); sql.Open is not supported for this connector.
func NewLoggingConnector(dsn string, logger *slog.Logger) (driver.Connector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &logConnector{dsn: dsn, logger: logger}, nil
}

type logConnector struct {
	dsn    string
	logger *slog.Logger
}

func (c *logConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := (&sqlite3.SQLiteDriver{}).Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &logConn{conn: conn, logger: c.logger}, nil
}

func (c *logConnector) Driver() driver.Driver { return logDriver{} }

type logDriver struct{}

func (logDriver) Open(string) (driver.Conn, error) {
	return nil, fmt.Errorf("sqlite3-log: open with sql.OpenDB(NewLoggingConnector(...))")
}

type logConn struct {
	conn   driver.Conn
	logger *slog.Logger
}

func (c *logConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &logStmt{stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *logConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if prep, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err := prep.PrepareContext(ctx, query)
		if err != nil {
			return nil, err
		}
		return &logStmt{stmt: stmt, query: query, logger: c.logger}, nil
	}
	return c.Prepare(query)
}

func (c *logConn) Close() error { return c.conn.Close() }

func (c *logConn) Begin() (driver.Tx, error) {
	//nolint:staticcheck // SA1019 – needed when the wrapped conn lacks ConnBeginTx
	return c.conn.Begin()
}

func (c *logConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if beginTx, ok := c.conn.(driver.ConnBeginTx); ok {
		return beginTx.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // SA1019 – fallback when the wrapped conn lacks ConnBeginTx
	return c.conn.Begin()
}

type logStmt struct {
	stmt   driver.Stmt
	query  string
	logger *slog.Logger
}

func (s *logStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.logger.Debug("sql", "op", "exec", "sql", s.query, "args", args)
	//nolint:staticcheck // SA1019 – needed when the wrapped stmt lacks StmtExecContext
	return s.stmt.Exec(args)
}

func (s *logStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	s.logger.Debug("sql", "op", "exec", "sql", s.query, "args", flatten(args))
	if execCtx, ok := s.stmt.(driver.StmtExecContext); ok {
		return execCtx.ExecContext(ctx, args)
	}
	//nolint:staticcheck // SA1019 – fallback when the wrapped stmt lacks StmtExecContext
	return s.stmt.Exec(values(args))
}

func (s *logStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.logger.Debug("sql", "op", "query", "sql", s.query, "args", args)
	//nolint:staticcheck // SA1019 – needed when the wrapped stmt lacks StmtQueryContext
	return s.stmt.Query(args)
}

func (s *logStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	s.logger.Debug("sql", "op", "query", "sql", s.query, "args", flatten(args))
	if queryCtx, ok := s.stmt.(driver.StmtQueryContext); ok {
		return queryCtx.QueryContext(ctx, args)
	}
	//nolint:staticcheck // SA1019 – fallback when the wrapped stmt lacks StmtQueryContext
	return s.stmt.Query(values(args))
}

func (s *logStmt) Close() error { return s.stmt.Close() }

func (s *logStmt) NumInput() int {
	if n, ok := s.stmt.(interface{ NumInput() int }); ok {
		return n.NumInput()
	}
	return -1
}

func flatten(args []driver.NamedValue) []any {
	out := make([]any, len(args))
	for i, a := range args {
		v := a.Value
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if a.Name != "" {
			out[i] = fmt.Sprintf("%s=%v", a.Name, v)
		} else {
			out[i] = v
		}
	}
	return out
}

func values(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}
