package batchinsert

import (
	"context"
	"database/sql"
)

// Rows is the subset of *sql.Rows the engine reads staging rows through.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Executor 执行带参数语句与查询的能力
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// Conn 可以开启事务的连接
type Conn interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

// Tx 事务，能报告自己所属的连接
type Tx interface {
	Executor
	Commit() error
	Rollback() error
	Conn() Conn
}

var (
	_ Conn = (*DBConn)(nil)
	_ Conn = (*SQLConn)(nil)
	_ Tx   = (*sqlTx)(nil)
)

// DBConn 基于连接池 *sql.DB 的 Conn
type DBConn struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewDBConn 创建基于 *sql.DB 的连接（用户管理连接池）
func NewDBConn(db *sql.DB) *DBConn {
	return &DBConn{db: db}
}

// WithTxOptions 设置引擎自己开启事务时使用的隔离级别等选项
func (c *DBConn) WithTxOptions(opts *sql.TxOptions) *DBConn {
	c.opts = opts
	return c
}

// DB 返回底层连接池
func (c *DBConn) DB() *sql.DB {
	return c.db
}

func (c *DBConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	if opts == nil {
		opts = c.opts
	}
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, conn: c}, nil
}

// SQLConn 基于单个 *sql.Conn 的 Conn，适合需要固定会话的调用方
type SQLConn struct {
	conn *sql.Conn
	opts *sql.TxOptions
}

func NewSQLConn(conn *sql.Conn) *SQLConn {
	return &SQLConn{conn: conn}
}

func (c *SQLConn) WithTxOptions(opts *sql.TxOptions) *SQLConn {
	c.opts = opts
	return c
}

func (c *SQLConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	if opts == nil {
		opts = c.opts
	}
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, conn: c}, nil
}

type sqlTx struct {
	tx   *sql.Tx
	conn Conn
}

func (t *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *sqlTx) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }
func (t *sqlTx) Conn() Conn      { return t.conn }

// SQLTx exposes the wrapped *sql.Tx of transactions opened through DBConn or SQLConn,
// for callers chaining their own statements in a pre-commit hook.
func SQLTx(tx Tx) (*sql.Tx, bool) {
	t, ok := tx.(*sqlTx)
	if !ok {
		return nil, false
	}
	return t.tx, true
}
