package batchinsert_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rushairer/batchinsert"
)

// spyConn records every statement the inserter sends and replays canned staging rows.
type spyConn struct {
	mu sync.Mutex

	begins    int
	commits   int
	rollbacks int
	execs     []spyCall
	queries   []spyCall

	beginErr    error
	commitErr   error
	rollbackErr error
	// execErr is consulted for every ExecContext; a non-nil result fails the call.
	execErr func(n int, query string) error
	columns []string
	rows    [][]any
}

type spyCall struct {
	query string
	args  []any
}

func newSpyConn(columns []string, rows ...[]any) *spyConn {
	return &spyConn{columns: columns, rows: rows}
}

func (c *spyConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (batchinsert.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	c.begins++
	return &spyTx{conn: c}, nil
}

func (c *spyConn) execQueries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.execs))
	for i, e := range c.execs {
		out[i] = e.query
	}
	return out
}

func (c *spyConn) statementCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.execs) + len(c.queries)
}

func (c *spyConn) countExecs(query string) int {
	n := 0
	for _, q := range c.execQueries() {
		if q == query {
			n++
		}
	}
	return n
}

type spyTx struct {
	conn       *spyConn
	committed  bool
	rolledBack bool
}

func (t *spyTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c := t.conn
	c.mu.Lock()
	c.execs = append(c.execs, spyCall{query: query, args: args})
	n := len(c.execs)
	execErr := c.execErr
	c.mu.Unlock()
	if execErr != nil {
		if err := execErr(n, query); err != nil {
			return nil, err
		}
	}
	return spyResult{}, nil
}

func (t *spyTx) QueryContext(ctx context.Context, query string, args ...any) (batchinsert.Rows, error) {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, spyCall{query: query, args: args})
	return &spyRows{columns: c.columns, rows: c.rows, pos: -1}, nil
}

func (t *spyTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.committed || t.rolledBack {
		return sql.ErrTxDone
	}
	if c.commitErr != nil {
		return c.commitErr
	}
	t.committed = true
	c.commits++
	return nil
}

func (t *spyTx) Rollback() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.committed || t.rolledBack {
		return sql.ErrTxDone
	}
	t.rolledBack = true
	c.rollbacks++
	return c.rollbackErr
}

func (t *spyTx) Conn() batchinsert.Conn { return t.conn }

type spyResult struct{}

func (spyResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (spyResult) RowsAffected() (int64, error) { return 0, nil }

type spyRows struct {
	columns []string
	rows    [][]any
	pos     int
}

func (r *spyRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *spyRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func (r *spyRows) Columns() ([]string, error) { return r.columns, nil }
func (r *spyRows) Err() error                 { return nil }
func (r *spyRows) Close() error               { return nil }

// recordingMetrics counts reporter callbacks.
type recordingMetrics struct {
	mu          sync.Mutex
	inflight    int
	maxInflight int
	statuses    []string
	paths       []string
	batchSizes  []int
	stagingRows []int
	errorKinds  []string
}

func (m *recordingMetrics) ObserveExecuteDuration(table, path string, n int, d time.Duration, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	m.paths = append(m.paths, path)
}

func (m *recordingMetrics) ObserveBatchSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSizes = append(m.batchSizes, n)
}

func (m *recordingMetrics) ObserveStagingRows(table string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stagingRows = append(m.stagingRows, n)
}

func (m *recordingMetrics) IncInflight() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight++
	if m.inflight > m.maxInflight {
		m.maxInflight = m.inflight
	}
}

func (m *recordingMetrics) DecInflight() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
}

func (m *recordingMetrics) IncError(table, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorKinds = append(m.errorKinds, kind)
}

func (m *recordingMetrics) countKinds(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range m.errorKinds {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

type user struct {
	ID    int64
	Name  string
	Email string
}

func userMapping() *batchinsert.Mapping[*user] {
	return batchinsert.NewMapping[*user]("users").
		MustAddColumn("name", func(u *user) any { return u.Name }).
		MustAddColumn("email", func(u *user) any { return u.Email })
}

type item struct {
	ID   int64
	Name string
}

func itemMapping() *batchinsert.Mapping[item] {
	return batchinsert.NewMapping[item]("items").
		MustAddGeneratedColumn("id", "INT").
		MustAddColumn("name", func(i item) any { return i.Name })
}

func setItemID(i item, values batchinsert.GeneratedValues) (item, error) {
	id, err := values.Int64("id")
	if err != nil {
		return i, err
	}
	i.ID = id
	return i, nil
}

func newItemInserter(driver batchinsert.SQLDriver) *batchinsert.Inserter[item] {
	ins, err := batchinsert.NewInserter(itemMapping(), driver, setItemID)
	if err != nil {
		panic(err)
	}
	return ins.WithSuffixSource(batchinsert.NewCounterSuffixSource("t"))
}

func namedItems(names ...string) []item {
	out := make([]item, len(names))
	for i, n := range names {
		out[i] = item{Name: n}
	}
	return out
}
