package rbind

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSQLDriver is a minimal database/sql/driver.Driver used to exercise
// RunQuery/Exec/WithTransaction (and, through them, Querier/Execer/
// Beginner) against a real *sql.DB without a real database connection.
type fakeSQLDriver struct{}

func (fakeSQLDriver) Open(name string) (driver.Conn, error) { return &fakeSQLConn{}, nil }

type fakeSQLConn struct{ txRolledBack bool }

func (c *fakeSQLConn) Prepare(query string) (driver.Stmt, error) { return &fakeSQLStmt{}, nil }
func (c *fakeSQLConn) Close() error                              { return nil }
func (c *fakeSQLConn) Begin() (driver.Tx, error)                 { return &fakeSQLTx{conn: c}, nil }

func (c *fakeSQLConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return &fakeSQLRows{cols: []string{"id"}, data: [][]driver.Value{{int64(1)}}}, nil
}

func (c *fakeSQLConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return fakeSQLResult{}, nil
}

type fakeSQLStmt struct{}

func (s *fakeSQLStmt) Close() error  { return nil }
func (s *fakeSQLStmt) NumInput() int { return -1 }
func (s *fakeSQLStmt) Exec(args []driver.Value) (driver.Result, error) {
	return fakeSQLResult{}, nil
}
func (s *fakeSQLStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &fakeSQLRows{cols: []string{"id"}, data: [][]driver.Value{{int64(1)}}}, nil
}

type fakeSQLTx struct{ conn *fakeSQLConn }

func (t *fakeSQLTx) Commit() error   { return nil }
func (t *fakeSQLTx) Rollback() error { t.conn.txRolledBack = true; return nil }

type fakeSQLResult struct{}

func (fakeSQLResult) LastInsertId() (int64, error) { return 1, nil }
func (fakeSQLResult) RowsAffected() (int64, error) { return 1, nil }

type fakeSQLRows struct {
	cols []string
	data [][]driver.Value
	pos  int
}

func (r *fakeSQLRows) Columns() []string { return r.cols }
func (r *fakeSQLRows) Close() error      { return nil }
func (r *fakeSQLRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

func init() {
	sql.Register("rbindfake", fakeSQLDriver{})
}

func TestRunQueryWrapsRowsInSQLCursor(t *testing.T) {
	db, err := sql.Open("rbindfake", "")
	require.NoError(t, err)
	defer db.Close()

	cur, err := RunQuery(context.Background(), db, "select id from t")
	require.NoError(t, err)
	require.True(t, cur.Next())
	assert.Equal(t, 1, cur.FieldCount())

	v, err := cur.Value(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestExecRunsStatementAgainstExecer(t *testing.T) {
	db, err := sql.Open("rbindfake", "")
	require.NoError(t, err)
	defer db.Close()

	res, err := Exec(context.Background(), db, "delete from t")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWithTransactionCommitsOnSuccess(t *testing.T) {
	db, err := sql.Open("rbindfake", "")
	require.NoError(t, err)
	defer db.Close()

	var ran bool
	err = WithTransaction(context.Background(), db, nil, func(tx *sql.Tx) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db, err := sql.Open("rbindfake", "")
	require.NoError(t, err)
	defer db.Close()

	boom := errConversion("boom")
	err = WithTransaction(context.Background(), db, nil, func(tx *sql.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}
