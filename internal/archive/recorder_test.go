package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
)

// execRecorder is a database/sql driver that keeps every Exec call.
type execRecorder struct {
	mu    sync.Mutex
	execs []recordedExec
}

type recordedExec struct {
	query string
	args  []driver.Value
}

func newRecordingRepository() (*Repository, *execRecorder) {
	rec := &execRecorder{}
	return &Repository{db: sql.OpenDB(rec)}, rec
}

func (r *execRecorder) Connect(context.Context) (driver.Conn, error) { return recorderConn{r}, nil }
func (r *execRecorder) Driver() driver.Driver                       { return r }
func (r *execRecorder) Open(string) (driver.Conn, error)            { return recorderConn{r}, nil }

func (r *execRecorder) calls() []recordedExec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedExec(nil), r.execs...)
}

type recorderConn struct{ r *execRecorder }

func (c recorderConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c recorderConn) Close() error              { return nil }
func (c recorderConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c recorderConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	vals := make([]driver.Value, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.r.mu.Lock()
	c.r.execs = append(c.r.execs, recordedExec{query: query, args: vals})
	c.r.mu.Unlock()
	return driver.RowsAffected(1), nil
}
