package datalayer

import (
	"context"

	"github.com/rts-ladder/ranked-core/internal/store"
)

// fakeStore is a minimal in-memory stand-in for store.Store: every Query
// returns zero rows (simulating an empty fresh database) and every Exec
// succeeds without doing anything. Good enough to exercise the Data
// Layer's in-memory mirror logic without a real database.
type fakeStore struct {
	execCalls []string
	failExec  bool
}

func (f *fakeStore) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	f.execCalls = append(f.execCalls, query)
	if f.failExec {
		return 0, errExecFailed
	}
	return 1, nil
}

func (f *fakeStore) Query(ctx context.Context, query string, args ...interface{}) (store.Rows, error) {
	return &fakeRows{}, nil
}

func (f *fakeStore) QueryRow(ctx context.Context, query string, args ...interface{}) store.Row {
	return &fakeRow{}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close()                         {}

type fakeRows struct{}

func (r *fakeRows) Next() bool                    { return false }
func (r *fakeRows) Scan(dest ...interface{}) error { return nil }
func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                     { return nil }

type fakeRow struct{}

func (r *fakeRow) Scan(dest ...interface{}) error { return nil }

type testError string

func (e testError) Error() string { return string(e) }

var errExecFailed = testError("exec failed")
