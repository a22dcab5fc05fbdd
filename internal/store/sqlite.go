package store

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite" // pure-Go driver, registers "sqlite"
)

// SQLiteStore adapts database/sql (driven by modernc.org/sqlite, which needs
// no cgo) to the Store interface for DATABASE_TYPE=sqlite deployments.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dsn (a file path, or ":memory:") through the pure-Go
// sqlite driver and bounds the pool the same way the postgres adapter does.
func OpenSQLite(ctx context.Context, dsn string, maxConns int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	// sqlite only tolerates a single writer; modernc.org/sqlite serializes
	// internally but keeping one idle connection avoids needless churn.
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRowsAdapter{rows: rows}, nil
}

func (s *SQLiteStore) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() { s.db.Close() }

type sqlRowsAdapter struct {
	rows *sql.Rows
}

func (a *sqlRowsAdapter) Next() bool                    { return a.rows.Next() }
func (a *sqlRowsAdapter) Scan(dest ...interface{}) error { return a.rows.Scan(dest...) }
func (a *sqlRowsAdapter) Close()                         { a.rows.Close() }
func (a *sqlRowsAdapter) Err() error                     { return a.rows.Err() }
