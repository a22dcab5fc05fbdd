package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore adapts *pgxpool.Pool to the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres establishes a bounded connection pool (typically 2-15
// connections) against dsn.
func OpenPostgres(ctx context.Context, dsn string, minConns, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MinConns = minConns
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRowsAdapter{rows: rows}, nil
}

func (s *PostgresStore) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return s.pool.QueryRow(ctx, query, args...)
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() { s.pool.Close() }

type pgxRowsAdapter struct {
	rows pgx.Rows
}

func (a *pgxRowsAdapter) Next() bool                       { return a.rows.Next() }
func (a *pgxRowsAdapter) Scan(dest ...interface{}) error    { return a.rows.Scan(dest...) }
func (a *pgxRowsAdapter) Close()                            { a.rows.Close() }
func (a *pgxRowsAdapter) Err() error                        { return a.rows.Err() }
