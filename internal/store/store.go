// Package store provides the dialect-abstraction adapter over the
// persistent SQL database: an exec/query surface plus a bounded pool,
// given two concrete backings (postgresql via pgx, sqlite via
// modernc.org/sqlite) behind one interface so the rest of the service
// never branches on dialect.
package store

import (
	"context"
	"time"
)

// Row is the narrow surface the Data Layer needs from a single-row result.
type Row interface {
	Scan(dest ...interface{}) error
}

// Rows is the narrow surface needed from a multi-row result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close()
	Err() error
}

// Store is the dialect-abstraction adapter. Every write goes through Exec;
// every read through Query/QueryRow. Implementations own a bounded
// connection pool, typically 2-15 connections.
type Store interface {
	Exec(ctx context.Context, query string, args ...interface{}) (rowsAffected int64, err error)
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Ping(ctx context.Context) error
	Close()
}

// Dialect identifies which placeholder style and upsert syntax a query
// template should use.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// ConnectTimeout bounds how long Open may block before giving up on the
// backing database — missing/unreachable DBs are a fatal startup failure,
// not a runtime retry loop.
const ConnectTimeout = 10 * time.Second
