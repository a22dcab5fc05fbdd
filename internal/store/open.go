package store

import (
	"context"
	"strings"
)

// Open connects to the configured database and applies the schema,
// dispatching on dbType. A missing or unreachable database is a fatal
// startup failure — there is no retry loop here.
func Open(ctx context.Context, dbType, dsn string) (Store, Dialect, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	var s Store
	var dialect Dialect
	var err error

	switch dbType {
	case "postgresql":
		dialect = DialectPostgres
		s, err = OpenPostgres(ctx, dsn, 2, 15)
	default:
		dialect = DialectSQLite
		s, err = OpenSQLite(ctx, dsn, 8)
	}
	if err != nil {
		return nil, dialect, err
	}

	if err := applySchema(ctx, s, dialect); err != nil {
		s.Close()
		return nil, dialect, err
	}
	return s, dialect, nil
}

// applySchema runs each DDL statement individually so both the pgx pool and
// the database/sql-backed sqlite adapter behave the same way regardless of
// whether their driver supports multi-statement Exec calls.
func applySchema(ctx context.Context, s Store, d Dialect) error {
	for _, stmt := range splitStatements(Schema(d)) {
		if _, err := s.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(schema string) []string {
	raw := strings.Split(schema, ";")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
