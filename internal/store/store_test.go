package store

import "testing"

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
		n    int
		want string
	}{
		{"postgres first", DialectPostgres, 1, "$1"},
		{"postgres third", DialectPostgres, 3, "$3"},
		{"sqlite always question mark", DialectSQLite, 1, "?"},
		{"sqlite higher position still question mark", DialectSQLite, 5, "?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Placeholder(tt.d, tt.n); got != tt.want {
				t.Errorf("Placeholder(%v, %d) = %q, want %q", tt.d, tt.n, got, tt.want)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	schema := `
CREATE TABLE a (id INTEGER);

CREATE TABLE b (id INTEGER);
`
	stmts := splitStatements(schema)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %v", len(stmts), stmts)
	}
	for _, s := range stmts {
		if s == "" {
			t.Errorf("unexpected empty statement in %v", stmts)
		}
	}
}

func TestSchemaCoversBothDialects(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectSQLite} {
		if Schema(d) == "" {
			t.Errorf("Schema(%v) returned empty DDL", d)
		}
	}
}
