package store

import "fmt"

// Placeholder returns the positional-parameter marker for dialect d at
// 1-based position n ("$1" for postgres, "?" for sqlite).
func Placeholder(d Dialect, n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// schemaPostgres creates every table the core needs, one table each:
// players, rating rows, matches, replay artifacts, preferences,
// command-call audit, action log. All monotonic IDs; timestamps
// ISO-8601 (TIMESTAMPTZ under postgres, RFC3339 TEXT under sqlite).
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS players (
	id BIGINT PRIMARY KEY,
	display_name TEXT NOT NULL,
	battle_tag TEXT NOT NULL DEFAULT '',
	alt_name_1 TEXT NOT NULL DEFAULT '',
	alt_name_2 TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT 'XX',
	region TEXT NOT NULL DEFAULT '',
	accepted_tos BOOLEAN NOT NULL DEFAULT FALSE,
	completed_setup BOOLEAN NOT NULL DEFAULT FALSE,
	activated BOOLEAN NOT NULL DEFAULT FALSE,
	abort_quota INTEGER NOT NULL DEFAULT 3,
	abort_quota_reset_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	accepted_tos_date TIMESTAMPTZ,
	completed_setup_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rating_rows (
	player_id BIGINT NOT NULL,
	race_code TEXT NOT NULL,
	mmr INTEGER NOT NULL DEFAULT 1200,
	games_played INTEGER NOT NULL DEFAULT 0,
	games_won INTEGER NOT NULL DEFAULT 0,
	games_lost INTEGER NOT NULL DEFAULT 0,
	games_drawn INTEGER NOT NULL DEFAULT 0,
	last_played TIMESTAMPTZ,
	PRIMARY KEY (player_id, race_code)
);

CREATE TABLE IF NOT EXISTS preferences (
	player_id BIGINT PRIMARY KEY,
	races TEXT NOT NULL DEFAULT '[]',
	vetoes TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS matches (
	id BIGSERIAL PRIMARY KEY,
	player_1_id BIGINT NOT NULL,
	player_2_id BIGINT NOT NULL,
	race_1 TEXT NOT NULL,
	race_2 TEXT NOT NULL,
	map TEXT NOT NULL,
	server TEXT NOT NULL,
	replay_1_hash TEXT NOT NULL DEFAULT '',
	replay_1_uploaded_at TIMESTAMPTZ,
	replay_2_hash TEXT NOT NULL DEFAULT '',
	replay_2_uploaded_at TIMESTAMPTZ,
	report_1 TEXT NOT NULL DEFAULT '',
	report_2 TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	delta_1 INTEGER NOT NULL DEFAULT 0,
	delta_2 INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	played_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS replay_artifacts (
	hash TEXT PRIMARY KEY,
	uploaded_at TIMESTAMPTZ NOT NULL,
	uploader_id BIGINT NOT NULL,
	parsed_duration_ms BIGINT NOT NULL DEFAULT 0,
	map_name TEXT NOT NULL DEFAULT '',
	storage_ref TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS command_call_audit (
	id BIGSERIAL PRIMARY KEY,
	player_id BIGINT NOT NULL,
	command TEXT NOT NULL,
	args TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS action_log (
	id BIGSERIAL PRIMARY KEY,
	player_id BIGINT NOT NULL,
	field TEXT NOT NULL,
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	source TEXT NOT NULL DEFAULT 'user'
);
`

// schemaSQLite mirrors schemaPostgres with sqlite-compatible types.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS players (
	id INTEGER PRIMARY KEY,
	display_name TEXT NOT NULL,
	battle_tag TEXT NOT NULL DEFAULT '',
	alt_name_1 TEXT NOT NULL DEFAULT '',
	alt_name_2 TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT 'XX',
	region TEXT NOT NULL DEFAULT '',
	accepted_tos INTEGER NOT NULL DEFAULT 0,
	completed_setup INTEGER NOT NULL DEFAULT 0,
	activated INTEGER NOT NULL DEFAULT 0,
	abort_quota INTEGER NOT NULL DEFAULT 3,
	abort_quota_reset_at TEXT NOT NULL,
	accepted_tos_date TEXT,
	completed_setup_date TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rating_rows (
	player_id INTEGER NOT NULL,
	race_code TEXT NOT NULL,
	mmr INTEGER NOT NULL DEFAULT 1200,
	games_played INTEGER NOT NULL DEFAULT 0,
	games_won INTEGER NOT NULL DEFAULT 0,
	games_lost INTEGER NOT NULL DEFAULT 0,
	games_drawn INTEGER NOT NULL DEFAULT 0,
	last_played TEXT,
	PRIMARY KEY (player_id, race_code)
);

CREATE TABLE IF NOT EXISTS preferences (
	player_id INTEGER PRIMARY KEY,
	races TEXT NOT NULL DEFAULT '[]',
	vetoes TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS matches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player_1_id INTEGER NOT NULL,
	player_2_id INTEGER NOT NULL,
	race_1 TEXT NOT NULL,
	race_2 TEXT NOT NULL,
	map TEXT NOT NULL,
	server TEXT NOT NULL,
	replay_1_hash TEXT NOT NULL DEFAULT '',
	replay_1_uploaded_at TEXT,
	replay_2_hash TEXT NOT NULL DEFAULT '',
	replay_2_uploaded_at TEXT,
	report_1 TEXT NOT NULL DEFAULT '',
	report_2 TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	delta_1 INTEGER NOT NULL DEFAULT 0,
	delta_2 INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	played_at TEXT
);

CREATE TABLE IF NOT EXISTS replay_artifacts (
	hash TEXT PRIMARY KEY,
	uploaded_at TEXT NOT NULL,
	uploader_id INTEGER NOT NULL,
	parsed_duration_ms INTEGER NOT NULL DEFAULT 0,
	map_name TEXT NOT NULL DEFAULT '',
	storage_ref TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS command_call_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player_id INTEGER NOT NULL,
	command TEXT NOT NULL,
	args TEXT NOT NULL DEFAULT '',
	timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS action_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player_id INTEGER NOT NULL,
	field TEXT NOT NULL,
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	timestamp TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'user'
);
`

// Schema returns the DDL batch for dialect d. Callers execute it once at
// startup before the Data Layer begins loading frames.
func Schema(d Dialect) string {
	if d == DialectPostgres {
		return schemaPostgres
	}
	return schemaSQLite
}
