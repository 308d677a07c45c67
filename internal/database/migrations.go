package database

import "database/sql"

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    archived INTEGER DEFAULT 0,
    last_summary_fetch TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS updates (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    created_at TEXT NOT NULL,
    state_label TEXT,
    raw_text TEXT NOT NULL DEFAULT '',
    analyzed INTEGER DEFAULT 0,
    quality_score REAL,
    quality_level TEXT,
    quality_summary TEXT,
    missing_info TEXT,
    analyzed_at TEXT
);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_updates_project ON updates(project_id);
CREATE INDEX IF NOT EXISTS idx_updates_created ON updates(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_updates_analyzed ON updates(analyzed);
`)
			return err
		},
	},
}
