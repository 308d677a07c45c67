package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

const (
	metaVisibleProjects = "visible_projects"
	metaLastScanAt      = "last_scan_at"
)

// SetMeta stores a scalar metadata value.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMeta returns a scalar metadata value, or "" when unset.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetVisibleProjects replaces the currently-visible project ID index.
// The previous set is fully superseded; no project or update rows are pruned.
func (db *DB) SetVisibleProjects(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return db.SetMeta(metaVisibleProjects, string(data))
}

// GetVisibleProjects returns the currently-visible project ID index.
func (db *DB) GetVisibleProjects() ([]string, error) {
	raw, err := db.GetMeta(metaVisibleProjects)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SetLastScanAt records when the last pipeline run completed.
func (db *DB) SetLastScanAt(t time.Time) error {
	return db.SetMeta(metaLastScanAt, t.UTC().Format(time.RFC3339))
}

// GetLastScanAt returns when the last pipeline run completed, or the zero
// time when no run has completed yet.
func (db *DB) GetLastScanAt() (time.Time, error) {
	raw, err := db.GetMeta(metaLastScanAt)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}
