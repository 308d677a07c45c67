package database

import (
	"database/sql"
	"time"
)

// UpsertProjectSummary inserts or refreshes a project row from a summary
// fetch and stamps last_summary_fetch.
func (db *DB) UpsertProjectSummary(id, name string, archived bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.Exec(
		`INSERT INTO projects (id, name, archived, last_summary_fetch)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			archived = excluded.archived,
			last_summary_fetch = excluded.last_summary_fetch`,
		id, name, boolToInt(archived), now,
	)
	return err
}

// EnsureProject inserts a bare project row if none exists. Used when an
// update arrives for a project whose summary has not been fetched yet.
func (db *DB) EnsureProject(id string) error {
	_, err := db.conn.Exec(
		"INSERT INTO projects (id) VALUES (?) ON CONFLICT(id) DO NOTHING", id,
	)
	return err
}

// HasSummary reports whether a summary has ever been fetched for the project.
func (db *DB) HasSummary(id string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM projects WHERE id = ? AND last_summary_fetch IS NOT NULL", id,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetProject returns a single project by ID, or nil if absent.
func (db *DB) GetProject(id string) (*Project, error) {
	row := db.conn.QueryRow(
		`SELECT id, name, archived, last_summary_fetch, created_at
		FROM projects WHERE id = ?`, id,
	)
	var p Project
	var archived int
	err := row.Scan(&p.ID, &p.Name, &archived, &p.LastSummaryFetch, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Archived = archived != 0
	return &p, nil
}

// GetAllProjects returns all projects ordered by name.
func (db *DB) GetAllProjects() ([]Project, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, archived, last_summary_fetch, created_at
		FROM projects ORDER BY name, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var archived int
		if err := rows.Scan(&p.ID, &p.Name, &archived, &p.LastSummaryFetch, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Archived = archived != 0
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
