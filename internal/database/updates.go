package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// InsertUpdate inserts an update fetched from the remote. Returns true if
// the row was new, false if an update with the same ID already existed
// (existing rows are left untouched so analysis results survive refetches).
func (db *DB) InsertUpdate(id, projectID, createdAt string, stateLabel *string, rawText string) (bool, error) {
	res, err := db.conn.Exec(
		`INSERT INTO updates (id, project_id, created_at, state_label, raw_text)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, projectID, createdAt, stateLabel, rawText,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetUpdate returns a single update by ID, or nil if absent.
func (db *DB) GetUpdate(id string) (*Update, error) {
	row := db.conn.QueryRow(
		`SELECT id, project_id, created_at, state_label, raw_text, analyzed,
		quality_score, quality_level, quality_summary, missing_info, analyzed_at
		FROM updates WHERE id = ?`, id,
	)
	u, err := scanUpdateRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUpdatesForProject returns a project's updates, newest first.
func (db *DB) GetUpdatesForProject(projectID string) ([]Update, error) {
	rows, err := db.conn.Query(
		`SELECT id, project_id, created_at, state_label, raw_text, analyzed,
		quality_score, quality_level, quality_summary, missing_info, analyzed_at
		FROM updates WHERE project_id = ? ORDER BY created_at DESC`, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUpdates(rows)
}

// CountUpdatesForProject returns how many updates are stored for a project.
func (db *DB) CountUpdatesForProject(projectID string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM updates WHERE project_id = ?", projectID,
	).Scan(&n)
	return n, err
}

// NewestUpdateTime returns the created_at of the project's newest update,
// or the zero time when the project has no updates.
func (db *DB) NewestUpdateTime(projectID string) (time.Time, error) {
	var created sql.NullString
	err := db.conn.QueryRow(
		"SELECT MAX(created_at) FROM updates WHERE project_id = ?", projectID,
	).Scan(&created)
	if err != nil {
		return time.Time{}, err
	}
	if !created.Valid || created.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, created.String)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// GetUnanalyzedUpdates returns updates that have not been scored yet,
// oldest first.
func (db *DB) GetUnanalyzedUpdates() ([]Update, error) {
	rows, err := db.conn.Query(
		`SELECT id, project_id, created_at, state_label, raw_text, analyzed,
		quality_score, quality_level, quality_summary, missing_info, analyzed_at
		FROM updates WHERE analyzed = 0 ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUpdates(rows)
}

// SaveAnalysis writes the scoring result for an update and marks it analyzed.
func (db *DB) SaveAnalysis(updateID string, score float64, level, summary string, missingInfo []string) error {
	var missing *string
	if len(missingInfo) > 0 {
		data, err := json.Marshal(missingInfo)
		if err != nil {
			return err
		}
		s := string(data)
		missing = &s
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.Exec(
		`UPDATE updates SET analyzed = 1, quality_score = ?, quality_level = ?,
		quality_summary = ?, missing_info = ?, analyzed_at = ? WHERE id = ?`,
		score, level, summary, missing, now, updateID,
	)
	return err
}

// GetQualityMetrics aggregates analysis results across all updates.
func (db *DB) GetQualityMetrics() (*QualityMetrics, error) {
	m := &QualityMetrics{Distribution: make(map[string]int)}

	err := db.conn.QueryRow("SELECT COUNT(*) FROM updates").Scan(&m.TotalUpdates)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRow(
		"SELECT COUNT(*), COALESCE(AVG(quality_score), 0) FROM updates WHERE analyzed = 1",
	).Scan(&m.AnalyzedUpdates, &m.AverageScore)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		`SELECT quality_level, COUNT(*) FROM updates
		WHERE analyzed = 1 AND quality_level IS NOT NULL GROUP BY quality_level`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		m.Distribution[level] = count
	}
	return m, rows.Err()
}

func scanUpdates(rows *sql.Rows) ([]Update, error) {
	var updates []Update
	for rows.Next() {
		var u Update
		var analyzed int
		var missing *string
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.CreatedAt, &u.StateLabel,
			&u.RawText, &analyzed, &u.QualityScore, &u.QualityLevel,
			&u.QualitySummary, &missing, &u.AnalyzedAt); err != nil {
			return nil, err
		}
		u.Analyzed = analyzed != 0
		u.MissingInfo = decodeMissing(missing)
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func scanUpdateRow(row *sql.Row) (*Update, error) {
	var u Update
	var analyzed int
	var missing *string
	if err := row.Scan(&u.ID, &u.ProjectID, &u.CreatedAt, &u.StateLabel,
		&u.RawText, &analyzed, &u.QualityScore, &u.QualityLevel,
		&u.QualitySummary, &missing, &u.AnalyzedAt); err != nil {
		return nil, err
	}
	u.Analyzed = analyzed != 0
	u.MissingInfo = decodeMissing(missing)
	return &u, nil
}

func decodeMissing(raw *string) []string {
	if raw == nil || *raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return nil
	}
	return out
}
