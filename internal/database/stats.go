package database

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM projects").Scan(&s.TotalProjects); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM projects WHERE last_summary_fetch IS NOT NULL",
	).Scan(&s.ProjectsWithSummary); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM updates").Scan(&s.TotalUpdates); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM updates WHERE analyzed = 1",
	).Scan(&s.AnalyzedUpdates); err != nil {
		return nil, err
	}
	return s, nil
}
