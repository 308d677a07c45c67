package database

// Project represents a tracked project synced from the remote workspace.
type Project struct {
	ID               string
	Name             string
	Archived         bool
	LastSummaryFetch *string // RFC 3339, nil until first summary fetch
	CreatedAt        *string
}

// Update represents a single timestamped status update for a project.
type Update struct {
	ID             string
	ProjectID      string
	CreatedAt      string // RFC 3339
	StateLabel     *string
	RawText        string
	Analyzed       bool
	QualityScore   *float64
	QualityLevel   *string
	QualitySummary *string
	MissingInfo    []string
	AnalyzedAt     *string
}

// QualityMetrics aggregates analysis results across all stored updates.
type QualityMetrics struct {
	TotalUpdates    int
	AnalyzedUpdates int
	AverageScore    float64
	Distribution    map[string]int // level -> count
}

// Stats contains aggregate database statistics for the status command.
type Stats struct {
	TotalProjects       int
	ProjectsWithSummary int
	TotalUpdates        int
	AnalyzedUpdates     int
}
