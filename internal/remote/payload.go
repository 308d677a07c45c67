package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/k3a/html2text"
)

// SummaryPayload is a validated project summary from the remote.
type SummaryPayload struct {
	ID       string
	Name     string
	Archived bool
}

// UpdatePayload is a validated project update from the remote. Text is
// plain text; HTML bodies are converted at this boundary.
type UpdatePayload struct {
	ID         string
	ProjectID  string
	CreatedAt  time.Time
	StateLabel *string
	Text       string
}

// ParseError marks a payload that failed boundary validation. Invalid
// payloads fail loudly here instead of propagating partial data inward.
type ParseError struct {
	Kind   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, e.Reason)
}

type rawSummary struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

type rawUpdate struct {
	ID           string `json:"id"`
	CreationDate string `json:"creationDate"`
	Summary      string `json:"summary"`
	NewState     *struct {
		Label string `json:"label"`
	} `json:"newState"`
}

func parseSummary(raw *rawSummary) (*SummaryPayload, error) {
	id := raw.ID
	if id == "" {
		id = raw.Key
	}
	if id == "" {
		return nil, &ParseError{Kind: "summary", Reason: "missing project id"}
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = id
	}

	return &SummaryPayload{ID: id, Name: name, Archived: raw.Archived}, nil
}

func parseUpdate(projectID string, raw *rawUpdate) (*UpdatePayload, error) {
	if raw.ID == "" {
		return nil, &ParseError{Kind: "update", Reason: "missing update id"}
	}
	if raw.CreationDate == "" {
		return nil, &ParseError{Kind: "update", Reason: "missing creation date for " + raw.ID}
	}

	createdAt, err := time.Parse(time.RFC3339, raw.CreationDate)
	if err != nil {
		return nil, &ParseError{
			Kind:   "update",
			Reason: fmt.Sprintf("bad creation date %q for %s", raw.CreationDate, raw.ID),
		}
	}

	var stateLabel *string
	if raw.NewState != nil && raw.NewState.Label != "" {
		label := strings.ToLower(strings.TrimSpace(raw.NewState.Label))
		stateLabel = &label
	}

	return &UpdatePayload{
		ID:         raw.ID,
		ProjectID:  projectID,
		CreatedAt:  createdAt,
		StateLabel: stateLabel,
		Text:       htmlToText(raw.Summary),
	}, nil
}

// htmlToText converts an HTML update body to normalized plain text.
// Bodies may arrive as plain text already; conversion is harmless then.
func htmlToText(body string) string {
	text := html2text.HTML2Text(body)
	return strings.Join(strings.Fields(text), " ")
}
