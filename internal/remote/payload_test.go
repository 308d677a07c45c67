package remote

import (
	"errors"
	"testing"
	"time"
)

func TestParseSummary(t *testing.T) {
	p, err := parseSummary(&rawSummary{ID: "P-1", Name: "  Payment Revamp  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "P-1" || p.Name != "Payment Revamp" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestParseSummaryFallsBackToKey(t *testing.T) {
	p, err := parseSummary(&rawSummary{Key: "PROJ-9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "PROJ-9" {
		t.Errorf("expected id from key, got %q", p.ID)
	}
	if p.Name != "PROJ-9" {
		t.Errorf("expected name fallback to id, got %q", p.Name)
	}
}

func TestParseSummaryMissingID(t *testing.T) {
	_, err := parseSummary(&rawSummary{Name: "Nameless"})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseUpdate(t *testing.T) {
	raw := &rawUpdate{
		ID:           "U-1",
		CreationDate: "2026-08-30T10:00:00Z",
		Summary:      "<p>Shipped the <b>beta</b> today.</p>",
	}
	raw.NewState = &struct {
		Label string `json:"label"`
	}{Label: "On-Track"}

	p, err := parseUpdate("P-1", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ProjectID != "P-1" {
		t.Errorf("expected project P-1, got %q", p.ProjectID)
	}
	want, _ := time.Parse(time.RFC3339, "2026-08-30T10:00:00Z")
	if !p.CreatedAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, p.CreatedAt)
	}
	if p.StateLabel == nil || *p.StateLabel != "on-track" {
		t.Error("expected lowercased state label 'on-track'")
	}
	if p.Text != "Shipped the beta today." {
		t.Errorf("expected HTML stripped, got %q", p.Text)
	}
}

func TestParseUpdateRejectsBadTimestamp(t *testing.T) {
	_, err := parseUpdate("P-1", &rawUpdate{ID: "U-1", CreationDate: "yesterday"})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseUpdateRejectsMissingID(t *testing.T) {
	_, err := parseUpdate("P-1", &rawUpdate{CreationDate: "2026-08-30T10:00:00Z"})
	if err == nil {
		t.Fatal("expected error for missing id")
	}
}
