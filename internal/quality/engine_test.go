package quality

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/inference"
)

// mockAsker answers questions from a fixed map; unmapped questions get an
// empty answer.
type mockAsker struct {
	mu       sync.Mutex
	answers  map[string]string
	err      error
	askCount int
}

func (m *mockAsker) Ask(_ context.Context, question, _ string) (inference.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.askCount++
	if m.err != nil {
		return inference.Answer{}, m.err
	}
	return inference.Answer{Text: m.answers[question], Confidence: 0.9}, nil
}

func (m *mockAsker) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.askCount
}

func allAnswered() map[string]string {
	answers := make(map[string]string)
	for _, c := range append([]Criterion{decisionCriterion, dateChangeCriterion}, stateCriteriaList()...) {
		for _, q := range c.Questions {
			answers[q] = "an answer"
		}
	}
	return answers
}

func stateCriteriaList() []Criterion {
	var out []Criterion
	for _, c := range stateCriteria {
		out = append(out, c)
	}
	return out
}

func TestAnalyzeFullyAnsweredUpdate(t *testing.T) {
	asker := &mockAsker{answers: allAnswered()}
	a := NewAnalyzer(asker, time.Minute)

	result := a.AnalyzeUpdate(context.Background(), nil, "We need sign-off from legal by Friday.")
	if result.Score != 100 {
		t.Errorf("expected score 100, got %v", result.Score)
	}
	if result.Level != LevelExcellent {
		t.Errorf("expected excellent, got %q", result.Level)
	}
	if len(result.MissingInfo) != 0 {
		t.Errorf("expected no missing info, got %v", result.MissingInfo)
	}
}

func TestAnalyzeUnansweredQuestionsLowerScore(t *testing.T) {
	asker := &mockAsker{answers: map[string]string{
		decisionCriterion.Questions[0]: "Need budget approval",
	}}
	a := NewAnalyzer(asker, time.Minute)

	result := a.AnalyzeUpdate(context.Background(), nil, "Things are happening.")
	// 1 of 2 required answers -> 50
	if result.Score != 50 {
		t.Errorf("expected score 50, got %v", result.Score)
	}
	if result.Level != LevelFair {
		t.Errorf("expected fair, got %q", result.Level)
	}
	if len(result.MissingInfo) != 2 {
		t.Errorf("expected 2 unanswered questions, got %d", len(result.MissingInfo))
	}
	for _, rec := range result.Recommendations {
		if !strings.HasPrefix(rec, "Provide: ") {
			t.Errorf("expected imperative recommendation, got %q", rec)
		}
	}
}

func TestAnalyzeStateLabelActivatesCriterion(t *testing.T) {
	asker := &mockAsker{answers: allAnswered()}
	a := NewAnalyzer(asker, time.Minute)

	label := StateOffTrack
	a.AnalyzeUpdate(context.Background(), &label, "Supply chain delays.")

	// decision (3 questions) + off-track (3 questions)
	if asker.calls() != 6 {
		t.Errorf("expected 6 ask calls, got %d", asker.calls())
	}
}

func TestAnalyzeDateHeuristicActivatesCriterion(t *testing.T) {
	asker := &mockAsker{answers: allAnswered()}
	a := NewAnalyzer(asker, time.Minute)

	a.AnalyzeUpdate(context.Background(), nil, "The due date moved to next sprint.")

	// decision (3 questions) + date-change (2 questions)
	if asker.calls() != 5 {
		t.Errorf("expected 5 ask calls, got %d", asker.calls())
	}
}

func TestAnalyzeCacheHitSkipsInference(t *testing.T) {
	asker := &mockAsker{answers: allAnswered()}
	a := NewAnalyzer(asker, time.Minute)

	text := "We need sign-off from legal by Friday."
	first := a.AnalyzeUpdate(context.Background(), nil, text)
	calls := asker.calls()

	// Same normalized content: different case and spacing
	second := a.AnalyzeUpdate(context.Background(), nil, "  we NEED sign-off   from legal by friday. ")
	if asker.calls() != calls {
		t.Errorf("expected zero ask calls on cache hit, got %d more", asker.calls()-calls)
	}
	if second.Score != first.Score || second.Level != first.Level {
		t.Error("expected identical cached result")
	}
}

func TestAnalyzeFailureYieldsFallback(t *testing.T) {
	asker := &mockAsker{err: errors.New("backend unavailable")}
	a := NewAnalyzer(asker, time.Minute)

	result := a.AnalyzeUpdate(context.Background(), nil, "Some update text.")
	if result.Score != 0 {
		t.Errorf("expected score 0, got %v", result.Score)
	}
	if result.Level != LevelPoor {
		t.Errorf("expected poor, got %q", result.Level)
	}
	if !strings.Contains(result.Summary, "backend unavailable") {
		t.Errorf("expected non-generic summary, got %q", result.Summary)
	}
}

func TestAnalyzeFailureNotCached(t *testing.T) {
	asker := &mockAsker{err: errors.New("transient")}
	a := NewAnalyzer(asker, time.Minute)

	a.AnalyzeUpdate(context.Background(), nil, "Some update text.")

	// Backend recovers; the retry must reach inference, not the cache.
	asker.mu.Lock()
	asker.err = nil
	asker.answers = allAnswered()
	asker.mu.Unlock()

	result := a.AnalyzeUpdate(context.Background(), nil, "Some update text.")
	if result.Score != 100 {
		t.Errorf("expected fresh evaluation after recovery, got score %v", result.Score)
	}
}

func TestScoreDeterminism(t *testing.T) {
	results := []CriterionResult{
		{CriterionID: "a", Score: 2, Max: 2},
		{CriterionID: "b", Score: 1, Max: 3, Unanswered: []string{"q1", "q2"}},
	}
	first := Score(results)
	second := Score(results)
	if first.Score != second.Score || first.Level != second.Level {
		t.Error("expected identical results for identical inputs")
	}
	if first.Score != 60 {
		t.Errorf("expected 60, got %v", first.Score)
	}
}

func TestLevelThresholdBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{100, LevelExcellent},
		{90, LevelExcellent},
		{89.999, LevelGood},
		{75, LevelGood},
		{74.999, LevelFair},
		{50, LevelFair},
		{49.999, LevelPoor},
		{0, LevelPoor},
	}
	for _, tc := range cases {
		if got := LevelForScore(tc.score); got != tc.want {
			t.Errorf("LevelForScore(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestApplicableCriteria(t *testing.T) {
	criteria := ApplicableCriteria(nil, "plain text")
	if len(criteria) != 1 || criteria[0].ID != "decision-required" {
		t.Errorf("expected only decision criterion, got %d", len(criteria))
	}

	label := "At-Risk"
	criteria = ApplicableCriteria(&label, "plain text")
	if len(criteria) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(criteria))
	}
	if criteria[1].ID != "at-risk" {
		t.Errorf("expected at-risk criterion, got %q", criteria[1].ID)
	}

	criteria = ApplicableCriteria(&label, "new due date is Friday")
	if len(criteria) != 3 {
		t.Errorf("expected 3 criteria with date heuristic, got %d", len(criteria))
	}
}

func TestFingerprintNormalization(t *testing.T) {
	if Fingerprint(nil, "Hello  World") != Fingerprint(nil, "hello world") {
		t.Error("expected normalized texts to share a fingerprint")
	}
	if Fingerprint(nil, "hello") == Fingerprint(nil, "goodbye") {
		t.Error("expected different texts to differ")
	}
	label := StatePaused
	if Fingerprint(&label, "hello") == Fingerprint(nil, "hello") {
		t.Error("expected state label to affect the fingerprint")
	}
}
