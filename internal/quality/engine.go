package quality

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/inference"
)

// Quality levels, inclusive lower bounds: >=90 excellent, >=75 good,
// >=50 fair, else poor.
const (
	LevelExcellent = "excellent"
	LevelGood      = "good"
	LevelFair      = "fair"
	LevelPoor      = "poor"
)

// CriterionResult is the per-criterion outcome of one scoring run.
type CriterionResult struct {
	CriterionID string
	Score       int // 0..Max
	Max         int
	Answers     []string
	Unanswered  []string
}

// Result is a complete scoring outcome for one update.
type Result struct {
	Score            float64 // 0..100
	Level            string
	CriterionResults []CriterionResult
	MissingInfo      []string
	Recommendations  []string
	Summary          string
}

// Asker is the inference capability the analyzer consumes.
type Asker interface {
	Ask(ctx context.Context, question, contextText string) (inference.Answer, error)
}

// Analyzer scores update text against the applicable criteria.
type Analyzer struct {
	asker Asker
	cache *Cache
}

// NewAnalyzer creates an analyzer backed by the given inference capability.
func NewAnalyzer(asker Asker, cacheTTL time.Duration) *Analyzer {
	return &Analyzer{asker: asker, cache: NewCache(cacheTTL)}
}

// AnalyzeUpdate produces a fully-populated result for an update. It never
// returns an error: inference failures yield a fallback poor/0 result so
// the caller can always mark the update analyzed.
func (a *Analyzer) AnalyzeUpdate(ctx context.Context, stateLabel *string, text string) *Result {
	fingerprint := Fingerprint(stateLabel, text)
	if cached, ok := a.cache.Get(fingerprint); ok {
		return cached
	}

	result, err := a.evaluate(ctx, stateLabel, text)
	if err != nil {
		log.Printf("Quality analysis failed: %v", err)
		return fallbackResult(err)
	}

	a.cache.Put(fingerprint, result)
	return result
}

func (a *Analyzer) evaluate(ctx context.Context, stateLabel *string, text string) (*Result, error) {
	criteria := ApplicableCriteria(stateLabel, text)
	if len(criteria) == 0 {
		return &Result{Level: LevelPoor, Summary: "No applicable criteria"}, nil
	}

	var results []CriterionResult
	for _, criterion := range criteria {
		cr, err := a.evaluateCriterion(ctx, criterion, text)
		if err != nil {
			return nil, fmt.Errorf("criterion %s: %w", criterion.ID, err)
		}
		results = append(results, cr)
	}

	return Score(results), nil
}

func (a *Analyzer) evaluateCriterion(ctx context.Context, criterion Criterion, text string) (CriterionResult, error) {
	cr := CriterionResult{CriterionID: criterion.ID, Max: criterion.RequiredAnswers}

	answered := 0
	for _, question := range criterion.Questions {
		answer, err := a.asker.Ask(ctx, question, text)
		if err != nil {
			return cr, err
		}
		if trimmed := strings.TrimSpace(answer.Text); trimmed != "" {
			answered++
			cr.Answers = append(cr.Answers, trimmed)
		} else {
			cr.Unanswered = append(cr.Unanswered, question)
		}
	}

	cr.Score = answered
	if cr.Score > criterion.RequiredAnswers {
		cr.Score = criterion.RequiredAnswers
	}
	return cr, nil
}

// Score aggregates criterion results into a final result. It is a pure
// function of its input, so identical inference answers always reproduce
// the same score and level. Criteria contribute equally; the per-criterion
// weight is intentionally not applied.
func Score(results []CriterionResult) *Result {
	totalScore, totalMax := 0, 0
	var missing []string
	for _, cr := range results {
		totalScore += cr.Score
		totalMax += cr.Max
		missing = append(missing, cr.Unanswered...)
	}

	if totalMax == 0 {
		return &Result{
			Level:            LevelPoor,
			CriterionResults: results,
			Summary:          "No applicable criteria",
		}
	}

	score := 100 * float64(totalScore) / float64(totalMax)
	recommendations := make([]string, len(missing))
	for i, q := range missing {
		recommendations[i] = "Provide: " + q
	}

	return &Result{
		Score:            score,
		Level:            LevelForScore(score),
		CriterionResults: results,
		MissingInfo:      missing,
		Recommendations:  recommendations,
		Summary: fmt.Sprintf("Scored %.0f/100 (%s), %d of %d required answers present",
			score, LevelForScore(score), totalScore, totalMax),
	}
}

// LevelForScore maps a score to its quality level.
func LevelForScore(score float64) string {
	switch {
	case score >= 90:
		return LevelExcellent
	case score >= 75:
		return LevelGood
	case score >= 50:
		return LevelFair
	default:
		return LevelPoor
	}
}

// fallbackResult is the terminal degraded outcome: zero score, poor level,
// and a non-generic summary naming the failure. Never cached.
func fallbackResult(err error) *Result {
	return &Result{
		Score:   0,
		Level:   LevelPoor,
		Summary: fmt.Sprintf("Analysis unavailable: %v", err),
	}
}
