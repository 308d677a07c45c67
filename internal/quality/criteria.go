// Package quality scores project status updates against a criteria rubric.
package quality

import "strings"

// Criterion is a named rubric used to judge an update's completeness.
// Weight is carried for forward compatibility but is not applied during
// aggregation; all applicable criteria currently contribute equally.
type Criterion struct {
	ID              string
	Title           string
	Questions       []string
	RequiredAnswers int // answers needed for full credit
	Weight          float64
}

// State labels that activate additional criteria.
const (
	StatePaused      = "paused"
	StateOffTrack    = "off-track"
	StateAtRisk      = "at-risk"
	StateBackOnTrack = "back-on-track"
)

var decisionCriterion = Criterion{
	ID:    "decision-required",
	Title: "Decisions and support",
	Questions: []string{
		"What decision or support is needed?",
		"Who needs to provide the decision or support?",
		"By when is the decision needed?",
	},
	RequiredAnswers: 2,
	Weight:          1.0,
}

var stateCriteria = map[string]Criterion{
	StatePaused: {
		ID:    "paused",
		Title: "Pause explanation",
		Questions: []string{
			"Why is the project paused?",
			"When is work expected to resume?",
		},
		RequiredAnswers: 2,
		Weight:          1.0,
	},
	StateOffTrack: {
		ID:    "off-track",
		Title: "Off-track recovery plan",
		Questions: []string{
			"Why is the project off track?",
			"What is the impact of being off track?",
			"What actions are being taken to get back on track?",
		},
		RequiredAnswers: 3,
		Weight:          1.5,
	},
	StateAtRisk: {
		ID:    "at-risk",
		Title: "Risk assessment",
		Questions: []string{
			"What is the risk?",
			"What is the potential impact of the risk?",
			"What mitigation is planned?",
		},
		RequiredAnswers: 2,
		Weight:          1.2,
	},
	StateBackOnTrack: {
		ID:    "back-on-track",
		Title: "Recovery explanation",
		Questions: []string{
			"What changed to bring the project back on track?",
		},
		RequiredAnswers: 1,
		Weight:          1.0,
	},
}

var dateChangeCriterion = Criterion{
	ID:    "date-change",
	Title: "Date change explanation",
	Questions: []string{
		"What is the new date?",
		"Why did the date change?",
	},
	RequiredAnswers: 2,
	Weight:          1.0,
}

// ApplicableCriteria selects the criteria to apply to an update based on
// its state label and text content. The decision criterion always applies.
func ApplicableCriteria(stateLabel *string, text string) []Criterion {
	criteria := []Criterion{decisionCriterion}

	if stateLabel != nil {
		if c, ok := stateCriteria[strings.ToLower(strings.TrimSpace(*stateLabel))]; ok {
			criteria = append(criteria, c)
		}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "date") || strings.Contains(lower, "due") {
		criteria = append(criteria, dateChangeCriterion)
	}

	return criteria
}
