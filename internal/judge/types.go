package judge

import "fmt"

// TriggerAccuracy is the judge's verdict on whether triggering was right.
type TriggerAccuracy string

const (
	Correct   TriggerAccuracy = "correct"
	Incorrect TriggerAccuracy = "incorrect"
	Partial   TriggerAccuracy = "partial"
)

func (a TriggerAccuracy) Valid() bool {
	switch a {
	case Correct, Incorrect, Partial:
		return true
	}
	return false
}

// Highlight ties a judge observation to a transcript message.
type Highlight struct {
	Description string `json:"description"`
	MessageID   string `json:"message_id"`
	Quote       string `json:"quote"`
}

// Response is one judge verdict.
type Response struct {
	QualityScore      float64         `json:"quality_score"`
	ResponseRelevance float64         `json:"response_relevance"`
	TriggerAccuracy   TriggerAccuracy `json:"trigger_accuracy"`
	Issues            []string        `json:"issues"`
	Summary           string          `json:"summary"`
	Highlights        []Highlight     `json:"highlights,omitempty"`
}

// MultiSampleResult aggregates repeated judge verdicts for one scenario.
type MultiSampleResult struct {
	IndividualScores         []float64       `json:"individual_scores"`
	AggregatedScore          float64         `json:"aggregated_score"`
	ScoreVariance            float64         `json:"score_variance"`
	ConsensusTriggerAccuracy TriggerAccuracy `json:"consensus_trigger_accuracy"`
	IsUnanimous              bool            `json:"is_unanimous"`
	AllIssues                []string        `json:"all_issues"`
	Representative           Response        `json:"representative_response"`
	CostUSD                  float64         `json:"cost_usd"`
}

type AggregationMethod string

const (
	Average   AggregationMethod = "average"
	Median    AggregationMethod = "median"
	Consensus AggregationMethod = "consensus"
)

func ParseAggregationMethod(s string) (AggregationMethod, error) {
	switch m := AggregationMethod(s); m {
	case Average, Median, Consensus:
		return m, nil
	case "":
		return Average, nil
	default:
		return "", fmt.Errorf("unknown aggregation method %q (want average, median or consensus)", s)
	}
}
