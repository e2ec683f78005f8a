package result

import (
	"time"

	"github.com/signalnine/gauntlet/internal/conflict"
	"github.com/signalnine/gauntlet/internal/scenario"
)

// DetectionSource records which signals produced a verdict.
type DetectionSource string

const (
	SourceProgrammatic DetectionSource = "programmatic"
	SourceLLM          DetectionSource = "llm"
	SourceBoth         DetectionSource = "both"
)

// EvaluationResult is the merged verdict for one scenario.
type EvaluationResult struct {
	ScenarioID             string                 `json:"scenario_id"`
	ComponentRef           string                 `json:"component_ref"`
	ComponentType          scenario.ComponentType `json:"component_type"`
	Category               scenario.Category      `json:"scenario_type"`
	ExpectedTrigger        bool                   `json:"expected_trigger"`
	Triggered              bool                   `json:"triggered"`
	Confidence             int                    `json:"confidence"`
	QualityScore           *float64               `json:"quality_score"`
	Evidence               []string               `json:"evidence"`
	Issues                 []string               `json:"issues"`
	Summary                string                 `json:"summary"`
	DetectionSource        DetectionSource        `json:"detection_source"`
	AllTriggeredComponents []TriggeredComponent   `json:"all_triggered_components"`
	HasConflict            bool                   `json:"has_conflict"`
	ConflictSeverity       conflict.Severity      `json:"conflict_severity"`
	ConflictReason         string                 `json:"conflict_reason,omitempty"`
	ScoreVariance          *float64               `json:"score_variance,omitempty"`
	IsUnanimous            *bool                  `json:"is_unanimous,omitempty"`
	JudgeCostUSD           float64                `json:"judge_cost_usd"`
}

// TriggeredComponent is one deduplicated component seen during a scenario.
type TriggeredComponent struct {
	ComponentType scenario.ComponentType `json:"component_type"`
	ComponentName string                 `json:"component_name"`
	Confidence    int                    `json:"confidence"`
}

// Correct reports whether the observed trigger matched the expectation.
func (r *EvaluationResult) Correct() bool {
	return r.Triggered == r.ExpectedTrigger
}

type EvalMetrics struct {
	TotalScenarios  int     `json:"total_scenarios"`
	TriggeredCount  int     `json:"triggered_count"`
	TriggerRate     float64 `json:"trigger_rate"`
	CorrectCount    int     `json:"correct_count"`
	Accuracy        float64 `json:"accuracy"`
	FalsePositives  int     `json:"false_positives"`
	FalseNegatives  int     `json:"false_negatives"`
	ScoredCount     int     `json:"scored_count"`
	AvgQuality      float64 `json:"avg_quality"`
	ConflictCount   int     `json:"conflict_count"`
	MajorConflicts  int     `json:"major_conflicts"`
	MinorConflicts  int     `json:"minor_conflicts"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	JudgeCostUSD    float64 `json:"judge_cost_usd"`
	TotalDurationMs int64   `json:"total_duration_ms"`
	ErrorCount      int     `json:"error_count"`

	// Present only when judgments were multi-sampled.
	MultiSample *MultiSampleMetrics `json:"multi_sample,omitempty"`

	ByComponentType map[scenario.ComponentType]*ComponentTypeMetrics `json:"by_component_type"`
}

type MultiSampleMetrics struct {
	AvgVariance   float64 `json:"avg_score_variance"`
	MaxVariance   float64 `json:"max_score_variance"`
	ConsensusRate float64 `json:"consensus_rate"`
}

type ComponentTypeMetrics struct {
	Total       int     `json:"total"`
	Triggered   int     `json:"triggered"`
	Correct     int     `json:"correct"`
	Accuracy    float64 `json:"accuracy"`
	ScoredCount int     `json:"scored_count"`
	AvgQuality  float64 `json:"avg_quality"`
}

// Artifact is the on-disk record of one evaluation run.
type Artifact struct {
	RunID           string             `json:"run_id"`
	PluginName      string             `json:"plugin_name"`
	Results         []EvaluationResult `json:"results"`
	Metrics         EvalMetrics        `json:"metrics"`
	TotalCostUSD    float64            `json:"total_cost_usd"`
	TotalDurationMs int64              `json:"total_duration_ms"`
	Timestamp       time.Time          `json:"timestamp"`
}
