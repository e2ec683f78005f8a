package evaluator

import (
	"fmt"

	"github.com/signalnine/gauntlet/internal/conflict"
	"github.com/signalnine/gauntlet/internal/detection"
	"github.com/signalnine/gauntlet/internal/judge"
	"github.com/signalnine/gauntlet/internal/result"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/transcript"
)

// Merge folds detection, conflict analysis and an optional judgment into
// one result. Triggered and Confidence come from detection only; verdict
// is nil when the judge was skipped.
func Merge(
	s *scenario.TestScenario,
	exec *transcript.ExecutionResult,
	detections []detection.ProgrammaticDetection,
	analysis conflict.Analysis,
	verdict *judge.MultiSampleResult,
	multiSample bool,
) result.EvaluationResult {
	triggered := detection.WasTriggered(detections, s.ExpectedComponent, s.ComponentType)
	confidence := 0
	if triggered {
		confidence = detection.FullConfidence
	}

	evidence := make([]string, 0, len(detections))
	for _, d := range detections {
		evidence = append(evidence, d.Evidence)
	}
	all := make([]result.TriggeredComponent, 0, len(analysis.AllTriggered))
	for _, d := range analysis.AllTriggered {
		all = append(all, result.TriggeredComponent{
			ComponentType: d.ComponentType,
			ComponentName: d.ComponentName,
			Confidence:    d.Confidence,
		})
	}

	r := result.EvaluationResult{
		ScenarioID:             s.ID,
		ComponentRef:           s.ComponentRef,
		ComponentType:          s.ComponentType,
		Category:               s.Category,
		ExpectedTrigger:        s.ExpectedTrigger,
		Triggered:              triggered,
		Confidence:             confidence,
		Evidence:               evidence,
		AllTriggeredComponents: all,
		HasConflict:            analysis.HasConflict,
		ConflictSeverity:       analysis.Severity,
		ConflictReason:         analysis.Reason,
	}

	if verdict == nil {
		r.DetectionSource = result.SourceProgrammatic
		r.Summary = programmaticSummary(s, triggered, analysis)
		r.Issues = []string{}
	} else {
		score := verdict.AggregatedScore
		r.QualityScore = &score
		r.Summary = verdict.Representative.Summary
		r.Issues = append([]string{}, verdict.AllIssues...)
		r.JudgeCostUSD = verdict.CostUSD
		r.DetectionSource = result.SourceLLM
		if len(analysis.AllTriggered) > 0 {
			r.DetectionSource = result.SourceBoth
		}
		if multiSample {
			variance := verdict.ScoreVariance
			unanimous := verdict.IsUnanimous
			r.ScoreVariance = &variance
			r.IsUnanimous = &unanimous
		}
	}

	for _, msg := range exec.Errors {
		r.Issues = append(r.Issues, "Execution error: "+msg)
	}
	return r
}

func programmaticSummary(s *scenario.TestScenario, triggered bool, analysis conflict.Analysis) string {
	name := fmt.Sprintf("%s %q", s.ComponentType, s.ExpectedComponent)
	switch {
	case triggered && s.ExpectedTrigger:
		return fmt.Sprintf("Programmatic detection: %s triggered as expected.", name)
	case triggered:
		return fmt.Sprintf("Programmatic detection: %s triggered but should not have.", name)
	case s.ExpectedTrigger:
		return fmt.Sprintf("Programmatic detection: %s did not trigger.", name)
	case len(analysis.AllTriggered) == 0:
		return fmt.Sprintf("Programmatic detection: %s correctly did not trigger; no components detected.", name)
	default:
		return fmt.Sprintf("Programmatic detection: %s correctly did not trigger; other components detected.", name)
	}
}
