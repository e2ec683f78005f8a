package evaluator

import (
	"github.com/signalnine/gauntlet/internal/conflict"
	"github.com/signalnine/gauntlet/internal/result"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/transcript"
)

// CalculateMetrics folds results into corpus metrics. Cost, duration and
// error counts come from the executions paired with a result. Variance and
// consensus statistics are only reported when multiSample is set.
func CalculateMetrics(results []result.EvaluationResult, executions []transcript.ExecutionResult, multiSample bool) result.EvalMetrics {
	m := result.EvalMetrics{
		TotalScenarios:  len(results),
		ByComponentType: map[scenario.ComponentType]*result.ComponentTypeMetrics{},
	}

	evaluated := make(map[string]bool, len(results))
	var qualitySum float64
	var variances []float64
	unanimous := 0
	perTypeQuality := map[scenario.ComponentType]float64{}

	for i := range results {
		r := &results[i]
		evaluated[r.ScenarioID] = true

		ct := m.ByComponentType[r.ComponentType]
		if ct == nil {
			ct = &result.ComponentTypeMetrics{}
			m.ByComponentType[r.ComponentType] = ct
		}
		ct.Total++

		if r.Triggered {
			m.TriggeredCount++
			ct.Triggered++
		}
		switch {
		case r.Correct():
			m.CorrectCount++
			ct.Correct++
		case r.Triggered:
			m.FalsePositives++
		default:
			m.FalseNegatives++
		}

		if r.QualityScore != nil {
			m.ScoredCount++
			qualitySum += *r.QualityScore
			ct.ScoredCount++
			perTypeQuality[r.ComponentType] += *r.QualityScore
		}

		switch r.ConflictSeverity {
		case conflict.SeverityMajor:
			m.ConflictCount++
			m.MajorConflicts++
		case conflict.SeverityMinor:
			m.ConflictCount++
			m.MinorConflicts++
		}

		m.JudgeCostUSD += r.JudgeCostUSD

		if multiSample && r.ScoreVariance != nil {
			variances = append(variances, *r.ScoreVariance)
			if r.IsUnanimous != nil && *r.IsUnanimous {
				unanimous++
			}
		}
	}

	for i := range executions {
		exec := &executions[i]
		if !evaluated[exec.ScenarioID] {
			continue
		}
		m.TotalCostUSD += exec.CostUSD
		m.TotalDurationMs += exec.DurationMs
		if len(exec.Errors) > 0 {
			m.ErrorCount++
		}
	}

	m.TriggerRate = ratio(m.TriggeredCount, m.TotalScenarios)
	m.Accuracy = ratio(m.CorrectCount, m.TotalScenarios)
	if m.ScoredCount > 0 {
		m.AvgQuality = qualitySum / float64(m.ScoredCount)
	}
	for t, ct := range m.ByComponentType {
		ct.Accuracy = ratio(ct.Correct, ct.Total)
		if ct.ScoredCount > 0 {
			ct.AvgQuality = perTypeQuality[t] / float64(ct.ScoredCount)
		}
	}

	if multiSample {
		ms := &result.MultiSampleMetrics{}
		if len(variances) > 0 {
			var sum float64
			for _, v := range variances {
				sum += v
				ms.MaxVariance = max(ms.MaxVariance, v)
			}
			ms.AvgVariance = sum / float64(len(variances))
			ms.ConsensusRate = ratio(unanimous, len(variances))
		}
		m.MultiSample = ms
	}
	return m
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
