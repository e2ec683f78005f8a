package judge

import "sort"

// Aggregate reduces scores with the given method. Empty input yields 0.
func Aggregate(scores []float64, method AggregationMethod) float64 {
	if len(scores) == 0 {
		return 0
	}
	switch method {
	case Median:
		return MedianScore(scores)
	case Consensus:
		return MajorityVote(scores)
	default:
		return mean(scores)
	}
}

func mean(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// MedianScore returns the middle value, averaging the two middle values
// for even counts.
func MedianScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Variance is the population variance of scores; 0 for fewer than two.
func Variance(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	m := mean(scores)
	var sum float64
	for _, s := range scores {
		d := s - m
		sum += d * d
	}
	return sum / float64(len(scores))
}

// MajorityVote returns the most frequent value. Ties go to whichever of
// the tied values appeared first.
func MajorityVote[T comparable](votes []T) T {
	var zero T
	if len(votes) == 0 {
		return zero
	}
	counts := make(map[T]int, len(votes))
	order := make([]T, 0, len(votes))
	for _, v := range votes {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestCount := order[0], 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// IsUnanimous reports whether every vote is identical. Empty and single
// inputs are unanimous.
func IsUnanimous[T comparable](votes []T) bool {
	for i := 1; i < len(votes); i++ {
		if votes[i] != votes[0] {
			return false
		}
	}
	return true
}

// UnionIssues merges issues across samples, deduplicated in first-seen
// order.
func UnionIssues(samples []Response) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, s := range samples {
		for _, issue := range s.Issues {
			if seen[issue] {
				continue
			}
			seen[issue] = true
			out = append(out, issue)
		}
	}
	return out
}

// Aggregated holds the fields that replace the first sample's values in
// the representative response.
type Aggregated struct {
	QualityScore      float64
	ResponseRelevance float64
	TriggerAccuracy   TriggerAccuracy
	Issues            []string
}

// BuildRepresentative returns first with QualityScore, ResponseRelevance,
// TriggerAccuracy and Issues taken from agg. Summary and Highlights always
// come from first. The issues slice is copied.
func BuildRepresentative(first Response, agg Aggregated) Response {
	rep := first
	rep.QualityScore = agg.QualityScore
	rep.ResponseRelevance = agg.ResponseRelevance
	rep.TriggerAccuracy = agg.TriggerAccuracy
	rep.Issues = append([]string{}, agg.Issues...)
	if first.Highlights != nil {
		rep.Highlights = append([]Highlight(nil), first.Highlights...)
	}
	return rep
}
