package conflict

import (
	"fmt"
	"strings"

	"github.com/signalnine/gauntlet/internal/detection"
	"github.com/signalnine/gauntlet/internal/scenario"
)

type Severity string

const (
	SeverityNone  Severity = "none"
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
)

// DefaultMinTokenLength is the shortest name token SharesDomain compares.
const DefaultMinTokenLength = 4

// Analysis describes how ambiguous a scenario's triggering was.
type Analysis struct {
	ExpectedComponent string                            `json:"expected_component"`
	ExpectedType      scenario.ComponentType            `json:"expected_type"`
	AllTriggered      []detection.ProgrammaticDetection `json:"all_triggered_components"`
	HasConflict       bool                              `json:"has_conflict"`
	Severity          Severity                          `json:"conflict_severity"`
	Reason            string                            `json:"conflict_reason"`
}

// Analyzer classifies conflicts. The zero value uses DefaultMinTokenLength.
type Analyzer struct {
	MinTokenLength int
}

// Classify uses the default analyzer.
func Classify(expectedName string, expectedType scenario.ComponentType, detections []detection.ProgrammaticDetection) Analysis {
	return Analyzer{}.Classify(expectedName, expectedType, detections)
}

// Classify decides the conflict severity for an expected component given
// everything that was detected. Detections are deduplicated first.
func (a Analyzer) Classify(expectedName string, expectedType scenario.ComponentType, detections []detection.ProgrammaticDetection) Analysis {
	unique := detection.UniqueDetections(detections)
	res := Analysis{
		ExpectedComponent: expectedName,
		ExpectedType:      expectedType,
		AllTriggered:      unique,
		Severity:          SeverityNone,
	}

	if len(unique) == 0 {
		res.Reason = "no components triggered"
		return res
	}

	if len(unique) == 1 && unique[0].Matches(expectedName, expectedType) {
		res.Reason = "only the expected component triggered"
		return res
	}

	if !detection.WasTriggered(unique, expectedName, expectedType) {
		res.HasConflict = true
		res.Severity = SeverityMajor
		res.Reason = fmt.Sprintf("expected component %s %q did not trigger; triggered instead: %s",
			expectedType, expectedName, names(unique))
		return res
	}

	minLen := a.minTokenLength()
	res.HasConflict = true
	for _, d := range unique {
		if d.Matches(expectedName, expectedType) {
			continue
		}
		if d.ComponentType != expectedType {
			res.Severity = SeverityMajor
			res.Reason = fmt.Sprintf("%s %q triggered alongside expected %s (type mismatch)",
				d.ComponentType, d.ComponentName, expectedType)
			return res
		}
		if !SharesDomain(expectedName, d.ComponentName, minLen) {
			res.Severity = SeverityMajor
			res.Reason = fmt.Sprintf("%s %q triggered alongside expected %q (unrelated domain)",
				d.ComponentType, d.ComponentName, expectedName)
			return res
		}
	}

	res.Severity = SeverityMinor
	res.Reason = fmt.Sprintf("related components triggered alongside %q: %s", expectedName, names(unique))
	return res
}

func (a Analyzer) minTokenLength() int {
	if a.MinTokenLength > 0 {
		return a.MinTokenLength
	}
	return DefaultMinTokenLength
}

// SharesDomain reports whether two hyphenated component names have at least
// one identical token of minLen characters or more. Tokens compare
// case-sensitively. It is a coarse topic proxy, not semantic matching.
func SharesDomain(a, b string, minLen int) bool {
	tokens := make(map[string]bool)
	for _, t := range domainTokens(a, minLen) {
		tokens[t] = true
	}
	for _, t := range domainTokens(b, minLen) {
		if tokens[t] {
			return true
		}
	}
	return false
}

func domainTokens(name string, minLen int) []string {
	var out []string
	for _, t := range strings.Split(name, "-") {
		if len(t) >= minLen {
			out = append(out, t)
		}
	}
	return out
}

func names(ds []detection.ProgrammaticDetection) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = fmt.Sprintf("%s:%s", d.ComponentType, d.ComponentName)
	}
	return strings.Join(parts, ", ")
}
