package evaluator

import (
	"fmt"
	"strings"

	"github.com/signalnine/gauntlet/internal/detection"
	"github.com/signalnine/gauntlet/internal/scenario"
)

// Mode selects when the LLM judge runs.
type Mode string

const (
	ProgrammaticFirst Mode = "programmatic_first"
	LLMOnly           Mode = "llm_only"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProgrammaticFirst:
		return ProgrammaticFirst, nil
	case LLMOnly:
		return LLMOnly, nil
	default:
		return "", fmt.Errorf("unknown detection mode %q", s)
	}
}

// ShouldUseJudge decides whether a scenario needs an LLM judgment. In
// programmatic_first mode only clean negatives skip the judge: the
// component should not trigger, the scenario is direct or negative, and
// nothing was detected.
func ShouldUseJudge(mode Mode, s *scenario.TestScenario, detections []detection.ProgrammaticDetection) bool {
	if mode == LLMOnly {
		return true
	}
	cleanCategory := s.Category == scenario.Direct || s.Category == scenario.Negative
	if !s.ExpectedTrigger && cleanCategory && len(detections) == 0 {
		return false
	}
	return true
}
