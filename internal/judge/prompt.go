package judge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/signalnine/gauntlet/internal/detection"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/transcript"
)

// DefaultMaxContentChars bounds each rendered transcript message.
const DefaultMaxContentChars = 2000

// Input is everything the judge sees for one scenario.
type Input struct {
	PluginName string
	Scenario   *scenario.TestScenario
	Transcript *transcript.Transcript
	Detections []detection.ProgrammaticDetection
}

const systemPrompt = `You are an expert evaluator of developer-tool plugins (skills, agents, commands and hooks).
You are given a test scenario, the programmatic detection results, and the full conversation transcript.
Judge whether the expected component triggered correctly and how well the response served the user.

Scoring:
- quality_score: 1 (unusable) to 10 (excellent)
- response_relevance: 1 (off-topic) to 10 (fully on point)
- trigger_accuracy: "correct" when triggering matched the expectation, "incorrect" when it did not,
  "partial" when the right component triggered alongside wrong ones or only partly did its job

Cite transcript messages by their id in highlights. List concrete problems in issues.`

const fallbackInstructions = `

Respond with ONLY a JSON object, no prose, in exactly this shape:
{"quality_score": 7, "response_relevance": 8, "trigger_accuracy": "correct", "issues": ["..."], "summary": "...", "highlights": [{"description": "...", "message_id": "msg_1", "quote": "..."}]}`

// BuildPrompt renders the user prompt for the judge. Every transcript
// message carries a stable id and content is truncated to maxChars.
func BuildPrompt(in Input, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxContentChars
	}
	s := in.Scenario

	var b strings.Builder
	b.WriteString("## Scenario\n")
	fmt.Fprintf(&b, "Plugin: %s\n", in.PluginName)
	fmt.Fprintf(&b, "Expected component: %s (%s)\n", s.ExpectedComponent, s.ComponentType)
	fmt.Fprintf(&b, "Scenario type: %s\n", s.Category)
	fmt.Fprintf(&b, "Should trigger: %t\n", s.ExpectedTrigger)
	fmt.Fprintf(&b, "User prompt: %s\n", truncate(s.UserPrompt, maxChars))

	b.WriteString("\n## Component description\n")
	if strings.TrimSpace(s.ComponentDescription) == "" {
		b.WriteString("(none provided)\n")
	} else {
		b.WriteString(truncate(s.ComponentDescription, maxChars))
		b.WriteString("\n")
	}

	b.WriteString("\n## Programmatic detection\n")
	b.WriteString(detection.Summarize(in.Detections))
	b.WriteString("\n")

	b.WriteString("\n## Transcript\n")
	b.WriteString(RenderTranscript(in.Transcript, maxChars))
	return b.String()
}

// MessageID returns the citation id for the i-th (zero-based) event.
func MessageID(e transcript.Event, i int) string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("msg_%d", i+1)
}

// RenderTranscript writes one block per event prefixed with its id.
func RenderTranscript(tr *transcript.Transcript, maxChars int) string {
	if tr == nil || len(tr.Events) == 0 {
		return "(empty transcript)\n"
	}
	var b strings.Builder
	for i, e := range tr.Events {
		fmt.Fprintf(&b, "[%s] %s", MessageID(e, i), e.Type)
		if e.ToolUseID != "" {
			fmt.Fprintf(&b, " (tool_use_id %s)", e.ToolUseID)
		}
		b.WriteString(":")
		if e.Content != "" {
			b.WriteString(" ")
			b.WriteString(truncate(e.Content, maxChars))
		}
		b.WriteString("\n")
		for _, call := range e.ToolCalls {
			fmt.Fprintf(&b, "  -> tool %s %s\n", call.Name, truncate(string(call.Input), maxChars))
		}
	}
	return b.String()
}

// truncate keeps the first maxLen characters of s.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
