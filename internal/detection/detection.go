package detection

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/transcript"
)

// FullConfidence is the confidence of every programmatic detection.
const FullConfidence = 100

// ProgrammaticDetection records that a component was observed triggering.
type ProgrammaticDetection struct {
	ComponentType scenario.ComponentType `json:"component_type"`
	ComponentName string                 `json:"component_name"`
	Confidence    int                    `json:"confidence"`
	ToolName      string                 `json:"tool_name"`
	Evidence      string                 `json:"evidence"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Key identifies a detection for deduplication.
func (d ProgrammaticDetection) Key() string {
	return string(d.ComponentType) + "\x00" + d.ComponentName
}

// Matches reports whether the detection is the given component.
func (d ProgrammaticDetection) Matches(name string, t scenario.ComponentType) bool {
	return d.ComponentName == name && d.ComponentType == t
}

// Detect converts execution evidence into component detections.
//
// Captured tool invocations are authoritative; transcript tool calls are
// only consulted when nothing was captured. Direct slash-command syntax
// (command scenarios) and hook activations (hook scenarios) are additive.
func Detect(captures []transcript.ToolCapture, tr *transcript.Transcript, s *scenario.TestScenario, hooks []transcript.HookResponse) []ProgrammaticDetection {
	var detections []ProgrammaticDetection
	if len(captures) > 0 {
		detections = fromCaptures(captures)
	} else {
		detections = fromTranscript(tr)
	}

	if s.ComponentType == scenario.Command {
		for _, d := range directCommands(tr, s) {
			if !contains(detections, d.ComponentName, d.ComponentType) {
				detections = append(detections, d)
			}
		}
	}

	if s.ComponentType == scenario.Hook {
		detections = append(detections, fromHooks(hooks, s)...)
	}
	return detections
}

func fromCaptures(captures []transcript.ToolCapture) []ProgrammaticDetection {
	var out []ProgrammaticDetection
	for _, c := range captures {
		if d, ok := detectToolCall(c.Name, c.Input, c.Timestamp); ok {
			out = append(out, d)
		}
	}
	return out
}

func fromTranscript(tr *transcript.Transcript) []ProgrammaticDetection {
	if tr == nil {
		return nil
	}
	var out []ProgrammaticDetection
	for _, e := range tr.Events {
		if e.Type != transcript.EventAssistant {
			continue
		}
		for _, call := range e.ToolCalls {
			if d, ok := detectToolCall(call.Name, call.Input, e.Timestamp); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

func detectToolCall(toolName string, input []byte, ts time.Time) (ProgrammaticDetection, bool) {
	class, ctype := ClassifyTool(toolName)
	if class != ToolComponent {
		return ProgrammaticDetection{}, false
	}
	name, raw, ok := componentFromInput(ctype, input)
	if !ok {
		return ProgrammaticDetection{}, false
	}
	return ProgrammaticDetection{
		ComponentType: ctype,
		ComponentName: name,
		Confidence:    FullConfidence,
		ToolName:      toolName,
		Evidence:      fmt.Sprintf("%s tool invoked with %s=%q", toolName, inputFields[ctype], raw),
		Timestamp:     ts,
	}, true
}

// commandPattern matches /name, /plugin:name and /plugin:namespace/name at
// the start of a message.
var commandPattern = regexp.MustCompile(`^/([A-Za-z0-9_.-]+(?::[A-Za-z0-9_.-]+(?:/[A-Za-z0-9_.-]+)*)?)(?:\s|$)`)

// ParseCommandInvocation returns the invoked command name when msg starts
// with slash-command syntax.
func ParseCommandInvocation(msg string) (string, bool) {
	m := commandPattern.FindStringSubmatch(strings.TrimSpace(msg))
	if m == nil {
		return "", false
	}
	name := lastSegment(m[1])
	return name, name != ""
}

func directCommands(tr *transcript.Transcript, s *scenario.TestScenario) []ProgrammaticDetection {
	msgs := tr.UserEvents()
	if len(msgs) == 0 {
		msgs = []transcript.Event{{Type: transcript.EventUser, Content: s.UserPrompt}}
	}

	var out []ProgrammaticDetection
	for _, m := range msgs {
		name, ok := ParseCommandInvocation(m.Content)
		if !ok || contains(out, name, scenario.Command) {
			continue
		}
		out = append(out, ProgrammaticDetection{
			ComponentType: scenario.Command,
			ComponentName: name,
			Confidence:    FullConfidence,
			ToolName:      "direct_invocation",
			Evidence:      fmt.Sprintf("user message invoked /%s directly", name),
			Timestamp:     m.Timestamp,
		})
	}
	return out
}

func fromHooks(hooks []transcript.HookResponse, s *scenario.TestScenario) []ProgrammaticDetection {
	var out []ProgrammaticDetection
	for _, h := range hooks {
		if !HookMatches(s.ComponentRef, h) {
			continue
		}
		out = append(out, ProgrammaticDetection{
			ComponentType: scenario.Hook,
			ComponentName: s.ExpectedComponent,
			Confidence:    FullConfidence,
			ToolName:      h.HookEvent,
			Evidence:      hookEvidence(h),
			Timestamp:     h.Timestamp,
		})
	}
	return out
}

// HookMatches reports whether an activation record belongs to the hook
// referenced as "Event" or "Event::Matcher".
func HookMatches(ref string, h transcript.HookResponse) bool {
	refEvent, refMatcher, _ := strings.Cut(ref, "::")
	if h.HookEvent+"::"+h.Matcher == ref {
		return true
	}
	if h.HookEvent != refEvent {
		return false
	}
	if refMatcher == "" || h.Matcher == "" {
		return true
	}
	return strings.Contains(h.Matcher, refMatcher) || strings.Contains(refMatcher, h.Matcher)
}

func hookEvidence(h transcript.HookResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "hook %s", h.HookEvent)
	if h.Matcher != "" {
		fmt.Fprintf(&b, " (matcher %q)", h.Matcher)
	}
	if h.HookName != "" {
		fmt.Fprintf(&b, " ran %s", h.HookName)
	}
	fmt.Fprintf(&b, ", exit code %d", h.ExitCode)
	if h.Blocked {
		b.WriteString(", blocked")
	}
	return b.String()
}

func contains(ds []ProgrammaticDetection, name string, t scenario.ComponentType) bool {
	for _, d := range ds {
		if d.Matches(name, t) {
			return true
		}
	}
	return false
}

// UniqueDetections collapses detections sharing (type, name), keeping the
// first occurrence in input order.
func UniqueDetections(ds []ProgrammaticDetection) []ProgrammaticDetection {
	seen := make(map[string]bool, len(ds))
	out := make([]ProgrammaticDetection, 0, len(ds))
	for _, d := range ds {
		if seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true
		out = append(out, d)
	}
	return out
}

// WasTriggered reports whether the expected component appears among ds.
func WasTriggered(ds []ProgrammaticDetection, name string, t scenario.ComponentType) bool {
	return contains(ds, name, t)
}

// Summarize renders detections one per line for prompts and reports.
func Summarize(ds []ProgrammaticDetection) string {
	if len(ds) == 0 {
		return "No components detected."
	}
	var b strings.Builder
	for _, d := range ds {
		fmt.Fprintf(&b, "- %s %q via %s (confidence %d): %s\n", d.ComponentType, d.ComponentName, d.ToolName, d.Confidence, d.Evidence)
	}
	return strings.TrimRight(b.String(), "\n")
}
