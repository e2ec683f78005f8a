package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type EventType string

const (
	EventUser       EventType = "user"
	EventAssistant  EventType = "assistant"
	EventToolResult EventType = "tool_result"
	EventSystem     EventType = "system"
	EventError      EventType = "error"
)

// ToolCall is a tool invocation embedded in an assistant turn.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

type Event struct {
	ID        string     `json:"id,omitempty"`
	Type      EventType  `json:"type"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolUseID string     `json:"tool_use_id,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}

type Metadata struct {
	Version     string    `json:"version,omitempty"`
	PluginName  string    `json:"plugin_name"`
	Model       string    `json:"model,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

type Transcript struct {
	Metadata Metadata `json:"metadata"`
	Events   []Event  `json:"events"`
}

// UserEvents returns every user event in order.
func (t *Transcript) UserEvents() []Event {
	if t == nil {
		return nil
	}
	var events []Event
	for _, e := range t.Events {
		if e.Type == EventUser {
			events = append(events, e)
		}
	}
	return events
}

// ToolCapture is a tool invocation recorded by the execution harness.
type ToolCapture struct {
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// HookResponse records one hook activation observed during execution.
type HookResponse struct {
	HookName  string    `json:"hook_name,omitempty"`
	HookEvent string    `json:"hook_event"`
	Matcher   string    `json:"matcher,omitempty"`
	Output    string    `json:"output,omitempty"`
	ExitCode  int       `json:"exit_code"`
	Blocked   bool      `json:"blocked,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionResult is the observed outcome of running one scenario.
type ExecutionResult struct {
	ScenarioID        string         `json:"scenario_id"`
	Transcript        Transcript     `json:"transcript"`
	DetectedTools     []ToolCapture  `json:"detected_tools"`
	HookResponses     []HookResponse `json:"hook_responses,omitempty"`
	CostUSD           float64        `json:"cost_usd"`
	DurationMs        int64          `json:"api_duration_ms"`
	NumTurns          int            `json:"num_turns"`
	PermissionDenials int            `json:"permission_denials,omitempty"`
	Errors            []string       `json:"errors,omitempty"`
}

// Load reads a JSON array of execution results.
func Load(path string) ([]ExecutionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading executions %s: %w", path, err)
	}
	var results []ExecutionResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing executions %s: %w", path, err)
	}
	for i, r := range results {
		if r.ScenarioID == "" {
			return nil, fmt.Errorf("execution %d in %s: scenario_id is required", i, path)
		}
	}
	return results, nil
}
