package detection_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/signalnine/gauntlet/internal/detection"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ignoreEvidence = cmpopts.IgnoreFields(detection.ProgrammaticDetection{}, "Evidence", "Timestamp")

func capture(name, input string) transcript.ToolCapture {
	return transcript.ToolCapture{Name: name, Input: json.RawMessage(input), Timestamp: time.Unix(1700000000, 0)}
}

func skillScenario(name string) *scenario.TestScenario {
	return &scenario.TestScenario{
		ID:                "s1",
		ComponentRef:      name,
		ComponentType:     scenario.Skill,
		Category:          scenario.Direct,
		UserPrompt:        "please help",
		ExpectedTrigger:   true,
		ExpectedComponent: name,
	}
}

func TestClassifyTool(t *testing.T) {
	tests := []struct {
		name      string
		wantClass detection.ToolClass
		wantType  scenario.ComponentType
	}{
		{"Skill", detection.ToolComponent, scenario.Skill},
		{"Task", detection.ToolComponent, scenario.Agent},
		{"Agent", detection.ToolComponent, scenario.Agent},
		{"SlashCommand", detection.ToolComponent, scenario.Command},
		{"mcp__github__create_issue", detection.ToolExternal, scenario.Unrecognized},
		{"Read", detection.ToolUnrecognized, scenario.Unrecognized},
		{"__broken", detection.ToolUnrecognized, scenario.Unrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, ctype := detection.ClassifyTool(tt.name)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantType, ctype)
		})
	}
}

func TestDetectFromCaptures(t *testing.T) {
	captures := []transcript.ToolCapture{
		capture("Skill", `{"skill": "plugin-dev:skill-development"}`),
		capture("Task", `{"subagent_type": "code-reviewer", "prompt": "review"}`),
		capture("SlashCommand", `{"command": "/plugin-dev:create-plugin my-plugin"}`),
		capture("Read", `{"file_path": "/tmp/x"}`),
		capture("mcp__github__create_issue", `{"title": "x"}`),
	}
	got := detection.Detect(captures, nil, skillScenario("skill-development"), nil)
	want := []detection.ProgrammaticDetection{
		{ComponentType: scenario.Skill, ComponentName: "skill-development", Confidence: 100, ToolName: "Skill"},
		{ComponentType: scenario.Agent, ComponentName: "code-reviewer", Confidence: 100, ToolName: "Task"},
		{ComponentType: scenario.Command, ComponentName: "create-plugin", Confidence: 100, ToolName: "SlashCommand"},
	}
	if diff := cmp.Diff(want, got, ignoreEvidence); diff != "" {
		t.Errorf("Detect mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, got[0].Evidence, "plugin-dev:skill-development")
}

func TestDetectMalformedPayloads(t *testing.T) {
	captures := []transcript.ToolCapture{
		capture("Skill", `{"name": "commit"}`),
		capture("Skill", `{"skill": 42}`),
		capture("Task", `not json`),
		capture("SlashCommand", ``),
		capture("Skill", `{"skill": "  "}`),
	}
	got := detection.Detect(captures, nil, skillScenario("commit"), nil)
	assert.Empty(t, got)
}

func TestDetectCapturesTakePrecedenceOverTranscript(t *testing.T) {
	tr := &transcript.Transcript{Events: []transcript.Event{
		{ID: "a1", Type: transcript.EventAssistant, ToolCalls: []transcript.ToolCall{
			{ID: "t1", Name: "Skill", Input: json.RawMessage(`{"skill": "from-transcript"}`)},
		}},
	}}
	captures := []transcript.ToolCapture{capture("Skill", `{"skill": "from-capture"}`)}

	got := detection.Detect(captures, tr, skillScenario("from-capture"), nil)
	require.Len(t, got, 1)
	assert.Equal(t, "from-capture", got[0].ComponentName)

	got = detection.Detect(nil, tr, skillScenario("from-transcript"), nil)
	require.Len(t, got, 1)
	assert.Equal(t, "from-transcript", got[0].ComponentName)
}

func TestDetectTranscriptIgnoresNonAssistantEvents(t *testing.T) {
	tr := &transcript.Transcript{Events: []transcript.Event{
		{Type: transcript.EventUser, ToolCalls: []transcript.ToolCall{
			{Name: "Skill", Input: json.RawMessage(`{"skill": "commit"}`)},
		}},
	}}
	assert.Empty(t, detection.Detect(nil, tr, skillScenario("commit"), nil))
}

func TestParseCommandInvocation(t *testing.T) {
	tests := []struct {
		msg    string
		want   string
		wantOK bool
	}{
		{"/commit", "commit", true},
		{"/commit -m fix", "commit", true},
		{"/plugin-dev:create-plugin", "create-plugin", true},
		{"/plugin-dev:tools/validate args", "validate", true},
		{"  /review", "review", true},
		{"please run /commit", "", false},
		{"/", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		got, ok := detection.ParseCommandInvocation(tt.msg)
		assert.Equal(t, tt.wantOK, ok, "msg %q", tt.msg)
		assert.Equal(t, tt.want, got, "msg %q", tt.msg)
	}
}

func TestDetectDirectCommand(t *testing.T) {
	s := &scenario.TestScenario{
		ID: "c1", ComponentRef: "commit", ComponentType: scenario.Command, Category: scenario.Direct,
		UserPrompt: "/my-plugin:commit", ExpectedTrigger: true, ExpectedComponent: "commit",
	}
	tr := &transcript.Transcript{Events: []transcript.Event{
		{ID: "a0", Type: transcript.EventAssistant, Content: "/not-a-user-command"},
		{ID: "u1", Type: transcript.EventUser, Content: "/my-plugin:commit now", Timestamp: time.Unix(1700000100, 0)},
	}}

	got := detection.Detect(nil, tr, s, nil)
	require.Len(t, got, 1)
	assert.Equal(t, scenario.Command, got[0].ComponentType)
	assert.Equal(t, "commit", got[0].ComponentName)
	assert.Equal(t, "direct_invocation", got[0].ToolName)
	assert.True(t, got[0].Timestamp.Equal(time.Unix(1700000100, 0)), "timestamp comes from the user event")

	// Not duplicated when the command tool already reported it.
	got = detection.Detect([]transcript.ToolCapture{capture("SlashCommand", `{"command": "/commit"}`)}, tr, s, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "SlashCommand", got[0].ToolName)

	// Falls back to the scenario prompt without user events.
	got = detection.Detect(nil, nil, s, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "commit", got[0].ComponentName)
}

func TestDetectDirectCommandOnlyForCommandScenarios(t *testing.T) {
	tr := &transcript.Transcript{Events: []transcript.Event{
		{Type: transcript.EventUser, Content: "/commit"},
	}}
	assert.Empty(t, detection.Detect(nil, tr, skillScenario("commit"), nil))
}

func TestHookMatches(t *testing.T) {
	tests := []struct {
		ref  string
		hook transcript.HookResponse
		want bool
	}{
		{"PreToolUse::Write", transcript.HookResponse{HookEvent: "PreToolUse", Matcher: "Write"}, true},
		{"PreToolUse::Write", transcript.HookResponse{HookEvent: "PreToolUse", Matcher: "Write|Edit"}, true},
		{"PreToolUse::Write|Edit", transcript.HookResponse{HookEvent: "PreToolUse", Matcher: "Edit"}, true},
		{"PreToolUse::Write", transcript.HookResponse{HookEvent: "PreToolUse", Matcher: "Bash"}, false},
		{"PreToolUse::Write", transcript.HookResponse{HookEvent: "PostToolUse", Matcher: "Write"}, false},
		{"SessionStart", transcript.HookResponse{HookEvent: "SessionStart"}, true},
		{"Stop", transcript.HookResponse{HookEvent: "Stop", Matcher: "*"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detection.HookMatches(tt.ref, tt.hook), "ref %q hook %+v", tt.ref, tt.hook)
	}
}

func TestDetectHooks(t *testing.T) {
	s := &scenario.TestScenario{
		ID: "h1", ComponentRef: "PreToolUse::Write", ComponentType: scenario.Hook, Category: scenario.Direct,
		UserPrompt: "write a file", ExpectedTrigger: true, ExpectedComponent: "PreToolUse::Write",
	}
	hooks := []transcript.HookResponse{
		{HookEvent: "PreToolUse", Matcher: "Write", HookName: "guard.sh", ExitCode: 2, Blocked: true},
		{HookEvent: "PostToolUse", Matcher: "Write"},
	}
	got := detection.Detect(nil, nil, s, hooks)
	require.Len(t, got, 1)
	assert.Equal(t, scenario.Hook, got[0].ComponentType)
	assert.Equal(t, "PreToolUse::Write", got[0].ComponentName)
	assert.Contains(t, got[0].Evidence, "blocked")

	// Hook records are ignored for other scenario types.
	assert.Empty(t, detection.Detect(nil, nil, skillScenario("x"), hooks))
}

func TestDetectDeterministic(t *testing.T) {
	captures := []transcript.ToolCapture{
		capture("Skill", `{"skill": "a"}`),
		capture("Task", `{"subagent_type": "b"}`),
		capture("Skill", `{"skill": "a"}`),
	}
	s := skillScenario("a")
	first := detection.Detect(captures, nil, s, nil)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, detection.Detect(captures, nil, s, nil)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestUniqueDetections(t *testing.T) {
	ds := []detection.ProgrammaticDetection{
		{ComponentType: scenario.Skill, ComponentName: "a", ToolName: "first"},
		{ComponentType: scenario.Agent, ComponentName: "a"},
		{ComponentType: scenario.Skill, ComponentName: "a", ToolName: "second"},
		{ComponentType: scenario.Skill, ComponentName: "b"},
	}
	unique := detection.UniqueDetections(ds)
	require.Len(t, unique, 3)
	assert.Equal(t, "first", unique[0].ToolName)
	assert.Equal(t, scenario.Agent, unique[1].ComponentType)

	if diff := cmp.Diff(unique, detection.UniqueDetections(unique)); diff != "" {
		t.Errorf("dedup is not idempotent:\n%s", diff)
	}
	assert.Empty(t, detection.UniqueDetections(nil))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "No components detected.", detection.Summarize(nil))
	out := detection.Summarize([]detection.ProgrammaticDetection{
		{ComponentType: scenario.Skill, ComponentName: "commit", ToolName: "Skill", Confidence: 100, Evidence: "e"},
	})
	assert.Contains(t, out, `skill "commit" via Skill`)
}
