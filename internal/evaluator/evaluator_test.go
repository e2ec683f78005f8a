package evaluator_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalnine/gauntlet/internal/conflict"
	"github.com/signalnine/gauntlet/internal/detection"
	"github.com/signalnine/gauntlet/internal/evaluator"
	"github.com/signalnine/gauntlet/internal/judge"
	"github.com/signalnine/gauntlet/internal/result"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/telemetry"
	"github.com/signalnine/gauntlet/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJudge returns a fixed verdict and counts calls.
type fakeJudge struct {
	mu      sync.Mutex
	calls   []string
	samples []int
	verdict judge.MultiSampleResult
}

func (f *fakeJudge) EvaluateMultiSample(_ context.Context, in judge.Input, n int, _ judge.AggregationMethod) judge.MultiSampleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in.Scenario.ID)
	f.samples = append(f.samples, n)
	return f.verdict
}

type recordingProgress struct {
	mu      sync.Mutex
	started []int
	done    []int
	errors  map[string]error
}

func (p *recordingProgress) OnStageStart(_ string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, total)
}

func (p *recordingProgress) OnStageComplete(_ string, _ int64, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, count)
}

func (p *recordingProgress) OnError(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.errors == nil {
		p.errors = map[string]error{}
	}
	p.errors[id] = err
}

func skillScenario(id, name string, expected bool, cat scenario.Category) scenario.TestScenario {
	return scenario.TestScenario{
		ID: id, ComponentRef: name, ComponentType: scenario.Skill, Category: cat,
		UserPrompt: "please help", ExpectedTrigger: expected, ExpectedComponent: name,
	}
}

func skillCapture(name string) transcript.ToolCapture {
	input, _ := json.Marshal(map[string]string{"skill": name})
	return transcript.ToolCapture{Name: "Skill", Input: input, ToolUseID: "tu_1"}
}

func goodVerdict() judge.MultiSampleResult {
	return judge.MultiSampleResult{
		IndividualScores:         []float64{8},
		AggregatedScore:          8,
		ConsensusTriggerAccuracy: judge.Correct,
		IsUnanimous:              true,
		AllIssues:                []string{"minor formatting"},
		Representative:           judge.Response{QualityScore: 8, Summary: "Looks good.", Issues: []string{"minor formatting"}},
		CostUSD:                  0.002,
	}
}

func TestEvaluateScenarioSkillTriggered(t *testing.T) {
	fj := &fakeJudge{verdict: goodVerdict()}
	ev := evaluator.New(evaluator.Env{PluginName: "demo", Judge: fj})

	s := skillScenario("s1", "test-skill", true, scenario.Direct)
	exec := transcript.ExecutionResult{ScenarioID: "s1", DetectedTools: []transcript.ToolCapture{skillCapture("test-skill")}}
	r := ev.EvaluateScenario(context.Background(), &s, &exec)

	assert.True(t, r.Triggered)
	assert.Equal(t, 100, r.Confidence)
	assert.Equal(t, conflict.SeverityNone, r.ConflictSeverity)
	assert.False(t, r.HasConflict)
	assert.Equal(t, result.SourceBoth, r.DetectionSource)
	require.NotNil(t, r.QualityScore)
	assert.Equal(t, 8.0, *r.QualityScore)
	assert.Equal(t, "Looks good.", r.Summary)
	assert.Equal(t, []string{"minor formatting"}, r.Issues)
	assert.Equal(t, 0.002, r.JudgeCostUSD)
	assert.Nil(t, r.ScoreVariance, "single-sample runs carry no variance")
	assert.Nil(t, r.IsUnanimous)
	assert.Equal(t, []result.TriggeredComponent{{ComponentType: scenario.Skill, ComponentName: "test-skill", Confidence: 100}}, r.AllTriggeredComponents)
	assert.Equal(t, []string{"s1"}, fj.calls)
}

func TestEvaluateScenarioSkipsJudgeForCleanNegative(t *testing.T) {
	fj := &fakeJudge{verdict: goodVerdict()}
	ev := evaluator.New(evaluator.Env{Judge: fj})

	s := skillScenario("neg", "test-skill", false, scenario.Negative)
	exec := transcript.ExecutionResult{ScenarioID: "neg"}
	r := ev.EvaluateScenario(context.Background(), &s, &exec)

	assert.Empty(t, fj.calls)
	assert.False(t, r.Triggered)
	assert.Zero(t, r.Confidence)
	assert.Nil(t, r.QualityScore)
	assert.Equal(t, result.SourceProgrammatic, r.DetectionSource)
	assert.Contains(t, r.Summary, "correctly did not trigger")
	assert.Equal(t, []string{}, r.Issues)
}

func TestEvaluateScenarioLLMSourceWhenNothingDetected(t *testing.T) {
	fj := &fakeJudge{verdict: goodVerdict()}
	ev := evaluator.New(evaluator.Env{Judge: fj})

	s := skillScenario("fn", "test-skill", true, scenario.Paraphrased)
	exec := transcript.ExecutionResult{ScenarioID: "fn", Errors: []string{"timeout after 60s"}}
	r := ev.EvaluateScenario(context.Background(), &s, &exec)

	assert.False(t, r.Triggered)
	assert.Equal(t, result.SourceLLM, r.DetectionSource)
	assert.Equal(t, []string{"minor formatting", "Execution error: timeout after 60s"}, r.Issues)
}

func TestEvaluateScenarioMultiSampleFields(t *testing.T) {
	v := goodVerdict()
	v.IndividualScores = []float64{7, 8, 9}
	v.ScoreVariance = 2.0 / 3.0
	v.IsUnanimous = false
	fj := &fakeJudge{verdict: v}
	ev := evaluator.New(evaluator.Env{Judge: fj, Tuning: evaluator.Tuning{NumSamples: 3}})

	s := skillScenario("m", "test-skill", true, scenario.Direct)
	exec := transcript.ExecutionResult{ScenarioID: "m", DetectedTools: []transcript.ToolCapture{skillCapture("test-skill")}}
	r := ev.EvaluateScenario(context.Background(), &s, &exec)

	assert.Equal(t, []int{3}, fj.samples)
	require.NotNil(t, r.ScoreVariance)
	assert.InDelta(t, 2.0/3.0, *r.ScoreVariance, 1e-9)
	require.NotNil(t, r.IsUnanimous)
	assert.False(t, *r.IsUnanimous)
}

func TestEvaluateScenarioRecordsConflict(t *testing.T) {
	ev := evaluator.New(evaluator.Env{Judge: &fakeJudge{verdict: goodVerdict()}})

	s := skillScenario("c", "commit-helper", true, scenario.Direct)
	exec := transcript.ExecutionResult{ScenarioID: "c", DetectedTools: []transcript.ToolCapture{
		skillCapture("commit-helper"), skillCapture("commit-helper"), skillCapture("deploy-prod"),
	}}
	r := ev.EvaluateScenario(context.Background(), &s, &exec)

	assert.True(t, r.Triggered)
	assert.True(t, r.HasConflict)
	assert.Equal(t, conflict.SeverityMajor, r.ConflictSeverity)
	assert.Len(t, r.Evidence, 3, "evidence keeps raw detections")
	assert.Len(t, r.AllTriggeredComponents, 2, "triggered components are deduplicated")
}

func TestEvaluateScenarioWithoutJudge(t *testing.T) {
	ev := evaluator.New(evaluator.Env{})
	s := skillScenario("s", "test-skill", true, scenario.Direct)
	exec := transcript.ExecutionResult{ScenarioID: "s"}
	r := ev.EvaluateScenario(context.Background(), &s, &exec)
	assert.Equal(t, result.SourceProgrammatic, r.DetectionSource)
	assert.Contains(t, r.Summary, "did not trigger")
}

func TestEvaluateAll(t *testing.T) {
	fj := &fakeJudge{verdict: goodVerdict()}
	progress := &recordingProgress{}
	rec := telemetry.New()
	ev := evaluator.New(evaluator.Env{
		Judge:     fj,
		Progress:  progress,
		Telemetry: rec,
		Tuning:    evaluator.Tuning{Concurrency: 4},
	})

	scenarios := []scenario.TestScenario{
		skillScenario("a", "alpha", true, scenario.Direct),
		skillScenario("b", "beta", false, scenario.Negative),
		skillScenario("c", "gamma", true, scenario.Semantic),
	}
	executions := []transcript.ExecutionResult{
		{ScenarioID: "c", DetectedTools: []transcript.ToolCapture{skillCapture("gamma")}},
		{ScenarioID: "orphan"},
		{ScenarioID: "a", DetectedTools: []transcript.ToolCapture{skillCapture("alpha")}},
		{ScenarioID: "b"},
	}
	results := ev.EvaluateAll(context.Background(), scenarios, executions)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ScenarioID
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, ids); diff != "" {
		t.Errorf("result order mismatch (-want +got):\n%s", diff)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, fj.calls)
	assert.Equal(t, []int{3}, progress.started)
	assert.Equal(t, []int{3}, progress.done)
	require.Contains(t, progress.errors, "orphan")
	assert.True(t, errors.Is(progress.errors["orphan"], evaluator.ErrScenarioNotFound))
}

func TestEvaluateAllReportsExecutionErrors(t *testing.T) {
	progress := &recordingProgress{}
	ev := evaluator.New(evaluator.Env{Judge: &fakeJudge{verdict: goodVerdict()}, Progress: progress})
	scenarios := []scenario.TestScenario{skillScenario("a", "alpha", true, scenario.Direct)}
	executions := []transcript.ExecutionResult{{ScenarioID: "a", Errors: []string{"sdk crashed"}}}

	results := ev.EvaluateAll(context.Background(), scenarios, executions)
	require.Len(t, results, 1)
	require.Contains(t, progress.errors, "a")
	assert.Contains(t, progress.errors["a"].Error(), "sdk crashed")
}

func TestShouldUseJudge(t *testing.T) {
	detected := []detection.ProgrammaticDetection{{ComponentType: scenario.Skill, ComponentName: "x", Confidence: 100}}
	tests := []struct {
		name       string
		mode       evaluator.Mode
		expected   bool
		category   scenario.Category
		detections []detection.ProgrammaticDetection
		want       bool
	}{
		{"llm only always judges", evaluator.LLMOnly, false, scenario.Negative, nil, true},
		{"clean negative skips", evaluator.ProgrammaticFirst, false, scenario.Negative, nil, false},
		{"clean direct negative skips", evaluator.ProgrammaticFirst, false, scenario.Direct, nil, false},
		{"false positive judged", evaluator.ProgrammaticFirst, false, scenario.Negative, detected, true},
		{"ambiguous negative judged", evaluator.ProgrammaticFirst, false, scenario.Semantic, nil, true},
		{"positive judged", evaluator.ProgrammaticFirst, true, scenario.Direct, detected, true},
		{"false negative judged", evaluator.ProgrammaticFirst, true, scenario.Direct, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := skillScenario("s", "x", tt.expected, tt.category)
			assert.Equal(t, tt.want, evaluator.ShouldUseJudge(tt.mode, &s, tt.detections))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := evaluator.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, evaluator.ProgrammaticFirst, m)

	m, err = evaluator.ParseMode("LLM_ONLY")
	require.NoError(t, err)
	assert.Equal(t, evaluator.LLMOnly, m)

	_, err = evaluator.ParseMode("judge_everything")
	assert.Error(t, err)
}
