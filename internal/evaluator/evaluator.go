package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signalnine/gauntlet/internal/conflict"
	"github.com/signalnine/gauntlet/internal/detection"
	"github.com/signalnine/gauntlet/internal/judge"
	"github.com/signalnine/gauntlet/internal/logging"
	"github.com/signalnine/gauntlet/internal/result"
	"github.com/signalnine/gauntlet/internal/runner"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/telemetry"
	"github.com/signalnine/gauntlet/internal/transcript"
)

// StageEvaluation is the stage name reported to Progress.
const StageEvaluation = "evaluation"

// ErrScenarioNotFound is reported when an execution has no matching scenario.
var ErrScenarioNotFound = errors.New("no scenario for execution")

// Judger runs (possibly multi-sampled) judgments. *judge.Judge implements it.
type Judger interface {
	EvaluateMultiSample(ctx context.Context, in judge.Input, n int, method judge.AggregationMethod) judge.MultiSampleResult
}

// Tuning holds the knobs that shape a run.
type Tuning struct {
	Mode           Mode
	NumSamples     int
	Aggregation    judge.AggregationMethod
	Concurrency    int
	MinTokenLength int
}

func (t Tuning) withDefaults() Tuning {
	if t.Mode == "" {
		t.Mode = ProgrammaticFirst
	}
	if t.NumSamples < 1 {
		t.NumSamples = 1
	}
	if t.Aggregation == "" {
		t.Aggregation = judge.Average
	}
	if t.Concurrency < 1 {
		t.Concurrency = 1
	}
	if t.MinTokenLength < 1 {
		t.MinTokenLength = conflict.DefaultMinTokenLength
	}
	return t
}

// Env is everything an Evaluator depends on. Judge may be nil only when
// every scenario resolves without one.
type Env struct {
	PluginName string
	Logger     *slog.Logger
	Judge      Judger
	Tuning     Tuning
	Progress   Progress
	Telemetry  *telemetry.Recorder
}

type Evaluator struct {
	env      Env
	tuning   Tuning
	analyzer conflict.Analyzer
	logger   *slog.Logger
	progress Progress
}

func New(env Env) *Evaluator {
	tuning := env.Tuning.withDefaults()
	progress := env.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	return &Evaluator{
		env:      env,
		tuning:   tuning,
		analyzer: conflict.Analyzer{MinTokenLength: tuning.MinTokenLength},
		logger:   logging.Component(env.Logger, "evaluator"),
		progress: progress,
	}
}

// MultiSample reports whether judgments are aggregated over several samples.
func (e *Evaluator) MultiSample() bool {
	return e.tuning.NumSamples > 1
}

// EvaluateScenario runs detect, classify, judge and merge for one scenario.
func (e *Evaluator) EvaluateScenario(ctx context.Context, s *scenario.TestScenario, exec *transcript.ExecutionResult) result.EvaluationResult {
	tr := &exec.Transcript
	detections := detection.Detect(exec.DetectedTools, tr, s, exec.HookResponses)
	analysis := e.analyzer.Classify(s.ExpectedComponent, s.ComponentType, detections)
	for _, d := range analysis.AllTriggered {
		e.env.Telemetry.Detection(string(d.ComponentType))
	}

	var verdict *judge.MultiSampleResult
	useJudge := ShouldUseJudge(e.tuning.Mode, s, detections)
	if useJudge && e.env.Judge == nil {
		e.logger.Warn("judge required but not configured", "scenario", s.ID)
		useJudge = false
	}
	if useJudge {
		res := e.env.Judge.EvaluateMultiSample(ctx, judge.Input{
			PluginName: e.env.PluginName,
			Scenario:   s,
			Transcript: tr,
			Detections: detections,
		}, e.tuning.NumSamples, e.tuning.Aggregation)
		verdict = &res
	}

	r := Merge(s, exec, detections, analysis, verdict, e.MultiSample())
	e.env.Telemetry.Scenario(string(r.DetectionSource), string(r.ConflictSeverity))
	e.logger.Debug("scenario evaluated",
		"scenario", s.ID, "triggered", r.Triggered, "expected", r.ExpectedTrigger,
		"source", r.DetectionSource, "severity", r.ConflictSeverity)
	return r
}

type pair struct {
	scenario *scenario.TestScenario
	exec     *transcript.ExecutionResult
}

// EvaluateAll joins executions to scenarios by id and evaluates them with
// bounded concurrency. Results follow execution order; executions without
// a scenario are skipped with a warning.
func (e *Evaluator) EvaluateAll(ctx context.Context, scenarios []scenario.TestScenario, executions []transcript.ExecutionResult) []result.EvaluationResult {
	byID := make(map[string]*scenario.TestScenario, len(scenarios))
	for i := range scenarios {
		byID[scenarios[i].ID] = &scenarios[i]
	}

	pairs := make([]pair, 0, len(executions))
	for i := range executions {
		exec := &executions[i]
		s, ok := byID[exec.ScenarioID]
		if !ok {
			e.logger.Warn("skipping execution without scenario", "scenario", exec.ScenarioID)
			e.progress.OnError(exec.ScenarioID, ErrScenarioNotFound)
			continue
		}
		pairs = append(pairs, pair{scenario: s, exec: exec})
	}

	start := time.Now()
	e.progress.OnStageStart(StageEvaluation, len(pairs))
	results := runner.Map(ctx, e.tuning.Concurrency, pairs, func(ctx context.Context, p pair) result.EvaluationResult {
		if len(p.exec.Errors) > 0 {
			e.progress.OnError(p.scenario.ID, fmt.Errorf("execution errors: %s", strings.Join(p.exec.Errors, "; ")))
		}
		return e.EvaluateScenario(ctx, p.scenario, p.exec)
	})
	// Jobs skipped after cancellation leave zero values behind.
	evaluated := results[:0]
	for _, r := range results {
		if r.ScenarioID != "" {
			evaluated = append(evaluated, r)
		}
	}
	results = evaluated
	e.progress.OnStageComplete(StageEvaluation, time.Since(start).Milliseconds(), len(results))

	e.logger.Info("evaluation complete", "scenarios", len(results), "skipped", len(executions)-len(pairs))
	return results
}
