package judge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/signalnine/gauntlet/internal/logging"
	"github.com/signalnine/gauntlet/internal/pricing"
	"github.com/signalnine/gauntlet/internal/retry"
	"github.com/signalnine/gauntlet/internal/telemetry"
)

const (
	tierStructured = "structured"
	tierFallback   = "fallback"
)

type Options struct {
	Model           string // concrete model id, already resolved
	Provider        string // pricing provider key
	MaxContentChars int
	Temperature     float32
	MaxTokens       int
	Retry           retry.Policy
	Pricing         *pricing.Table
	Telemetry       *telemetry.Recorder
	Logger          *slog.Logger
}

// Judge runs LLM judgments. It holds no per-call state and is safe to
// share across goroutines.
type Judge struct {
	client Client
	opts   Options
	logger *slog.Logger
}

func New(client Client, opts Options) *Judge {
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = DefaultMaxContentChars
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Provider == "" {
		opts.Provider = "anthropic"
	}
	return &Judge{
		client: client,
		opts:   opts,
		logger: logging.Component(opts.Logger, "judge"),
	}
}

// Usage is the token spend of one judgment across all attempts and tiers.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

func (u *Usage) add(j *Judge, c *Completion) {
	u.InputTokens += c.InputTokens
	u.OutputTokens += c.OutputTokens
	u.CostUSD += j.opts.Pricing.Cost(j.opts.Provider, j.opts.Model, c.InputTokens, c.OutputTokens)
}

// Evaluate runs one judgment. It asks for a schema-constrained reply
// first and falls back to a plain JSON prompt. It never fails: when both
// tiers fail it returns ErrorResponse.
func (j *Judge) Evaluate(ctx context.Context, in Input) (Response, Usage) {
	var usage Usage
	prompt := BuildPrompt(in, j.opts.MaxContentChars)
	scenarioID := in.Scenario.ID

	resp, err := j.attempt(ctx, tierStructured, Request{
		Model:       j.opts.Model,
		System:      systemPrompt,
		Prompt:      prompt,
		Schema:      responseSchema(),
		Temperature: j.opts.Temperature,
		MaxTokens:   j.opts.MaxTokens,
	}, &usage)
	if err == nil {
		return resp, usage
	}
	j.logger.Warn("structured judge call failed, falling back to plain JSON",
		"scenario", scenarioID, "error", err)

	resp, err = j.attempt(ctx, tierFallback, Request{
		Model:       j.opts.Model,
		System:      systemPrompt,
		Prompt:      prompt + fallbackInstructions,
		Temperature: j.opts.Temperature,
		MaxTokens:   j.opts.MaxTokens,
	}, &usage)
	if err == nil {
		return resp, usage
	}
	j.logger.Error("judge evaluation failed", "scenario", scenarioID, "error", err)
	return ErrorResponse(err), usage
}

func (j *Judge) attempt(ctx context.Context, tier string, req Request, usage *Usage) (Response, error) {
	policy := j.opts.Retry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		j.opts.Telemetry.JudgeRetry()
		j.logger.Debug("retrying judge call", "tier", tier, "attempt", attempt, "delay", delay, "error", err)
	}

	start := time.Now()
	resp, err := retry.Do(ctx, policy, func(ctx context.Context) (Response, error) {
		c, err := j.client.Complete(ctx, req)
		if err != nil {
			return Response{}, err
		}
		usage.add(j, c)
		return ParseResponse(c.Content)
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	j.opts.Telemetry.JudgeCall(tier, outcome, time.Since(start))
	return resp, err
}

// ErrorResponse is the fixed verdict recorded when no judgment could be
// obtained.
func ErrorResponse(err error) Response {
	return Response{
		QualityScore:      1,
		ResponseRelevance: 1,
		TriggerAccuracy:   Incorrect,
		Issues:            []string{fmt.Sprintf("Judge evaluation failed: %v", err)},
		Summary:           "Unable to evaluate response: the judge did not return a usable verdict.",
	}
}

// EvaluateMultiSample runs n sequential judgments and aggregates them.
// n <= 1 runs a single judgment with zero variance.
func (j *Judge) EvaluateMultiSample(ctx context.Context, in Input, n int, method AggregationMethod) MultiSampleResult {
	if n <= 1 {
		resp, usage := j.Evaluate(ctx, in)
		return MultiSampleResult{
			IndividualScores:         []float64{resp.QualityScore},
			AggregatedScore:          resp.QualityScore,
			ScoreVariance:            0,
			ConsensusTriggerAccuracy: resp.TriggerAccuracy,
			IsUnanimous:              true,
			AllIssues:                UnionIssues([]Response{resp}),
			Representative:           resp,
			CostUSD:                  usage.CostUSD,
		}
	}

	samples := make([]Response, 0, n)
	var cost float64
	for i := 0; i < n; i++ {
		resp, usage := j.Evaluate(ctx, in)
		samples = append(samples, resp)
		cost += usage.CostUSD
	}
	res := AggregateSamples(samples, method)
	res.CostUSD = cost

	j.logger.Debug("multi-sample judgment",
		"scenario", in.Scenario.ID, "samples", n, "scores", res.IndividualScores,
		"variance", res.ScoreVariance, "unanimous", res.IsUnanimous)
	return res
}

// AggregateSamples folds two or more judge responses into one result.
func AggregateSamples(samples []Response, method AggregationMethod) MultiSampleResult {
	if len(samples) == 0 {
		return MultiSampleResult{IsUnanimous: true, AllIssues: []string{}}
	}
	scores := make([]float64, len(samples))
	relevance := make([]float64, len(samples))
	verdicts := make([]TriggerAccuracy, len(samples))
	for i, s := range samples {
		scores[i] = s.QualityScore
		relevance[i] = s.ResponseRelevance
		verdicts[i] = s.TriggerAccuracy
	}

	agg := Aggregated{
		QualityScore:      Aggregate(scores, method),
		ResponseRelevance: Aggregate(relevance, method),
		TriggerAccuracy:   MajorityVote(verdicts),
		Issues:            UnionIssues(samples),
	}
	return MultiSampleResult{
		IndividualScores:         scores,
		AggregatedScore:          agg.QualityScore,
		ScoreVariance:            Variance(scores),
		ConsensusTriggerAccuracy: agg.TriggerAccuracy,
		IsUnanimous:              IsUnanimous(verdicts),
		AllIssues:                agg.Issues,
		Representative:           BuildRepresentative(samples[0], agg),
	}
}
