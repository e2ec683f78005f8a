package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/signalnine/gauntlet/internal/config"
	"github.com/signalnine/gauntlet/internal/evaluator"
	"github.com/signalnine/gauntlet/internal/judge"
	"github.com/signalnine/gauntlet/internal/logging"
	"github.com/signalnine/gauntlet/internal/pricing"
	"github.com/signalnine/gauntlet/internal/report"
	"github.com/signalnine/gauntlet/internal/result"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/secrets"
	"github.com/signalnine/gauntlet/internal/telemetry"
	"github.com/signalnine/gauntlet/internal/transcript"
	"github.com/spf13/cobra"
)

var (
	flagScenarios     string
	flagExecutions    string
	flagSamples       int
	flagConcurrency   int
	flagMode          string
	flagJudgeModel    string
	flagComponentType string
	flagCategory      string
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate executed scenarios and write an evaluation artifact",
		RunE:  runEvaluate,
	}
	cmd.Flags().StringVar(&flagScenarios, "scenarios", "", "scenarios JSON file (overrides inputs.scenarios)")
	cmd.Flags().StringVar(&flagExecutions, "executions", "", "execution results JSON file (overrides inputs.executions)")
	cmd.Flags().IntVar(&flagSamples, "samples", 0, "override judge sample count")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "override max concurrent scenario evaluations")
	cmd.Flags().StringVar(&flagMode, "mode", "", "override detection mode (programmatic_first, llm_only)")
	cmd.Flags().StringVar(&flagJudgeModel, "judge-model", "", "override judge model or alias")
	cmd.Flags().StringVar(&flagComponentType, "component-type", "", "filter scenarios by component type")
	cmd.Flags().StringVar(&flagCategory, "category", "", "filter scenarios by scenario type")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.New(level, cfg.Logging.Format, os.Stderr)
	loadSecrets(cfg, logger)

	scenarios, err := scenario.Load(cfg.Inputs.Scenarios)
	if err != nil {
		return err
	}
	scenarios = filterScenarios(scenarios, flagComponentType, flagCategory)
	executions, err := transcript.Load(cfg.Inputs.Executions)
	if err != nil {
		return err
	}
	if flagComponentType != "" || flagCategory != "" {
		executions = executionsFor(scenarios, executions)
	}
	logger.Info("inputs loaded", "scenarios", len(scenarios), "executions", len(executions))

	prices := pricing.Default()
	if cfg.Pricing.File != "" {
		prices, err = pricing.Load(cfg.Pricing.File)
		if err != nil {
			return err
		}
	}

	rec := telemetry.New()
	j, err := buildJudge(cfg, prices, rec, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := evaluator.Env{
		PluginName: cfg.Plugin.Name,
		Logger:     logger,
		Tuning:     cfg.Tuning(),
		Progress:   newConsoleProgress(os.Stderr),
		Telemetry:  rec,
	}
	if j != nil {
		env.Judge = j
	}
	ev := evaluator.New(env)

	results := ev.EvaluateAll(ctx, scenarios, executions)
	metrics := evaluator.CalculateMetrics(results, executions, ev.MultiSample())

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	path, err := result.WriteArtifact(runDir, result.NewArtifact(cfg.Plugin.Name, results, metrics))
	if err != nil {
		return err
	}
	fmt.Printf("Evaluation artifact: %s\n", path)

	if cfg.Results.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.Results.MetricsFile); err != nil {
			logger.Warn("writing metrics textfile", "path", cfg.Results.MetricsFile, "error", err)
		}
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, "table", os.Stdout)
}

// loadSecrets fills unset environment variables (the judge API key) from
// the configured env file.
func loadSecrets(cfg *config.Config, logger *slog.Logger) {
	if cfg.Secrets.EnvFile == "" {
		return
	}
	set, err := secrets.Apply(cfg.Secrets.EnvFile)
	if err != nil {
		logger.Warn("could not load secrets", "path", cfg.Secrets.EnvFile, "error", err)
		return
	}
	logger.Debug("secrets loaded", "path", cfg.Secrets.EnvFile, "count", len(set))
}

func applyOverrides(cfg *config.Config) error {
	if flagScenarios != "" {
		cfg.Inputs.Scenarios = flagScenarios
	}
	if flagExecutions != "" {
		cfg.Inputs.Executions = flagExecutions
	}
	if cfg.Inputs.Scenarios == "" || cfg.Inputs.Executions == "" {
		return fmt.Errorf("scenarios and executions files are required (inputs section or --scenarios/--executions)")
	}
	if flagSamples > 0 {
		cfg.Judge.NumSamples = flagSamples
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	if flagMode != "" {
		mode, err := evaluator.ParseMode(flagMode)
		if err != nil {
			return err
		}
		cfg.Detection.Mode = string(mode)
	}
	if flagJudgeModel != "" {
		cfg.Judge.Model = flagJudgeModel
	}
	return nil
}

// buildJudge returns nil when no API key is available; scenarios that need
// a judgment then fall back to programmatic verdicts.
func buildJudge(cfg *config.Config, prices *pricing.Table, rec *telemetry.Recorder, logger *slog.Logger) (*judge.Judge, error) {
	apiKey := os.Getenv(cfg.Judge.APIKeyEnv)
	if apiKey == "" {
		logger.Warn("judge disabled: API key not set", "env", cfg.Judge.APIKeyEnv)
		return nil, nil
	}
	method, err := judge.ParseAggregationMethod(cfg.Judge.Aggregation)
	if err != nil {
		return nil, err
	}
	model := judge.NewModelResolver(cfg.Judge.ModelAliases).Resolve(cfg.Judge.Model)
	logger.Info("judge configured", "model", model, "samples", cfg.Judge.NumSamples, "aggregation", method)

	return judge.New(judge.NewOpenAIClient(apiKey, cfg.Judge.BaseURL), judge.Options{
		Model:           model,
		Provider:        cfg.Judge.Provider,
		MaxContentChars: cfg.Judge.MaxContentChars,
		Temperature:     cfg.Judge.Temperature,
		MaxTokens:       cfg.Judge.MaxTokens,
		Retry:           cfg.Retry.Policy(),
		Pricing:         prices,
		Telemetry:       rec,
		Logger:          logger,
	}), nil
}

func filterScenarios(scenarios []scenario.TestScenario, componentType, category string) []scenario.TestScenario {
	if componentType == "" && category == "" {
		return scenarios
	}
	var filtered []scenario.TestScenario
	for _, s := range scenarios {
		if componentType != "" && s.ComponentType != scenario.ParseComponentType(componentType) {
			continue
		}
		if category != "" && string(s.Category) != category {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func executionsFor(scenarios []scenario.TestScenario, executions []transcript.ExecutionResult) []transcript.ExecutionResult {
	keep := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		keep[s.ID] = true
	}
	var filtered []transcript.ExecutionResult
	for _, e := range executions {
		if keep[e.ScenarioID] {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
