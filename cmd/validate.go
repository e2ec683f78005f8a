package cmd

import (
	"fmt"
	"os"

	"github.com/signalnine/gauntlet/internal/config"
	"github.com/signalnine/gauntlet/internal/logging"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/signalnine/gauntlet/internal/transcript"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check config and input files without calling the judge",
		Long:  "Load the config, scenarios and execution results, and report executions without a scenario and scenarios that were never executed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := applyOverrides(cfg); err != nil {
				return err
			}
			level, _ := logging.ParseLevel(cfg.Logging.Level)
			loadSecrets(cfg, logging.New(level, cfg.Logging.Format, os.Stderr))

			scenarios, err := scenario.Load(cfg.Inputs.Scenarios)
			if err != nil {
				return err
			}
			executions, err := transcript.Load(cfg.Inputs.Executions)
			if err != nil {
				return err
			}

			fmt.Printf("Config OK: plugin %s, judge %s x%d (%s), mode %s\n",
				cfg.Plugin.Name, cfg.Judge.Model, cfg.Judge.NumSamples, cfg.Judge.Aggregation, cfg.Detection.Mode)
			fmt.Printf("%d scenarios, %d executions\n", len(scenarios), len(executions))

			problems := checkInputs(scenarios, executions)
			for _, p := range problems {
				fmt.Fprintf(os.Stderr, "  warning: %s\n", p)
			}
			if os.Getenv(cfg.Judge.APIKeyEnv) == "" {
				fmt.Fprintf(os.Stderr, "  warning: %s is not set; the judge will be disabled\n", cfg.Judge.APIKeyEnv)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagScenarios, "scenarios", "", "scenarios JSON file (overrides inputs.scenarios)")
	cmd.Flags().StringVar(&flagExecutions, "executions", "", "execution results JSON file (overrides inputs.executions)")
	return cmd
}

// checkInputs reports join problems between scenarios and executions.
func checkInputs(scenarios []scenario.TestScenario, executions []transcript.ExecutionResult) []string {
	var problems []string
	known := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		known[s.ID] = true
	}
	executed := make(map[string]int, len(executions))
	for _, e := range executions {
		executed[e.ScenarioID]++
		if !known[e.ScenarioID] {
			problems = append(problems, fmt.Sprintf("execution %q has no matching scenario", e.ScenarioID))
		}
	}
	for _, s := range scenarios {
		switch n := executed[s.ID]; {
		case n == 0:
			problems = append(problems, fmt.Sprintf("scenario %q was never executed", s.ID))
		case n > 1:
			problems = append(problems, fmt.Sprintf("scenario %q has %d executions", s.ID, n))
		}
	}
	return problems
}
