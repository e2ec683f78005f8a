package cmd

import (
	"fmt"
	"sort"

	"github.com/signalnine/gauntlet/internal/config"
	"github.com/signalnine/gauntlet/internal/scenario"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scenarios grouped by component",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			path := cfg.Inputs.Scenarios
			if flagScenarios != "" {
				path = flagScenarios
			}
			scenarios, err := scenario.Load(path)
			if err != nil {
				return err
			}
			scenarios = filterScenarios(scenarios, flagComponentType, flagCategory)

			fmt.Printf("Plugin: %s\n", cfg.Plugin.Name)
			for _, g := range groupScenarios(scenarios) {
				fmt.Printf("\n%s %s:\n", g.componentType, g.ref)
				for _, s := range g.scenarios {
					marker := "+"
					if !s.ExpectedTrigger {
						marker = "-"
					}
					fmt.Printf("  %s %s [%s]\n", marker, s.ID, s.Category)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagScenarios, "scenarios", "", "scenarios JSON file (overrides inputs.scenarios)")
	cmd.Flags().StringVar(&flagComponentType, "component-type", "", "filter by component type")
	cmd.Flags().StringVar(&flagCategory, "category", "", "filter by scenario type")
	return cmd
}

type scenarioGroup struct {
	componentType scenario.ComponentType
	ref           string
	scenarios     []scenario.TestScenario
}

// groupScenarios groups by component, sorted by type then reference.
func groupScenarios(scenarios []scenario.TestScenario) []scenarioGroup {
	index := map[string]int{}
	var groups []scenarioGroup
	for _, s := range scenarios {
		key := string(s.ComponentType) + "\x00" + s.ComponentRef
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, scenarioGroup{componentType: s.ComponentType, ref: s.ComponentRef})
		}
		groups[i].scenarios = append(groups[i].scenarios, s)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].componentType != groups[j].componentType {
			return groups[i].componentType < groups[j].componentType
		}
		return groups[i].ref < groups[j].ref
	})
	return groups
}
