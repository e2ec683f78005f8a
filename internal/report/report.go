package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/gauntlet/internal/result"
)

type ComponentSummary struct {
	ComponentType string  `json:"component_type"`
	Scenarios     int     `json:"scenarios"`
	TriggerRate   float64 `json:"trigger_rate"`
	Accuracy      float64 `json:"accuracy"`
	AvgQuality    float64 `json:"avg_quality"`
}

// Summary is the report view of one evaluation artifact.
type Summary struct {
	RunID        string             `json:"run_id"`
	PluginName   string             `json:"plugin_name"`
	Overall      ComponentSummary   `json:"overall"`
	Components   []ComponentSummary `json:"components"`
	Conflicts    int                `json:"conflicts"`
	Major        int                `json:"major_conflicts"`
	TotalCostUSD float64            `json:"total_cost_usd"`
	Mismatches   []Mismatch         `json:"mismatches"`
}

// Mismatch is a scenario whose trigger outcome differed from expectation.
type Mismatch struct {
	ScenarioID string `json:"scenario_id"`
	Component  string `json:"component"`
	Expected   bool   `json:"expected_trigger"`
	Triggered  bool   `json:"triggered"`
}

// Generate reads an evaluation artifact (file or run directory) and writes
// a summary in the given format: table, markdown or json.
func Generate(path, format string, w io.Writer) error {
	a, err := result.ReadArtifact(path)
	if err != nil {
		return err
	}
	s := Summarize(a)

	switch format {
	case "markdown":
		return writeMarkdown(s, w)
	case "json":
		return writeJSON(s, w)
	default:
		return writeTable(s, w)
	}
}

func Summarize(a *result.Artifact) Summary {
	m := a.Metrics
	s := Summary{
		RunID:      a.RunID,
		PluginName: a.PluginName,
		Overall: ComponentSummary{
			ComponentType: "all",
			Scenarios:     m.TotalScenarios,
			TriggerRate:   m.TriggerRate,
			Accuracy:      m.Accuracy,
			AvgQuality:    m.AvgQuality,
		},
		Conflicts:    m.ConflictCount,
		Major:        m.MajorConflicts,
		TotalCostUSD: a.TotalCostUSD,
		Mismatches:   []Mismatch{},
	}

	for t, ct := range m.ByComponentType {
		rate := 0.0
		if ct.Total > 0 {
			rate = float64(ct.Triggered) / float64(ct.Total)
		}
		s.Components = append(s.Components, ComponentSummary{
			ComponentType: string(t),
			Scenarios:     ct.Total,
			TriggerRate:   rate,
			Accuracy:      ct.Accuracy,
			AvgQuality:    ct.AvgQuality,
		})
	}
	sort.Slice(s.Components, func(i, j int) bool {
		return s.Components[i].ComponentType < s.Components[j].ComponentType
	})

	for _, r := range a.Results {
		if r.Correct() {
			continue
		}
		s.Mismatches = append(s.Mismatches, Mismatch{
			ScenarioID: r.ScenarioID,
			Component:  fmt.Sprintf("%s:%s", r.ComponentType, r.ComponentRef),
			Expected:   r.ExpectedTrigger,
			Triggered:  r.Triggered,
		})
	}
	return s
}

func writeTable(s Summary, w io.Writer) error {
	fmt.Fprintf(w, "Plugin: %s  Run: %s\n\n", s.PluginName, s.RunID)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tSCENARIOS\tTRIGGER RATE\tACCURACY\tAVG QUALITY")
	fmt.Fprintln(tw, strings.Repeat("-", 70))
	for _, c := range append(s.Components, s.Overall) {
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.0f%%\t%.2f\n",
			c.ComponentType, c.Scenarios, c.TriggerRate*100, c.Accuracy*100, c.AvgQuality)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nConflicts: %d (%d major)  Total cost: $%.4f\n", s.Conflicts, s.Major, s.TotalCostUSD)
	for _, m := range s.Mismatches {
		fmt.Fprintf(w, "  MISMATCH %s %s expected=%t triggered=%t\n", m.ScenarioID, m.Component, m.Expected, m.Triggered)
	}
	return nil
}

func writeMarkdown(s Summary, w io.Writer) error {
	fmt.Fprintf(w, "## %s\n\n", s.PluginName)
	fmt.Fprintln(w, "| Component | Scenarios | Trigger Rate | Accuracy | Avg Quality |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, c := range append(s.Components, s.Overall) {
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %.0f%% | %.2f |\n",
			c.ComponentType, c.Scenarios, c.TriggerRate*100, c.Accuracy*100, c.AvgQuality)
	}
	fmt.Fprintf(w, "\nConflicts: %d (%d major), total cost $%.4f\n", s.Conflicts, s.Major, s.TotalCostUSD)
	if len(s.Mismatches) > 0 {
		fmt.Fprintln(w, "\n### Mismatches")
		for _, m := range s.Mismatches {
			fmt.Fprintf(w, "- `%s` %s: expected %t, triggered %t\n", m.ScenarioID, m.Component, m.Expected, m.Triggered)
		}
	}
	return nil
}

func writeJSON(s Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
