package pricing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelPricing is USD per 1K tokens.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type Table struct {
	Providers map[string]map[string]ModelPricing
}

// Default returns built-in prices for the judge models.
func Default() *Table {
	return &Table{Providers: map[string]map[string]ModelPricing{
		"anthropic": {
			"claude-opus-4-1":   {Input: 0.015, Output: 0.075},
			"claude-opus-4":     {Input: 0.015, Output: 0.075},
			"claude-sonnet-4-5": {Input: 0.003, Output: 0.015},
			"claude-sonnet-4":   {Input: 0.003, Output: 0.015},
			"claude-haiku-4-5":  {Input: 0.001, Output: 0.005},
		},
	}}
}

// Load reads a pricing file and layers it over the defaults.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var providers map[string]map[string]ModelPricing
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	t := Default()
	t.Merge(&Table{Providers: providers})
	return t, nil
}

// Merge copies every price from other into t, replacing existing entries.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	if t.Providers == nil {
		t.Providers = make(map[string]map[string]ModelPricing)
	}
	for provider, models := range other.Providers {
		if t.Providers[provider] == nil {
			t.Providers[provider] = make(map[string]ModelPricing)
		}
		for model, p := range models {
			t.Providers[provider][model] = p
		}
	}
}

// Lookup finds a model's price. Dated ids such as
// "claude-sonnet-4-5-20250929" fall back to the longest listed prefix.
func (t *Table) Lookup(provider, model string) (ModelPricing, bool) {
	if t == nil || t.Providers == nil {
		return ModelPricing{}, false
	}
	models, ok := t.Providers[provider]
	if !ok {
		return ModelPricing{}, false
	}
	if p, ok := models[model]; ok {
		return p, true
	}
	var best string
	for name := range models {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return ModelPricing{}, false
	}
	return models[best], true
}

// Cost calculates total cost for a request. Unknown models cost 0.
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	p, ok := t.Lookup(provider, model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}
