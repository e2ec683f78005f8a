package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ComponentType is the closed set of plugin component kinds.
type ComponentType string

const (
	Skill        ComponentType = "skill"
	Agent        ComponentType = "agent"
	Command      ComponentType = "command"
	Hook         ComponentType = "hook"
	Unrecognized ComponentType = "unrecognized"
)

var componentTypes = map[string]ComponentType{
	"skill":   Skill,
	"agent":   Agent,
	"command": Command,
	"hook":    Hook,
}

// ParseComponentType maps a type name to its enum value. Unknown names map
// to Unrecognized.
func ParseComponentType(s string) ComponentType {
	if t, ok := componentTypes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return Unrecognized
}

func (t ComponentType) Valid() bool {
	_, ok := componentTypes[string(t)]
	return ok
}

type Category string

const (
	Direct      Category = "direct"
	Paraphrased Category = "paraphrased"
	EdgeCase    Category = "edge_case"
	Negative    Category = "negative"
	Semantic    Category = "semantic"
	Proactive   Category = "proactive"
)

// TestScenario is one generated test case. ComponentRef is the component
// name for skills, agents and commands, and "Event" or "Event::Matcher"
// for hooks.
type TestScenario struct {
	ID                   string        `json:"id" validate:"required"`
	ComponentRef         string        `json:"component_ref" validate:"required"`
	ComponentType        ComponentType `json:"component_type" validate:"required,oneof=skill agent command hook"`
	Category             Category      `json:"scenario_type" validate:"required,oneof=direct paraphrased edge_case negative semantic proactive"`
	UserPrompt           string        `json:"user_prompt" validate:"required"`
	ExpectedTrigger      bool          `json:"expected_trigger"`
	ExpectedComponent    string        `json:"expected_component" validate:"required"`
	ComponentDescription string        `json:"component_description,omitempty"`
	SetupMessages        []string      `json:"setup_messages,omitempty"`
}

var validate = validator.New()

// Validate checks the struct constraints of a scenario.
func Validate(s *TestScenario) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("scenario %q: %w", s.ID, err)
	}
	return nil
}

// Load reads a JSON array of scenarios and validates each one.
func Load(path string) ([]TestScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios %s: %w", path, err)
	}
	var scenarios []TestScenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("parsing scenarios %s: %w", path, err)
	}
	seen := make(map[string]bool, len(scenarios))
	for i := range scenarios {
		if err := Validate(&scenarios[i]); err != nil {
			return nil, fmt.Errorf("invalid scenarios %s: %w", path, err)
		}
		if seen[scenarios[i].ID] {
			return nil, fmt.Errorf("invalid scenarios %s: duplicate id %q", path, scenarios[i].ID)
		}
		seen[scenarios[i].ID] = true
	}
	return scenarios, nil
}
