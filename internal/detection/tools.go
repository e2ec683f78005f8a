package detection

import (
	"encoding/json"
	"strings"

	"github.com/signalnine/gauntlet/internal/scenario"
)

// ToolClass says how a captured tool name relates to plugin components.
type ToolClass int

const (
	ToolUnrecognized ToolClass = iota
	ToolComponent
	ToolExternal
)

func (c ToolClass) String() string {
	switch c {
	case ToolComponent:
		return "component"
	case ToolExternal:
		return "external"
	default:
		return "unrecognized"
	}
}

// triggerTools maps tool names that dispatch plugin components to the
// component type they dispatch.
var triggerTools = map[string]scenario.ComponentType{
	"Skill":        scenario.Skill,
	"Task":         scenario.Agent,
	"Agent":        scenario.Agent,
	"SlashCommand": scenario.Command,
}

// inputFields names the payload field that carries the component name.
var inputFields = map[scenario.ComponentType]string{
	scenario.Skill:   "skill",
	scenario.Agent:   "subagent_type",
	scenario.Command: "command",
}

// ClassifyTool looks up a tool name. Only ToolComponent results carry a
// meaningful component type.
func ClassifyTool(name string) (ToolClass, scenario.ComponentType) {
	if t, ok := triggerTools[name]; ok {
		return ToolComponent, t
	}
	if isNamespacedTool(name) {
		return ToolExternal, scenario.Unrecognized
	}
	return ToolUnrecognized, scenario.Unrecognized
}

// isNamespacedTool reports whether name follows the namespace__tool
// convention used by external integrations (e.g. mcp__github__create_issue).
func isNamespacedTool(name string) bool {
	ns, tool, ok := strings.Cut(name, "__")
	return ok && ns != "" && tool != ""
}

// componentFromInput extracts and normalizes the component name from a tool
// payload. Malformed payloads report ok=false.
func componentFromInput(t scenario.ComponentType, input json.RawMessage) (name, raw string, ok bool) {
	field, known := inputFields[t]
	if !known || len(input) == 0 {
		return "", "", false
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(input, &payload); err != nil {
		return "", "", false
	}
	value, present := payload[field]
	if !present {
		return "", "", false
	}
	if err := json.Unmarshal(value, &raw); err != nil {
		return "", "", false
	}
	name = normalizeName(t, raw)
	return name, raw, name != ""
}

// normalizeName strips command slashes and arguments, then plugin and
// namespace prefixes, leaving the last path segment.
func normalizeName(t scenario.ComponentType, s string) string {
	s = strings.TrimSpace(s)
	if t == scenario.Command {
		s = strings.TrimPrefix(s, "/")
		if i := strings.IndexAny(s, " \t\n"); i >= 0 {
			s = s[:i]
		}
	}
	return lastSegment(s)
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
