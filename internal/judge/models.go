package judge

import "strings"

// DefaultModelAliases maps the short model names used in configs to
// concrete model ids.
var DefaultModelAliases = map[string]string{
	"sonnet": "claude-sonnet-4-5-20250929",
	"opus":   "claude-opus-4-1-20250805",
	"haiku":  "claude-haiku-4-5-20251001",
}

// ModelResolver translates model aliases into concrete ids. It is
// read-only after construction.
type ModelResolver struct {
	aliases map[string]string
}

// NewModelResolver layers overrides on top of DefaultModelAliases.
func NewModelResolver(overrides map[string]string) *ModelResolver {
	aliases := make(map[string]string, len(DefaultModelAliases)+len(overrides))
	for k, v := range DefaultModelAliases {
		aliases[k] = v
	}
	for k, v := range overrides {
		aliases[strings.ToLower(k)] = v
	}
	return &ModelResolver{aliases: aliases}
}

// Resolve returns the concrete id for alias, or alias itself when it is
// not a known alias.
func (r *ModelResolver) Resolve(alias string) string {
	key := strings.ToLower(strings.TrimSpace(alias))
	if r != nil {
		if id, ok := r.aliases[key]; ok {
			return id
		}
	}
	return strings.TrimSpace(alias)
}
