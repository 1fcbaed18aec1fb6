package intent

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
)

// Registry is the single source of truth for which intents exist and what
// they need. It is populated once at startup; after that it is only read,
// so concurrent lookups need no locking.
type Registry struct {
	defs  map[string]contractx.IntentDefinition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]contractx.IntentDefinition)}
}

// NewRegistryFromCatalog registers every catalog definition, failing on the
// first duplicate or malformed entry.
func NewRegistryFromCatalog(defs []contractx.IntentDefinition) (*Registry, error) {
	r := NewRegistry()
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(def contractx.IntentDefinition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("%w: intent name is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(def.Handler) == "" {
		return fmt.Errorf("%w: intent=%s has no handler id", contractx.ErrValidation, name)
	}
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateIntent, name)
	}

	seen := make(map[string]struct{}, len(def.Required))
	required := make([]string, 0, len(def.Required))
	for _, field := range def.Required {
		field = strings.ToUpper(strings.TrimSpace(field))
		if field == "" {
			return fmt.Errorf("%w: intent=%s has an empty required entity name", contractx.ErrValidation, name)
		}
		if _, dup := seen[field]; dup {
			return fmt.Errorf("%w: intent=%s declares entity=%s twice", contractx.ErrValidation, name, field)
		}
		seen[field] = struct{}{}
		required = append(required, field)
	}

	def.Name = name
	def.Required = required
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Lookup(name string) (contractx.IntentDefinition, error) {
	def, ok := r.defs[strings.TrimSpace(name)]
	if !ok {
		return contractx.IntentDefinition{}, fmt.Errorf("%w: %s", contractx.ErrUnknownIntent, name)
	}
	return cloneDefinition(def), nil
}

// List returns every definition in registration order.
func (r *Registry) List() []contractx.IntentDefinition {
	out := make([]contractx.IntentDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, cloneDefinition(r.defs[name]))
	}
	return out
}

// cloneDefinition copies the slices so callers can never mutate the table.
func cloneDefinition(def contractx.IntentDefinition) contractx.IntentDefinition {
	def.Required = append([]string(nil), def.Required...)
	def.Examples = append([]string(nil), def.Examples...)
	return def
}
