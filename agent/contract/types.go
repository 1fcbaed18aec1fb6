package contract

import "strings"

// Source records which resolution path produced a ResolvedRequest.
type Source string

const (
	SourceExplicit Source = "EXPLICIT"
	SourceInferred Source = "INFERRED"
)

// Status is the outcome class carried by every ResponseEnvelope.
type Status string

const (
	StatusOK              Status = "OK"
	StatusValidationError Status = "VALIDATION_ERROR"
	StatusUnknownIntent   Status = "UNKNOWN_INTENT"
	StatusHandlerError    Status = "HANDLER_ERROR"
)

// EntityMap holds entity values keyed by canonical (upper-case) entity name.
type EntityMap map[string]string

// NormalizeEntities canonicalizes keys and drops empty values. Keys are
// matched case-insensitively at ingestion; the canonical form is upper-case
// because that is how the backend names its fields.
func NormalizeEntities(in map[string]string) EntityMap {
	out := make(EntityMap, len(in))
	for k, v := range in {
		key := strings.ToUpper(strings.TrimSpace(k))
		value := strings.TrimSpace(v)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// Missing returns the required entity names absent from the map, in the
// order the definition declares them. An empty value counts as missing.
func (m EntityMap) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(m[strings.ToUpper(name)]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Clone returns a shallow copy so per-request mutation never leaks.
func (m EntityMap) Clone() EntityMap {
	out := make(EntityMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IntentDefinition is one entry of the intent catalog: a unique name, the
// entities a request must supply, and the identifier of the handler that
// fulfills it.
type IntentDefinition struct {
	Name        string   `json:"name" mapstructure:"name"`
	Required    []string `json:"required" mapstructure:"required"`
	Handler     string   `json:"handler" mapstructure:"handler"`
	Description string   `json:"description,omitempty" mapstructure:"description"`
	Examples    []string `json:"examples,omitempty" mapstructure:"examples"`
}

// ResolvedRequest is the immutable output of resolution, consumed exactly
// once by dispatch.
type ResolvedRequest struct {
	Intent   string    `json:"intent"`
	Entities EntityMap `json:"entities"`
	Source   Source    `json:"source"`
}

// HandlerResult carries the handler-specific payload of a successful dispatch.
type HandlerResult struct {
	Data any `json:"data,omitempty"`
}

// ResponseEnvelope is the uniform response shape: every well-formed request
// gets one of these, never a raw fault.
type ResponseEnvelope struct {
	Status  Status `json:"status"`
	Intent  string `json:"intentName,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// RouteRequest is the transport-agnostic request shape: either a free-form
// user query (inferred path) or an explicit intent plus entities.
type RouteRequest struct {
	UserQuery string            `json:"user_query,omitempty"`
	Intent    string            `json:"intent,omitempty"`
	Entities  map[string]string `json:"entities,omitempty"`
}
