package routernode

import (
	"errors"
	"strings"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
)

var ErrEmptyRequest = errors.New("request carries neither intent nor user query")

type GraphInput struct {
	RequestID string
	Intent    string
	UserQuery string
	Entities  map[string]string
}

// GraphState is the per-request working set threaded through the routing
// graph. It is never shared between in-flight requests.
type GraphState struct {
	RequestID string
	Intent    string
	UserQuery string
	Entities  contractx.EntityMap

	Definition contractx.IntentDefinition
	Resolved   *contractx.ResolvedRequest

	// Envelope is set as soon as the outcome is decided; once non-nil no
	// handler may run.
	Envelope *contractx.ResponseEnvelope
}

// Explicit reports whether the request names its intent. When both an
// intent and free text are present the explicit path wins.
func (s *GraphState) Explicit() bool {
	return s.Intent != ""
}

func ValidateRequest(in GraphInput) (*GraphState, error) {
	intentName := strings.TrimSpace(in.Intent)
	query := strings.TrimSpace(in.UserQuery)
	if intentName == "" && query == "" {
		return nil, ErrEmptyRequest
	}

	return &GraphState{
		RequestID: strings.TrimSpace(in.RequestID),
		Intent:    intentName,
		UserQuery: query,
		Entities:  contractx.NormalizeEntities(in.Entities),
	}, nil
}
