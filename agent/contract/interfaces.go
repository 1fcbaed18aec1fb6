package contract

import "context"

// Handler fulfills exactly one intent. Entities passed in are already
// validated against the intent's required list; extra keys may be present
// and handlers ignore the ones they do not declare.
type Handler interface {
	Handle(ctx context.Context, entities EntityMap) (HandlerResult, error)
}

// Extractor guesses an intent name and a partial entity set from free-form
// text. It is advisory only: the guess is re-validated against the registry
// before dispatch. An unreachable or unparseable model never surfaces as an
// error here; the extractor returns an empty guess and an empty map instead.
type Extractor interface {
	Extract(ctx context.Context, text string, defs []IntentDefinition) (string, EntityMap)
}

// ModelRole selects per-role model overrides in the LLM configuration.
type ModelRole string

const (
	RoleExtractor ModelRole = "extractor"
	RoleChat      ModelRole = "chat"
)
