package routernode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	intentx "github.com/tanpawarit/Plant-Conversational-Hub/agent/intent"
)

// ResolveExplicit resolves a request that names its intent. The name is
// taken verbatim: an unregistered intent is an UNKNOWN_INTENT outcome, never
// a fallback.
func ResolveExplicit(in *GraphState, registry *intentx.Registry) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	def, err := registry.Lookup(in.Intent)
	if errors.Is(err, contractx.ErrUnknownIntent) {
		in.Envelope = &contractx.ResponseEnvelope{
			Status:  contractx.StatusUnknownIntent,
			Intent:  in.Intent,
			Message: fmt.Sprintf("intent %q is not registered", in.Intent),
		}
		return in, nil
	}
	if err != nil {
		return nil, err
	}

	finishResolution(in, def, in.Entities, contractx.SourceExplicit)
	return in, nil
}

// ResolveInferred asks the extractor for a guess and re-validates it against
// the registry. With fallbackIntent set, an unresolvable query is rerouted
// to the conversational fallback instead of failing.
func ResolveInferred(
	ctx context.Context,
	in *GraphState,
	ex contractx.Extractor,
	registry *intentx.Registry,
	fallbackIntent string,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	guess, entities := ex.Extract(ctx, in.UserQuery, registry.List())

	var (
		def contractx.IntentDefinition
		err = contractx.ErrUnknownIntent
	)
	if guess != "" {
		def, err = registry.Lookup(guess)
	}

	if errors.Is(err, contractx.ErrUnknownIntent) {
		if fallbackIntent == "" {
			in.Envelope = &contractx.ResponseEnvelope{
				Status:  contractx.StatusUnknownIntent,
				Intent:  guess,
				Message: "no registered intent matches the query",
			}
			return in, nil
		}

		log.Debug().Str("request_id", in.RequestID).Str("guess", guess).
			Str("fallback", fallbackIntent).Msg("rerouting unresolved query to fallback intent")
		def, err = registry.Lookup(fallbackIntent)
		if err != nil {
			return nil, fmt.Errorf("fallback intent %q: %w", fallbackIntent, err)
		}
		entities = contractx.EntityMap{}
	}
	if err != nil && !errors.Is(err, contractx.ErrUnknownIntent) {
		return nil, err
	}

	finishResolution(in, def, entities, contractx.SourceInferred)
	return in, nil
}

// finishResolution validates the entity set against the definition and
// either records the ResolvedRequest or short-circuits with a
// VALIDATION_ERROR envelope. Partial entity sets never reach a handler.
func finishResolution(
	s *GraphState,
	def contractx.IntentDefinition,
	entities contractx.EntityMap,
	source contractx.Source,
) {
	if missing := entities.Missing(def.Required); len(missing) > 0 {
		s.Envelope = &contractx.ResponseEnvelope{
			Status:  contractx.StatusValidationError,
			Intent:  def.Name,
			Message: "missing required entity(s): " + strings.Join(missing, ", "),
		}
		return
	}

	// An intent with no required entities is conversational; keep the raw
	// text available to its handler.
	if len(def.Required) == 0 && s.UserQuery != "" && entities["RAW_TEXT"] == "" {
		entities = entities.Clone()
		entities["RAW_TEXT"] = s.UserQuery
	}

	s.Definition = def
	s.Resolved = &contractx.ResolvedRequest{
		Intent:   def.Name,
		Entities: entities,
		Source:   source,
	}
}
