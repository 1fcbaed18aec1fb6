package routernode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
)

// HandlerResolver turns a handler identifier into a handler. The registry
// has already vetted the intent, so a miss here is a wiring bug, not a
// request error.
type HandlerResolver func(id string) (contractx.Handler, error)

// DispatchHandler invokes the resolved handler at most once and normalizes
// its outcome into the envelope. Handler failures and panics never escape
// as raw faults; the cause is logged and a sanitized message is returned.
func DispatchHandler(ctx context.Context, in *GraphState, resolve HandlerResolver) (*GraphState, error) {
	if in == nil || in.Resolved == nil {
		return nil, fmt.Errorf("%w: dispatch requires a resolved request", contractx.ErrValidation)
	}
	if in.Envelope != nil {
		return in, nil
	}

	handler, err := resolve(in.Definition.Handler)
	if err != nil {
		return nil, err
	}

	result, err := invoke(ctx, handler, in.Resolved.Entities)
	if err != nil {
		log.Error().Str("request_id", in.RequestID).Str("intent", in.Resolved.Intent).
			Err(err).Msg("handler failed")
		in.Envelope = &contractx.ResponseEnvelope{
			Status:  contractx.StatusHandlerError,
			Intent:  in.Resolved.Intent,
			Message: err.Error(),
		}
		return in, nil
	}

	in.Envelope = &contractx.ResponseEnvelope{
		Status: contractx.StatusOK,
		Intent: in.Resolved.Intent,
		Data:   result.Data,
	}
	return in, nil
}

func invoke(ctx context.Context, h contractx.Handler, entities contractx.EntityMap) (result contractx.HandlerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", contractx.ErrHandler, r)
		}
	}()
	return h.Handle(ctx, entities)
}
