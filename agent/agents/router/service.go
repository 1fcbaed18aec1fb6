package router

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	handlersx "github.com/tanpawarit/Plant-Conversational-Hub/agent/handlers"
	intentx "github.com/tanpawarit/Plant-Conversational-Hub/agent/intent"
	routernode "github.com/tanpawarit/Plant-Conversational-Hub/agent/nodes/router"
	auditx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/audit"
)

var ErrEmptyRequest = routernode.ErrEmptyRequest

type Config struct {
	// ChatFallback reroutes an unresolvable inferred request to the
	// conversational fallback intent instead of answering UNKNOWN_INTENT.
	// Explicit-path misses never fall back.
	ChatFallback bool

	// FallbackIntent names the conversational intent used when
	// ChatFallback is on. Defaults to GeneralChat.
	FallbackIntent string
}

// Router is the resolution and dispatch engine: it decides which intent a
// request targets, validates the entity set, and invokes the handler exactly
// once. Every outcome is a ResponseEnvelope.
type Router struct {
	registry  *intentx.Registry
	extractor contractx.Extractor
	handlers  handlersx.Catalog
	audit     *auditx.Logger

	graphRunner compose.Runnable[routernode.GraphInput, contractx.ResponseEnvelope]

	fallbackIntent string

	now func() time.Time
}

func New(
	registry *intentx.Registry,
	extractor contractx.Extractor,
	catalog handlersx.Catalog,
	audit *auditx.Logger,
	cfg Config,
) (*Router, error) {
	if registry == nil {
		return nil, errors.New("intent registry is required")
	}
	if extractor == nil {
		return nil, errors.New("entity extractor is required")
	}
	if len(catalog) == 0 {
		return nil, errors.New("handler catalog is required")
	}

	// Fail at startup, not at dispatch time, when the catalog does not
	// cover every handler id the registry references.
	for _, def := range registry.List() {
		if _, err := catalog.Resolve(def.Handler); err != nil {
			return nil, err
		}
	}

	fallbackIntent := ""
	if cfg.ChatFallback {
		fallbackIntent = strings.TrimSpace(cfg.FallbackIntent)
		if fallbackIntent == "" {
			fallbackIntent = "GeneralChat"
		}
		if _, err := registry.Lookup(fallbackIntent); err != nil {
			return nil, err
		}
	}

	r := &Router{
		registry:       registry,
		extractor:      extractor,
		handlers:       catalog,
		audit:          audit,
		fallbackIntent: fallbackIntent,
		now:            time.Now,
	}

	graphRunner, err := r.compileRouteGraph(context.Background())
	if err != nil {
		return nil, err
	}
	r.graphRunner = graphRunner

	return r, nil
}

// Route resolves and dispatches one request. A malformed request (neither
// intent nor text) returns an error; every well-formed request returns an
// envelope, never a raw handler fault.
func (r *Router) Route(ctx context.Context, req contractx.RouteRequest) (contractx.ResponseEnvelope, error) {
	requestID := uuid.NewString()
	started := r.now()

	source := contractx.SourceInferred
	if strings.TrimSpace(req.Intent) != "" {
		source = contractx.SourceExplicit
	}

	out, err := r.graphRunner.Invoke(ctx, routernode.GraphInput{
		RequestID: requestID,
		Intent:    req.Intent,
		UserQuery: req.UserQuery,
		Entities:  req.Entities,
	})
	if err != nil {
		return contractx.ResponseEnvelope{}, err
	}

	latency := r.now().Sub(started)
	log.Info().Str("request_id", requestID).Str("intent", out.Intent).
		Str("source", string(source)).Str("status", string(out.Status)).
		Dur("latency", latency).Msg("request routed")

	r.audit.Record(ctx, &auditx.Entry{
		RequestID: requestID,
		Intent:    out.Intent,
		Source:    string(source),
		Status:    string(out.Status),
		LatencyMS: latency.Milliseconds(),
	})

	return out, nil
}
