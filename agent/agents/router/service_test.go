package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	handlersx "github.com/tanpawarit/Plant-Conversational-Hub/agent/handlers"
	intentx "github.com/tanpawarit/Plant-Conversational-Hub/agent/intent"
)

type fakeExtractor struct {
	guess    string
	entities map[string]string
	calls    int
	lastText string
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, defs []contractx.IntentDefinition) (string, contractx.EntityMap) {
	f.calls++
	f.lastText = text
	return f.guess, contractx.NormalizeEntities(f.entities)
}

type countingHandler struct {
	result contractx.HandlerResult
	err    error
	calls  int
	last   contractx.EntityMap
}

func (h *countingHandler) Handle(ctx context.Context, entities contractx.EntityMap) (contractx.HandlerResult, error) {
	h.calls++
	h.last = entities.Clone()
	if h.err != nil {
		return contractx.HandlerResult{}, h.err
	}
	return h.result, nil
}

type panicHandler struct{}

func (panicHandler) Handle(ctx context.Context, entities contractx.EntityMap) (contractx.HandlerResult, error) {
	panic("backend client exploded")
}

func testRegistry(t *testing.T) *intentx.Registry {
	t.Helper()
	registry, err := intentx.NewRegistryFromCatalog([]contractx.IntentDefinition{
		{Name: "CreateTelephoneAddress", Required: []string{"PLANT", "TELEPHONE"}, Handler: "telephone_write"},
		{Name: "GeneralChat", Handler: "general_chat"},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return registry
}

func newTestRouter(t *testing.T, ex contractx.Extractor, catalog handlersx.Catalog, cfg Config) *Router {
	t.Helper()
	rt, err := New(testRegistry(t), ex, catalog, nil, cfg)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return rt
}

func defaultCatalog(telephone, chat contractx.Handler) handlersx.Catalog {
	return handlersx.Catalog{
		"telephone_write": telephone,
		"general_chat":    chat,
	}
}

func TestExplicitMissingEntityShortCircuits(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{}
	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(handler, &countingHandler{}), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{
		Intent:   "CreateTelephoneAddress",
		Entities: map[string]string{"PLANT": "1001"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusValidationError {
		t.Fatalf("expected VALIDATION_ERROR, got %s", out.Status)
	}
	if !strings.Contains(out.Message, "TELEPHONE") {
		t.Fatalf("message must name the missing entity, got %q", out.Message)
	}
	if handler.calls != 0 {
		t.Fatalf("handler must not run on validation failure, ran %d times", handler.calls)
	}
}

func TestExplicitDispatchesExactlyOnce(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{result: contractx.HandlerResult{Data: map[string]any{"PLANT": "1001"}}}
	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(handler, &countingHandler{}), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{
		Intent:   "CreateTelephoneAddress",
		Entities: map[string]string{"plant": "1001", "telephone": "+1 222 333"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusOK {
		t.Fatalf("expected OK, got %s (%s)", out.Status, out.Message)
	}
	if out.Intent != "CreateTelephoneAddress" {
		t.Fatalf("unexpected intent: %s", out.Intent)
	}
	if handler.calls != 1 {
		t.Fatalf("expected exactly one handler invocation, got %d", handler.calls)
	}
	if handler.last["PLANT"] != "1001" || handler.last["TELEPHONE"] != "+1 222 333" {
		t.Fatalf("entity keys were not canonicalized: %v", handler.last)
	}
}

func TestExplicitUnknownIntent(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{}
	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(handler, &countingHandler{}), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{
		Intent:   "DeleteEverything",
		Entities: map[string]string{"PLANT": "1001"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusUnknownIntent {
		t.Fatalf("expected UNKNOWN_INTENT, got %s", out.Status)
	}
	if handler.calls != 0 {
		t.Fatalf("handler must not run for an unknown intent")
	}
}

func TestInferredMatchesExplicitResult(t *testing.T) {
	t.Parallel()

	data := map[string]any{"PLANT": "1001", "action": "created"}

	explicitHandler := &countingHandler{result: contractx.HandlerResult{Data: data}}
	explicitRouter := newTestRouter(t, &fakeExtractor{}, defaultCatalog(explicitHandler, &countingHandler{}), Config{})
	explicitOut, err := explicitRouter.Route(context.Background(), contractx.RouteRequest{
		Intent:   "CreateTelephoneAddress",
		Entities: map[string]string{"PLANT": "1001", "TELEPHONE": "+1 222 333"},
	})
	if err != nil {
		t.Fatalf("explicit route: %v", err)
	}

	inferredHandler := &countingHandler{result: contractx.HandlerResult{Data: data}}
	ex := &fakeExtractor{
		guess:    "CreateTelephoneAddress",
		entities: map[string]string{"PLANT": "1001", "TELEPHONE": "+1 222 333"},
	}
	inferredRouter := newTestRouter(t, ex, defaultCatalog(inferredHandler, &countingHandler{}), Config{})
	inferredOut, err := inferredRouter.Route(context.Background(), contractx.RouteRequest{
		UserQuery: "Create telephone address for plant 1001 with number +1 222 333",
	})
	if err != nil {
		t.Fatalf("inferred route: %v", err)
	}

	if explicitOut.Status != contractx.StatusOK || inferredOut.Status != contractx.StatusOK {
		t.Fatalf("expected OK on both paths, got %s and %s", explicitOut.Status, inferredOut.Status)
	}
	if explicitOut.Intent != inferredOut.Intent {
		t.Fatalf("paths resolved different intents: %s vs %s", explicitOut.Intent, inferredOut.Intent)
	}
	if inferredHandler.calls != 1 {
		t.Fatalf("expected exactly one inferred invocation, got %d", inferredHandler.calls)
	}
	if inferredHandler.last["PLANT"] != explicitHandler.last["PLANT"] {
		t.Fatalf("paths forwarded different entities: %v vs %v", inferredHandler.last, explicitHandler.last)
	}
}

func TestInferredExtractorReturnsNothing(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{}
	chat := &countingHandler{}
	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(handler, chat), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{UserQuery: "mumble mumble"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusUnknownIntent {
		t.Fatalf("expected UNKNOWN_INTENT, got %s", out.Status)
	}
	if handler.calls != 0 || chat.calls != 0 {
		t.Fatal("no handler may run when the extractor yields nothing and fallback is off")
	}
}

func TestInferredGuessNotRegistered(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{}
	rt := newTestRouter(t, &fakeExtractor{guess: "OrderPizza"}, defaultCatalog(handler, &countingHandler{}), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{UserQuery: "one margherita please"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusUnknownIntent {
		t.Fatalf("expected UNKNOWN_INTENT, got %s", out.Status)
	}
	if handler.calls != 0 {
		t.Fatal("handler must not run for an unregistered guess")
	}
}

func TestExplicitIntentTakesPrecedenceOverText(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{}
	ex := &fakeExtractor{guess: "GeneralChat"}
	rt := newTestRouter(t, ex, defaultCatalog(handler, &countingHandler{}), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{
		Intent:    "CreateTelephoneAddress",
		UserQuery: "please create a telephone address",
		Entities:  map[string]string{"PLANT": "1001", "TELEPHONE": "+1 222 333"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusOK {
		t.Fatalf("expected OK, got %s", out.Status)
	}
	if ex.calls != 0 {
		t.Fatalf("extractor must not run on the explicit path, ran %d times", ex.calls)
	}
	if handler.calls != 1 {
		t.Fatalf("expected one invocation, got %d", handler.calls)
	}
}

func TestHandlerErrorBecomesEnvelope(t *testing.T) {
	t.Parallel()

	handler := &countingHandler{err: errors.New("backend rejected the write")}
	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(handler, &countingHandler{}), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{
		Intent:   "CreateTelephoneAddress",
		Entities: map[string]string{"PLANT": "1001", "TELEPHONE": "+1 222 333"},
	})
	if err != nil {
		t.Fatalf("handler failure must not escape as an error: %v", err)
	}
	if out.Status != contractx.StatusHandlerError {
		t.Fatalf("expected HANDLER_ERROR, got %s", out.Status)
	}
	if out.Message == "" {
		t.Fatal("expected a diagnostic message")
	}
	if handler.calls != 1 {
		t.Fatalf("failed dispatch must not retry, got %d calls", handler.calls)
	}
}

func TestHandlerPanicBecomesEnvelope(t *testing.T) {
	t.Parallel()

	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(panicHandler{}, &countingHandler{}), Config{})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{
		Intent:   "CreateTelephoneAddress",
		Entities: map[string]string{"PLANT": "1001", "TELEPHONE": "+1 222 333"},
	})
	if err != nil {
		t.Fatalf("handler panic must not escape as an error: %v", err)
	}
	if out.Status != contractx.StatusHandlerError {
		t.Fatalf("expected HANDLER_ERROR, got %s", out.Status)
	}
}

func TestChatFallbackReroutesUnresolvedQuery(t *testing.T) {
	t.Parallel()

	chat := &countingHandler{result: contractx.HandlerResult{Data: "hi there"}}
	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(&countingHandler{}, chat), Config{ChatFallback: true})

	out, err := rt.Route(context.Background(), contractx.RouteRequest{UserQuery: "what can you do?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusOK {
		t.Fatalf("expected OK via fallback, got %s (%s)", out.Status, out.Message)
	}
	if out.Intent != "GeneralChat" {
		t.Fatalf("expected GeneralChat, got %s", out.Intent)
	}
	if chat.calls != 1 {
		t.Fatalf("expected one chat invocation, got %d", chat.calls)
	}
	if chat.last["RAW_TEXT"] != "what can you do?" {
		t.Fatalf("raw text must reach the chat handler, got %v", chat.last)
	}
}

func TestEmptyRequestIsRejected(t *testing.T) {
	t.Parallel()

	rt := newTestRouter(t, &fakeExtractor{}, defaultCatalog(&countingHandler{}, &countingHandler{}), Config{})

	if _, err := rt.Route(context.Background(), contractx.RouteRequest{}); err == nil {
		t.Fatal("expected an error for a request with neither intent nor text")
	}
}

func TestNewRejectsUnwiredHandlerID(t *testing.T) {
	t.Parallel()

	registry, err := intentx.NewRegistryFromCatalog([]contractx.IntentDefinition{
		{Name: "CreateTelephoneAddress", Required: []string{"PLANT"}, Handler: "missing_handler"},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	if _, err := New(registry, &fakeExtractor{}, handlersx.Catalog{"other": &countingHandler{}}, nil, Config{}); err == nil {
		t.Fatal("expected startup error for an unwired handler id")
	}
}
