package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	routerx "github.com/tanpawarit/Plant-Conversational-Hub/agent/agents/router"
	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	extractorx "github.com/tanpawarit/Plant-Conversational-Hub/agent/extractor"
	handlersx "github.com/tanpawarit/Plant-Conversational-Hub/agent/handlers"
	intentx "github.com/tanpawarit/Plant-Conversational-Hub/agent/intent"
	llmx "github.com/tanpawarit/Plant-Conversational-Hub/agent/llm"
	promptx "github.com/tanpawarit/Plant-Conversational-Hub/agent/prompt"
	auditx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/audit"
	configx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/config"
	_ "github.com/tanpawarit/Plant-Conversational-Hub/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/openrouter"
	sapx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/sap"
)

type AppConfig struct {
	IntentCatalog string `envconfig:"INTENT_CATALOG" split_words:"true" default:"config/intents.json"`
	ListenAddr    string `envconfig:"LISTEN_ADDR" split_words:"true" default:":8000"`
	ChatFallback  bool   `envconfig:"CHAT_FALLBACK" split_words:"true" default:"true"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	sapCfg := configx.MustNew[sapx.Config]("SAP")
	auditCfg := configx.MustNew[auditx.Config]("AUDIT")

	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	defs, err := intentx.LoadCatalog(appCfg.IntentCatalog)
	if err != nil {
		log.Fatal().Err(err).Msg("load intent catalog")
	}
	registry, err := intentx.NewRegistryFromCatalog(defs)
	if err != nil {
		log.Fatal().Err(err).Msg("build intent registry")
	}

	prompts := promptx.LoadPromptSet()

	extractorModelCfg := llmCfg.OpenRouterFor(contractx.RoleExtractor)
	extractorModel, err := extractorModelCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create extractor model")
	}
	ex, err := extractorx.New(ctx, extractorModel, prompts.Extractor)
	if err != nil {
		log.Fatal().Err(err).Msg("build entity extractor")
	}

	chatCfg := llmCfg.OpenRouterFor(contractx.RoleChat)
	chatClient := openrouterx.NewClient(chatCfg)
	if chatClient == nil {
		log.Fatal().Msg("failed to initialize chat client")
	}

	sapClient, err := sapx.NewClient(*sapCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create sap client")
	}

	catalog := handlersx.Build(handlersx.Deps{
		SAP:        sapClient,
		Chat:       chatClient,
		ChatModel:  chatCfg.Model,
		ChatPrompt: prompts.Chat,
	})

	auditLog, err := auditx.NewLogger(*auditCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect audit store")
	}
	defer auditLog.Close()

	rt, err := routerx.New(registry, ex, catalog, auditLog, routerx.Config{
		ChatFallback: appCfg.ChatFallback,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build router")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/route", routeEndpoint(rt))

	log.Info().Str("addr", appCfg.ListenAddr).Int("intents", len(defs)).Msg("listening")
	if err := http.ListenAndServe(appCfg.ListenAddr, mux); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}

// routeEndpoint is a thin transport adapter over Router.Route; routing
// policy lives in the router, not here.
func routeEndpoint(rt *routerx.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req contractx.RouteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		envelope, err := rt.Route(r.Context(), req)
		if err != nil {
			if errors.Is(err, routerx.ErrEmptyRequest) {
				http.Error(w, "provide either 'user_query' or 'intent' + 'entities'", http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Msg("routing pipeline failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode(envelope.Status))
		if err := json.NewEncoder(w).Encode(envelope); err != nil {
			log.Warn().Err(err).Msg("encode response envelope")
		}
	}
}

func statusCode(status contractx.Status) int {
	switch status {
	case contractx.StatusValidationError:
		return http.StatusBadRequest
	case contractx.StatusUnknownIntent:
		return http.StatusNotFound
	case contractx.StatusHandlerError:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}
