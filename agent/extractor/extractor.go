package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
)

// llmOutput is the JSON shape the extraction prompt demands from the model.
type llmOutput struct {
	Intent   string            `json:"intent"`
	Entities map[string]string `json:"entities"`
}

type invokeFunc func(ctx context.Context, in map[string]any) (llmOutput, error)

// LLMExtractor guesses an intent and entities from free-form text via a
// structured-output model graph. Its output is advisory: the router
// re-validates it against the registry before anything is dispatched.
type LLMExtractor struct {
	invoke invokeFunc
}

var _ contractx.Extractor = (*LLMExtractor)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*LLMExtractor, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: extractor prompt is empty", contractx.ErrPromptMissing)
	}

	runner, err := compileExtractionGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, err
	}

	return &LLMExtractor{
		invoke: func(ctx context.Context, in map[string]any) (llmOutput, error) {
			return runner.Invoke(ctx, in)
		},
	}, nil
}

// Extract never returns an error: when the model is unreachable or its
// output violates the schema, the guess degrades to empty so the caller can
// report an unknown intent instead of crashing the request.
func (e *LLMExtractor) Extract(ctx context.Context, text string, defs []contractx.IntentDefinition) (string, contractx.EntityMap) {
	payload := map[string]any{
		"query":   text,
		"intents": catalogSummary(defs),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("extractor: marshal payload")
		return "", contractx.EntityMap{}
	}

	out, err := e.invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		log.Warn().Err(err).Msg("extractor: model invoke failed, degrading to no guess")
		return "", contractx.EntityMap{}
	}

	return strings.TrimSpace(out.Intent), contractx.NormalizeEntities(out.Entities)
}

// catalogSummary projects the registry definitions into the compact shape
// the extraction prompt expects.
func catalogSummary(defs []contractx.IntentDefinition) []map[string]any {
	summary := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		entry := map[string]any{
			"name":     def.Name,
			"required": def.Required,
		}
		if def.Description != "" {
			entry["description"] = def.Description
		}
		if len(def.Examples) > 0 {
			entry["examples"] = def.Examples
		}
		summary = append(summary, entry)
	}
	return summary
}

func compileExtractionGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, llmOutput], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[llmOutput](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, llmOutput]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add extractor prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add extractor model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add extractor parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add extractor edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add extractor edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add extractor edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add extractor edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("extractor.model_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile extractor graph: %w", err)
	}
	return runner, nil
}
