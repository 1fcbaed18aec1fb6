package handlers

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
)

// ChatReply is the payload the GeneralChat handler returns.
type ChatReply struct {
	Reply string `json:"reply"`
}

// GeneralChat is the open-ended conversational fallback. It declares no
// required entities, so it is a valid target for any request that carries
// text at all.
type GeneralChat struct {
	client       *openaisdk.Client
	model        string
	systemPrompt string
}

func NewGeneralChat(client *openaisdk.Client, model, systemPrompt string) *GeneralChat {
	return &GeneralChat{client: client, model: model, systemPrompt: systemPrompt}
}

func (h *GeneralChat) Handle(ctx context.Context, entities contractx.EntityMap) (contractx.HandlerResult, error) {
	question := chatQuestion(entities)

	messages := []openaisdk.ChatCompletionMessageParamUnion{}
	if h.systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(h.systemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(question))

	resp, err := h.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(h.model),
		Messages: messages,
	})
	if err != nil {
		log.Error().Err(err).Str("model", h.model).Msg("chat completion failed")
		return contractx.HandlerResult{}, fmt.Errorf("%w: conversational model unavailable", contractx.ErrHandler)
	}
	if len(resp.Choices) == 0 {
		return contractx.HandlerResult{}, fmt.Errorf("%w: conversational model returned no choices", contractx.ErrHandler)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return contractx.HandlerResult{}, fmt.Errorf("%w: conversational model returned an empty reply", contractx.ErrHandler)
	}

	return contractx.HandlerResult{Data: ChatReply{Reply: reply}}, nil
}

// chatQuestion picks the text to forward: the raw user query when the
// router preserved it, an explicit QUESTION entity otherwise.
func chatQuestion(entities contractx.EntityMap) string {
	if q := strings.TrimSpace(entities["RAW_TEXT"]); q != "" {
		return q
	}
	if q := strings.TrimSpace(entities["QUESTION"]); q != "" {
		return q
	}
	return "Hello"
}
