package openai

import (
	"context"
	"errors"
	"fmt"

	"voice-server/internal/observability"
	"voice-server/internal/voicecall/conversation"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerName = "openai"

var (
	ErrMissingAPIKey = errors.New("OpenAI API key is required")
	ErrNoChoices     = errors.New("OpenAI returned no choices")
)

type createCompletion func(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)

// ChatClient answers conversation turns with the chat completions API.
type ChatClient struct {
	model  string
	create createCompletion
	logger *observability.Logger
}

func NewChatClient(apiKey, model string, logger *observability.Logger, opts ...option.RequestOption) (*ChatClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(options...)
	return &ChatClient{
		model:  model,
		create: client.Chat.Completions.New,
		logger: logger,
	}, nil
}

func (c *ChatClient) Provider() string { return providerName }

func toChatMessages(messages []conversation.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case conversation.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (c *ChatClient) Complete(ctx context.Context, messages []conversation.Message, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toChatMessages(messages),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := c.create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Debug(ctx, "OpenAI completion finished",
		observability.Field{Key: "model", Value: resp.Model},
		observability.Field{Key: "total_tokens", Value: resp.Usage.TotalTokens},
	)
	return resp.Choices[0].Message.Content, nil
}
