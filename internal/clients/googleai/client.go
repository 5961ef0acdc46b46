package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"voice-server/internal/observability"
	"voice-server/internal/voicecall/conversation"

	"google.golang.org/genai"
)

const providerName = "gemini"

var ErrMissingAPIKey = errors.New("Google AI API key is required")

// GeminiClient answers conversation turns with the Gemini generate-content API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *observability.Logger
}

// NewGeminiClient creates a client for the Gemini API. baseURL may be empty.
func NewGeminiClient(ctx context.Context, apiKey, model, baseURL string, logger *observability.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}
	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

func (g *GeminiClient) Provider() string { return providerName }

// splitHistory moves the system persona into the system instruction and maps the
// remaining turns onto Gemini's user/model roles.
func splitHistory(messages []conversation.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem:
			system = genai.NewContentFromText(m.Content, genai.RoleUser)
		case conversation.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return system, contents
}

func (g *GeminiClient) Complete(ctx context.Context, messages []conversation.Message, maxTokens int) (string, error) {
	system, contents := splitHistory(messages)

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(min(maxTokens, math.MaxInt32))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if resp.UsageMetadata != nil {
		g.logger.Debug(ctx, "Gemini completion finished",
			observability.Field{Key: "model", Value: g.model},
			observability.Field{Key: "total_tokens", Value: resp.UsageMetadata.TotalTokenCount},
		)
	}
	return resp.Text(), nil
}
