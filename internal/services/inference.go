package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// InferenceClient is the call-and-response AI completion boundary. Transport
// failures come back marked transient so the orchestrator can retry them;
// content problems (empty or malformed output) are deterministic.
type InferenceClient interface {
	// GenerateJSON runs a prompt in strict response-schema mode.
	GenerateJSON(ctx context.Context, system, user string, schema *genai.Schema) (string, error)
	// GenerateJSONObject runs a prompt in plain JSON-object mode.
	GenerateJSONObject(ctx context.Context, system, user string) (string, error)
}

type geminiClient struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (InferenceClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = "gemini-2.5-flash"
	}

	return &geminiClient{client: client, modelName: model, logger: logger}, nil
}

func (g *geminiClient) GenerateJSON(ctx context.Context, system, user string, schema *genai.Schema) (string, error) {
	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}
	return g.generate(ctx, user, config)
}

func (g *geminiClient) GenerateJSONObject(ctx context.Context, system, user string) (string, error) {
	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}
	return g.generate(ctx, user, config)
}

func (g *geminiClient) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	g.logger.Debug("gemini generate content request",
		zap.String("model", g.modelName),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		// API and transport errors may succeed on a later attempt.
		return "", Transientf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response body", ErrMalformedResponse)
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
	)

	return text, nil
}

// extractJSON strips the markdown fences models occasionally wrap around JSON
// output even in JSON mode.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	return strings.TrimSpace(text)
}
