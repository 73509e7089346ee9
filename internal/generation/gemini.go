package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiCompleter implements Completer using Gemini text generation.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func NewGeminiCompleter(ctx context.Context, apiKey, modelName string, temperature float32) (*GeminiCompleter, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{client: client, model: modelName, temperature: temperature}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	temperature := g.temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if strings.TrimSpace(system) != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// GeminiEmbedder embeds sentences with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   int
	plan   embedPlan
}

// Gemini's free tier throttles hard, so batches are small and spaced out.
var geminiEmbedPlan = embedPlan{
	batchSize: 50,
	pause:     700 * time.Millisecond,
	retries:   5,
	backoff:   6 * time.Second,
	retryable: isRateLimitError,
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dims int) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: modelName, dims: dims, plan: geminiEmbedPlan}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var cfg *genai.EmbedContentConfig
	if g.dims > 0 {
		n := int32(g.dims)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &n}
	}
	vecs, err := g.plan.run(ctx, texts, func(ctx context.Context, batch []string) ([][]float32, error) {
		parts := make([]*genai.Content, len(batch))
		for i, text := range batch {
			parts[i] = genai.NewContentFromText(text, genai.RoleUser)
		}
		res, err := g.client.Models.EmbedContent(ctx, g.model, parts, cfg)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, len(res.Embeddings))
		for i, e := range res.Embeddings {
			out[i] = e.Values
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	return vecs, nil
}

// Dimension is the requested vector length, or 0 for the model default.
func (g *GeminiEmbedder) Dimension() int { return g.dims }

// isRateLimitError recognises quota rejections, whether typed or only
// visible in the message.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "quota")
}
