package generation

import (
	"context"
	"fmt"
	"strings"
)

// ProviderOptions select and configure an LLM provider.
type ProviderOptions struct {
	Provider       string
	APIKey         string
	Model          string
	EmbeddingModel string
	Dimension      int
	BaseURL        string
	Temperature    float64
}

func normalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "gemini"
	}
	return p
}

func NewCompleter(ctx context.Context, opts ProviderOptions) (Completer, error) {
	switch provider := normalizeProvider(opts.Provider); provider {
	case "gemini":
		return NewGeminiCompleter(ctx, opts.APIKey, opts.Model, float32(opts.Temperature))
	case "openai":
		return NewOpenAICompleter(opts.APIKey, opts.Model, opts.BaseURL, opts.Temperature), nil
	case "ollama":
		return NewOllamaCompleter(opts.Model, opts.BaseURL, opts.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", opts.Provider)
	}
}

// NewEmbedder returns nil without error when no embedding model is
// configured; drafts then skip the similarity check.
func NewEmbedder(ctx context.Context, opts ProviderOptions) (Embedder, error) {
	if strings.TrimSpace(opts.EmbeddingModel) == "" {
		return nil, nil
	}
	switch provider := normalizeProvider(opts.Provider); provider {
	case "gemini":
		return NewGeminiEmbedder(ctx, opts.APIKey, opts.EmbeddingModel, opts.Dimension)
	case "openai":
		return NewOpenAIEmbedder(opts.APIKey, opts.EmbeddingModel, opts.Dimension, opts.BaseURL), nil
	case "ollama":
		return NewOllamaEmbedder(opts.EmbeddingModel, opts.Dimension, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", opts.Provider)
	}
}
