package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaDefaultURL = "http://127.0.0.1:11434"

func ollamaEndpoint(baseURL, route string) string {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = ollamaDefaultURL
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, route) {
		url += route
	}
	return url
}

func postOllama(ctx context.Context, client *http.Client, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

// OllamaCompleter talks to a local Ollama server's chat API.
type OllamaCompleter struct {
	client      *http.Client
	model       string
	endpoint    string
	temperature float64
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []chatTurn `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message chatTurn `json:"message"`
}

func NewOllamaCompleter(model, baseURL string, temperature float64) *OllamaCompleter {
	return &OllamaCompleter{
		client:      &http.Client{Timeout: 5 * time.Minute},
		model:       model,
		endpoint:    ollamaEndpoint(baseURL, "/api/chat"),
		temperature: temperature,
	}
}

func (o *OllamaCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(o.model) == "" {
		return "", fmt.Errorf("ollama model is required")
	}
	req := ollamaChatRequest{
		Model:    o.model,
		Messages: promptTurns(system, user),
		Options:  map[string]any{"temperature": o.temperature},
	}

	var resp ollamaChatResponse
	if err := postOllama(ctx, o.client, o.endpoint, req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

type OllamaEmbedder struct {
	client   *http.Client
	model    string
	dims     int
	endpoint string
	plan     embedPlan
}

type ollamaEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewOllamaEmbedder(model string, dims int, baseURL string) *OllamaEmbedder {
	return &OllamaEmbedder{
		client:   &http.Client{Timeout: 90 * time.Second},
		model:    model,
		dims:     dims,
		endpoint: ollamaEndpoint(baseURL, "/api/embed"),
		// A local server has no quota; only keep requests bounded.
		plan: embedPlan{batchSize: 64},
	}
}

// Dimension is the requested vector length, or 0 for the model default.
func (o *OllamaEmbedder) Dimension() int { return o.dims }

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.model) == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	return o.plan.run(ctx, texts, func(ctx context.Context, batch []string) ([][]float32, error) {
		var resp ollamaEmbedResponse
		req := ollamaEmbedRequest{Model: o.model, Input: batch, Dimensions: o.dims}
		if err := postOllama(ctx, o.client, o.endpoint, req, &resp); err != nil {
			return nil, err
		}
		return resp.Embeddings, nil
	})
}
