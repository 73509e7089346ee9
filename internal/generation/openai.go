package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openAIDefaultBase = "https://api.openai.com/v1"

// openAIEndpoint joins baseURL and route, adding the /v1 prefix that
// OpenAI-compatible servers expect when the caller left it out.
func openAIEndpoint(baseURL, route string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case base == "":
		return openAIDefaultBase + route
	case strings.HasSuffix(base, route):
		return base
	case strings.HasSuffix(base, "/v1"):
		return base + route
	default:
		return base + "/v1" + route
	}
}

// chatTurn is one message in an OpenAI-style conversation. Ollama's chat API
// uses the same shape.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func promptTurns(system, user string) []chatTurn {
	turns := make([]chatTurn, 0, 2)
	if strings.TrimSpace(system) != "" {
		turns = append(turns, chatTurn{Role: "system", Content: system})
	}
	return append(turns, chatTurn{Role: "user", Content: user})
}

type chatCompletionRequest struct {
	Model       string     `json:"model"`
	Messages    []chatTurn `json:"messages"`
	Temperature float64    `json:"temperature"`
}

type chatCompletionReply struct {
	Choices []struct {
		Message chatTurn `json:"message"`
	} `json:"choices"`
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsReply struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// openAIClient is the HTTP plumbing shared by the completer and embedder.
type openAIClient struct {
	http     *http.Client
	apiKey   string
	endpoint string
}

// post sends in as JSON and decodes a 2xx reply into out. Throttling and
// server errors come back as transientError.
func (c openAIClient) post(ctx context.Context, what string, in, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return errors.New("openai api key is required")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transientError{err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("openai %s request failed (%d): %s", what, resp.StatusCode, openAIErrorMessage(raw))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return transientError{err}
		}
		return err
	}
	return json.Unmarshal(raw, out)
}

// openAIErrorMessage prefers the structured error message over the raw body.
func openAIErrorMessage(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		if msg := strings.TrimSpace(envelope.Error.Message); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(raw))
}

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint.
type OpenAICompleter struct {
	api         openAIClient
	model       string
	temperature float64
}

func NewOpenAICompleter(apiKey, model, baseURL string, temperature float64) *OpenAICompleter {
	return &OpenAICompleter{
		api: openAIClient{
			http:     &http.Client{Timeout: 2 * time.Minute},
			apiKey:   apiKey,
			endpoint: openAIEndpoint(baseURL, "/chat/completions"),
		},
		model:       model,
		temperature: temperature,
	}
}

func (s *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(s.model) == "" {
		return "", errors.New("openai model is required")
	}
	var reply chatCompletionReply
	err := s.api.post(ctx, "chat", chatCompletionRequest{
		Model:       s.model,
		Messages:    promptTurns(system, user),
		Temperature: s.temperature,
	}, &reply)
	if err != nil {
		var t transientError
		if errors.As(err, &t) {
			return "", t.err
		}
		return "", err
	}
	if len(reply.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(reply.Choices[0].Message.Content), nil
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	api   openAIClient
	model string
	dims  int
	plan  embedPlan
}

func NewOpenAIEmbedder(apiKey, model string, dims int, baseURL string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		api: openAIClient{
			http:     &http.Client{Timeout: time.Minute},
			apiKey:   apiKey,
			endpoint: openAIEndpoint(baseURL, "/embeddings"),
		},
		model: model,
		dims:  dims,
		plan: embedPlan{
			batchSize: 64,
			pause:     400 * time.Millisecond,
			retries:   5,
			backoff:   3 * time.Second,
			retryable: isTransient,
		},
	}
}

// Dimension is the requested vector length, or 0 for the model default.
func (o *OpenAIEmbedder) Dimension() int { return o.dims }

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.model) == "" {
		return nil, errors.New("openai embedding model is required")
	}
	return o.plan.run(ctx, texts, o.embedBatch)
}

// embedBatch places each returned vector by its index; the API does not
// promise input order.
func (o *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var reply embeddingsReply
	if err := o.api.post(ctx, "embeddings", embeddingsRequest{Model: o.model, Input: batch, Dimensions: o.dims}, &reply); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(batch))
	for _, d := range reply.Data {
		if d.Index >= 0 && d.Index < len(vecs) {
			vecs[d.Index] = d.Embedding
		}
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding missing at index %d", i)
		}
	}
	return vecs, nil
}
