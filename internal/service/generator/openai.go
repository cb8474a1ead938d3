package generator

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"semsql/internal/domain"
	"semsql/internal/ratelimit"
)

var _ domain.Generator = (*OpenAIClient)(nil)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL    string // e.g. https://api.openai.com/v1
	APIKey     string
	Schema     string // table description placed in the prompt
	HTTPClient *http.Client
}

// OpenAIClient asks an OpenAI-compatible chat completions endpoint for a
// generated query.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	schema  string
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAIClient creates a client for the endpoint described by cfg.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		schema:  cfg.Schema,
		client:  client,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt for question to model and decodes the reply.
// Transport failures, 429 and 5xx responses are marked transient.
func (c *OpenAIClient) Generate(ctx context.Context, model, question string) (*domain.GeneratedQuery, error) {
	prompt := PromptFor(question, c.schema)
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.Join(prompt.System, " ")},
			{Role: "user", Content: strings.Join(prompt.User, " ")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.DebugContext(ctx, "calling model", "model", model)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ratelimit.Transient(fmt.Errorf("chat completion %s: %w", model, err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("chat completion %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, ratelimit.Transient(err)
		}
		return nil, err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("chat completion %s: no choices returned", model)
	}

	gq, err := ParseGeneratedQuery(out.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", model, err)
	}
	c.logger.DebugContext(ctx, "model replied", "model", model, "duration", time.Since(start))
	return gq, nil
}
