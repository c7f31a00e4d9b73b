package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/testforge/e2ekit/internal/domain"
)

const ProviderOpenRouter = "openrouter"

// DefaultOpenRouterConfig returns defaults for the OpenRouter chat API.
func DefaultOpenRouterConfig() Config {
	return Config{
		BaseURL:      "https://openrouter.ai/api/v1",
		Model:        "amazon/nova-lite-v1",
		MaxTokens:    12000,
		Temperature:  0.7,
		Timeout:      120 * time.Second,
		RateLimitRPM: 50,
		MaxRetries:   3,
		Backoff:      time.Second,
		Referer:      "https://github.com/testforge/e2ekit",
		Title:        "e2ekit",
	}
}

// OpenRouterClient talks to an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	*transport
}

func NewOpenRouterClient(cfg Config, opts ...Option) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrValidationField("OPENROUTER_API_KEY", "API key is required")
	}
	cfg = merge(cfg, DefaultOpenRouterConfig())
	return &OpenRouterClient{transport: newTransport(ProviderOpenRouter, cfg, opts)}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Complete sends a chat completion with a system and a user message.
func (c *OpenRouterClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error) {
	return c.complete(ctx, systemPrompt, userPrompt, c.send)
}

func (c *OpenRouterClient) Model() string { return c.cfg.Model }

func (c *OpenRouterClient) send(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	msgs := make([]Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	data, err := c.post(ctx, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body), map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       c.cfg.Title,
	})
	if err != nil {
		return "", Usage{}, err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", Usage{}, domain.ErrParseFailed("openrouter response", err)
	}
	if resp.Error != nil {
		return "", Usage{}, domain.ErrExternalAPI(ProviderOpenRouter, errors.New(resp.Error.Message))
	}

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", usage, domain.ErrExternalAPI(ProviderOpenRouter, errors.New("empty response"))
	}
	return resp.Choices[0].Message.Content, usage, nil
}
