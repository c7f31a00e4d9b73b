package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/testforge/e2ekit/internal/domain"
)

// ProviderAnthropic labels metrics and errors of Client.
const ProviderAnthropic = "anthropic"

// DefaultConfig returns default configuration for the Anthropic API
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.anthropic.com",
		Model:        "claude-sonnet-4-20250514",
		MaxTokens:    12000,
		Temperature:  0.7,
		Timeout:      120 * time.Second,
		RateLimitRPM: 50,
		MaxRetries:   3,
		Backoff:      time.Second,
	}
}

// Client talks to the Anthropic messages API
type Client struct {
	*transport
}

// NewClient creates a new Anthropic API client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrValidationField("ANTHROPIC_API_KEY", "API key is required")
	}
	cfg = merge(cfg, DefaultConfig())
	return &Client{transport: newTransport(ProviderAnthropic, cfg, opts)}, nil
}

// Request represents a messages API request
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents a messages API response
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends a completion request
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error) {
	return c.complete(ctx, systemPrompt, userPrompt, c.send)
}

// Model returns the model being used
func (c *Client) Model() string { return c.cfg.Model }

func (c *Client) send(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	body, err := json.Marshal(Request{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      systemPrompt,
		Messages:    []Message{{Role: "user", Content: userPrompt}},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	data, err := c.post(ctx, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body), map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", Usage{}, err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", Usage{}, domain.ErrParseFailed("anthropic response", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", resp.Usage, domain.ErrExternalAPI(ProviderAnthropic, errors.New("empty response"))
	}
	return sb.String(), resp.Usage, nil
}
