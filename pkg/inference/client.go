package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-glance/internal/httpc"
)

const providerClient = "client"

// Client talks to any OpenAI-compatible /chat/completions endpoint over plain
// HTTP (OpenAI, Ollama, vLLM, Groq).
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	retry   httpc.Retry
	logger  *slog.Logger
}

// NewClient creates a new inference client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	logger := cfg.Logger.With("component", "inference.Client")
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    httpc.NewClient(cfg.Timeout),
		retry:   httpc.Retry{Max: cfg.MaxRetries, Delay: cfg.RetryDelay, Logger: logger},
		logger:  logger,
	}, nil
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// Chat generates a chat completion.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !c.Configured() {
		return nil, ErrNoAPIKey
	}
	start := time.Now()

	build, err := httpc.PostJSON(ctx, c.baseURL+"/chat/completions", c.config.APIKey, c.payload(req))
	if err != nil {
		return nil, WrapError(providerClient, err)
	}
	resp, err := httpc.Do(ctx, c.http, c.retry, build)
	if err != nil {
		return nil, WrapError(providerClient, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp, providerClient)
	}

	var out completion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerClient, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return nil, WrapError(providerClient, ErrEmptyCompletion)
	}

	first := out.Choices[0]
	return &ChatResponse{
		Message:      NewAssistantMessage(first.Message.Content),
		FinishReason: first.FinishReason,
		Usage:        out.Usage,
		Model:        out.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Health lists models, which needs a valid key on hosted APIs.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerClient, err)
	}
	if c.Configured() {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError(providerClient, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp, providerClient)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type chatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// payload fills request fields left at zero from the client defaults.
func (c *Client) payload(req *ChatRequest) chatPayload {
	p := chatPayload{
		Model:       firstNonZero(req.Model, c.config.Model),
		Messages:    make([]chatMessage, len(req.Messages)),
		MaxTokens:   firstNonZero(req.MaxTokens, c.config.MaxTokens),
		Temperature: firstNonZero(req.Temperature, c.config.Temperature),
	}
	for i, m := range req.Messages {
		p.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return p
}

func firstNonZero[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func apiError(resp *http.Response, provider string) error {
	msg, code := httpc.UpstreamError(resp)
	return &APIError{StatusCode: resp.StatusCode, Message: msg, Code: code, Provider: provider}
}

type completion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

var _ Provider = (*Client)(nil)
