package inference

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/teslashibe/go-glance/internal/httpc"
)

const providerSDK = "openai-sdk"

// SDKClient is a Provider backed by the official openai-go SDK.
// Retries and timeouts are handled by the SDK.
type SDKClient struct {
	client openaigo.Client
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewSDKClient creates an SDK-backed provider.
func NewSDKClient(opts ...Option) (*SDKClient, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	httpClient := httpc.NewClient(cfg.Timeout + 5*time.Second)
	client := openaigo.NewClient(
		option.WithBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	)

	return &SDKClient{
		client: client,
		config: cfg,
		http:   httpClient,
		logger: cfg.Logger.With("component", "inference.sdk"),
	}, nil
}

// Configured reports whether an API key is set.
func (s *SDKClient) Configured() bool {
	return strings.TrimSpace(s.config.APIKey) != ""
}

// Chat generates a chat completion through the SDK.
func (s *SDKClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !s.Configured() {
		return nil, ErrNoAPIKey
	}
	start := time.Now()

	model := req.Model
	if model == "" {
		model = s.config.Model
	}

	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openaigo.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openaigo.AssistantMessage(m.Content))
		default:
			messages = append(messages, openaigo.UserMessage(m.Content))
		}
	}

	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(model),
		Messages: messages,
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openaigo.Int(int64(maxTokens))
	}
	temp := req.Temperature
	if temp == 0 {
		temp = s.config.Temperature
	}
	if temp > 0 {
		params.Temperature = openaigo.Float(temp)
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, WrapError(providerSDK, err)
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerSDK, ErrEmptyCompletion)
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health lists models to verify connectivity and credentials.
func (s *SDKClient) Health(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx); err != nil {
		return WrapError(providerSDK, err)
	}
	return nil
}

// Close releases idle connections.
func (s *SDKClient) Close() error {
	s.http.CloseIdleConnections()
	return nil
}

// Verify SDKClient implements Provider at compile time.
var _ Provider = (*SDKClient)(nil)
