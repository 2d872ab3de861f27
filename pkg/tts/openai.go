package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-glance/internal/httpc"
)

const (
	openAITTSURL   = "https://api.openai.com/v1/audio/speech"
	providerOpenAI = "openai"
)

// OpenAI voice options
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAI model options
const (
	ModelTTS1   = "tts-1"    // Standard quality, faster
	ModelTTS1HD = "tts-1-hd" // Higher quality, slower
)

// OpenAI implements Provider for OpenAI TTS.
type OpenAI struct {
	config  *Config
	client  *http.Client
	retry   httpc.Retry
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAITTSURL
	}

	logger := cfg.Logger.With("component", "tts.OpenAI")
	return &OpenAI{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		retry:   httpc.Retry{Max: cfg.MaxRetries, Delay: cfg.RetryDelay, Logger: logger},
		logger:  logger,
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	build, err := httpc.PostJSON(ctx, o.baseURL, o.config.APIKey, speechRequest{
		Model:  o.config.ModelID,
		Voice:  o.config.VoiceID,
		Input:  text,
		Format: o.config.ResponseFormat,
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	resp, err := httpc.Do(ctx, o.client, o.retry, build)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, code := httpc.UpstreamError(resp)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Code: code, Provider: providerOpenAI}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}
	res := &AudioResult{
		Audio:       audio,
		ContentType: contentTypeFor(o.config.ResponseFormat),
		CharCount:   len(text),
		LatencyMs:   time.Since(start).Milliseconds(),
	}
	o.logger.Debug("synthesized audio", "chars", res.CharCount, "bytes", len(audio), "latency_ms", res.LatencyMs, "voice", o.config.VoiceID)
	return res, nil
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice.
func (o *OpenAI) VoiceID() string {
	return o.config.VoiceID
}

type speechRequest struct {
	Model  string `json:"model"`
	Voice  string `json:"voice"`
	Input  string `json:"input"`
	Format string `json:"response_format"`
}

var _ Provider = (*OpenAI)(nil)
