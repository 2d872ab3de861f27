package inference

import (
	"log/slog"
	"time"
)

// Config is built from Options on top of DefaultConfig.
type Config struct {
	BaseURL string // API root, e.g. http://localhost:11434/v1 for Ollama
	APIKey  string

	// Used when a ChatRequest leaves them unset.
	Model       string
	MaxTokens   int
	Temperature float64

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration // multiplied by the attempt number

	Logger *slog.Logger
}

type Option func(*Config)

func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithAPIKey sets the key. Without one every Chat returns ErrNoAPIKey and
// city and nearby narration are skipped.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

func WithModel(model string) Option { return func(c *Config) { c.Model = model } }

// WithMaxTokens bounds the length of a spoken line.
func WithMaxTokens(n int) Option { return func(c *Config) { c.MaxTokens = n } }

// WithRetry sets how often 429, 5xx and transport failures are retried.
// serve passes WithRetry(0, 0) and lets the idle loop retry instead.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// DefaultConfig targets OpenAI with a small, fast model; narration lines are
// a couple of sentences.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   300,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		RetryDelay:  200 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
}
