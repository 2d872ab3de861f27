// Package narration generates spoken, location-aware commentary with an LLM
// and remembers what was already said to each user.
package narration

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/inference"
)

// UnknownStreet stands in for a missing street name in prompts.
const UnknownStreet = "an unknown street"

// NearbyRequest describes where the user is and what they already heard.
type NearbyRequest struct {
	Street            string
	City              string
	Country           string
	Mentioned         []string
	PreviousResponses []string
}

// Provider produces narration text. Every failure is logged and reported as
// false so callers simply skip narration.
type Provider struct {
	llm       inference.Provider
	prompts   *Prompts
	maxTokens int
	logger    *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a narration provider.
func NewProvider(llm inference.Provider, prompts *Prompts, opts ...Option) *Provider {
	p := &Provider{
		llm:       llm,
		prompts:   prompts,
		maxTokens: 300,
		logger:    log.L(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "narration.Provider")
	return p
}

// CityDescription returns a short spoken description of city.
func (p *Provider) CityDescription(ctx context.Context, city string) (string, bool) {
	if strings.TrimSpace(city) == "" {
		return "", false
	}
	prompt, err := p.prompts.Render(PromptCityDescription, struct{ City string }{city})
	if err != nil {
		p.logger.Error("city prompt", "error", err)
		return "", false
	}
	return p.complete(ctx, "city_description", prompt)
}

// NearbyPlaces suggests places near the user, steering away from ones already
// mentioned. Full previous responses are preferred over bare place names.
func (p *Provider) NearbyPlaces(ctx context.Context, req NearbyRequest) (string, bool) {
	if strings.TrimSpace(req.City) == "" || strings.TrimSpace(req.Country) == "" {
		return "", false
	}
	if strings.TrimSpace(req.Street) == "" {
		req.Street = UnknownStreet
	}
	prompt, err := p.prompts.Render(PromptNearbyPlaces, req)
	if err != nil {
		p.logger.Error("nearby prompt", "error", err)
		return "", false
	}
	return p.complete(ctx, "nearby_places", prompt)
}

func (p *Provider) complete(ctx context.Context, kind, prompt string) (string, bool) {
	if p.llm == nil || !p.llm.Configured() {
		p.logger.Warn("LLM API key not set, skipping narration", "kind", kind)
		return "", false
	}
	resp, err := p.llm.Chat(ctx, &inference.ChatRequest{
		Messages:  []inference.Message{inference.NewUserMessage(prompt)},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		p.logger.Warn("narration request failed", "kind", kind, "error", err)
		return "", false
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		p.logger.Warn("narration completion empty", "kind", kind)
		return "", false
	}
	p.logger.Debug("narration generated", "kind", kind, "latency_ms", resp.LatencyMs, "text", log.Truncate(text, 80))
	return text, true
}
