package photo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-glance/internal/httpc"
	"github.com/teslashibe/go-glance/internal/log"
)

const analysisPath = "/discoveries/create_and_send_explanation_text"

// Response fields probed, in order, for the explanation text.
var explanationKeys = []string{
	"explanation",
	"explanation_text",
	"explanationText",
	"text",
	"description",
	"message",
	"result",
	"content",
}

// AnalyzerConfig configures the remote analysis client.
type AnalyzerConfig struct {
	BaseURL          string
	APIKey           string
	PersonaVersionID int
}

// Analyzer sends photos to the explanation service.
type Analyzer struct {
	cfg    AnalyzerConfig
	http   *http.Client
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. Requests carry the API key as a bearer token.
func NewAnalyzer(cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = log.L()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpc.NewClient(httpc.DefaultTimeout*2))
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	}))

	return &Analyzer{
		cfg:    cfg,
		http:   client,
		logger: logger.With("component", "photo.Analyzer"),
	}
}

// Configured reports whether an API key is set.
func (a *Analyzer) Configured() bool {
	return a.cfg.APIKey != ""
}

type analysisRequest struct {
	Photo            string `json:"photo"`
	PersonaVersionID int    `json:"persona_version_id"`
}

// Analyze uploads img and returns the explanation text. Every failure is
// logged and reported as false.
func (a *Analyzer) Analyze(ctx context.Context, img []byte, userID string) (string, bool) {
	if !a.Configured() {
		a.logger.Warn("analysis API key not set, skipping analysis", "user_id", userID)
		return "", false
	}

	body, err := json.Marshal(analysisRequest{
		Photo:            base64.StdEncoding.EncodeToString(img),
		PersonaVersionID: a.cfg.PersonaVersionID,
	})
	if err != nil {
		a.logger.Error("encode analysis request", "error", err)
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+analysisPath, bytes.NewReader(body))
	if err != nil {
		a.logger.Error("create analysis request", "error", err)
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := a.http.Do(req)
	if err != nil {
		a.logger.Warn("analysis request failed", "user_id", userID, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.logger.Warn("analysis service error",
			"user_id", userID,
			"status", resp.StatusCode,
			"body", httpc.ReadBody(resp, 512),
		)
		return "", false
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		a.logger.Warn("read analysis response", "user_id", userID, "error", err)
		return "", false
	}

	text, err := ParseExplanation(raw)
	if err != nil {
		a.logger.Warn("analysis response has no explanation",
			"user_id", userID,
			"error", err,
			"body", log.Truncate(string(raw), 512),
		)
		return "", false
	}
	return text, true
}

// ParseExplanation extracts the explanation from a JSON or plain-text body.
func ParseExplanation(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty response")
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(trimmed), nil
	}

	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s, nil
		}
	case map[string]any:
		if s := probe(t); s != "" {
			return s, nil
		}
		if nested, ok := t["data"].(map[string]any); ok {
			if s := probe(nested); s != "" {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("no explanation field")
}

func probe(m map[string]any) string {
	for _, k := range explanationKeys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
