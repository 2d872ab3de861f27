package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Narration.IdleThreshold != 30*time.Second {
		t.Errorf("idle threshold = %v, want 30s", cfg.Narration.IdleThreshold)
	}
	if cfg.Narration.IdleTick != 10*time.Second {
		t.Errorf("idle tick = %v, want 10s", cfg.Narration.IdleTick)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glance.yaml")
	yml := `port: "4100"
narration:
  history_scope: session
  idle_threshold: 45s
llm:
  model: test-model
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "env-model")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "4100" {
		t.Errorf("port = %s", cfg.Port)
	}
	if cfg.Narration.HistoryScope != HistoryScopeSession {
		t.Errorf("history scope = %s", cfg.Narration.HistoryScope)
	}
	if cfg.Narration.IdleThreshold != 45*time.Second {
		t.Errorf("idle threshold = %v", cfg.Narration.IdleThreshold)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("env should override file, got %s", cfg.LLM.Model)
	}
	if cfg.Speech.APIKey != "sk-test" {
		t.Errorf("speech key should default to LLM key, got %q", cfg.Speech.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
}

func TestValidateRejectsBadScope(t *testing.T) {
	cfg := Default()
	cfg.Narration.HistoryScope = "forever"

	err := cfg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "narration.history_scope" {
		t.Errorf("field = %s", cfgErr.Field)
	}
}

func TestBaseURL(t *testing.T) {
	cfg := Default()
	if got := cfg.BaseURL(); got != "http://localhost:3000" {
		t.Errorf("BaseURL = %s", got)
	}
	cfg.PublicURL = "https://glance.example.com/"
	if got := cfg.BaseURL(); got != "https://glance.example.com" {
		t.Errorf("BaseURL = %s", got)
	}
}
