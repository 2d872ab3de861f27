// Package config loads go-glance configuration from defaults, an optional YAML
// file, .env files and environment variables (in increasing priority).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// History scopes for narration history lifetime.
const (
	HistoryScopeProcess = "process"
	HistoryScopeSession = "session"
)

// Speech modes.
const (
	SpeechModeDevice = "device"
	SpeechModeServer = "server"
)

// Config holds all configuration for the glance server.
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	StaticDir string `yaml:"static_dir"`
	DBPath    string `yaml:"db_path"`

	// PublicURL is the externally reachable base URL, used to build audio clip URLs
	// handed to the device.
	PublicURL string `yaml:"public_url"`

	LLM       LLMConfig       `yaml:"llm"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Geocode   GeocodeConfig   `yaml:"geocode"`
	Speech    SpeechConfig    `yaml:"speech"`
	Narration NarrationConfig `yaml:"narration"`
}

// LLMConfig configures the text-generation service.
type LLMConfig struct {
	// Provider is "http" (built-in OpenAI-compatible client) or "sdk" (openai-go).
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// AnalysisConfig configures the photo-analysis service.
type AnalysisConfig struct {
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`
	PersonaVersionID int    `yaml:"persona_version_id"`
}

// GeocodeConfig configures reverse geocoding.
type GeocodeConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// SpeechConfig selects where speech is synthesized.
type SpeechConfig struct {
	Mode   string `yaml:"mode"`
	APIKey string `yaml:"api_key"`
	Voice  string `yaml:"voice"`
}

// NarrationConfig holds timing and history settings for narration.
type NarrationConfig struct {
	HistoryScope   string        `yaml:"history_scope"`
	IdleThreshold  time.Duration `yaml:"idle_threshold"`
	IdleTick       time.Duration `yaml:"idle_tick"`
	LocationTTL    time.Duration `yaml:"location_ttl"`
	WelcomeDelay   time.Duration `yaml:"welcome_delay"`
	CityDelay      time.Duration `yaml:"city_delay"`
	PromptDir      string        `yaml:"prompt_dir"`
	ResponseWindow int           `yaml:"response_window"`
}

// Default returns sensible defaults for every setting.
func Default() Config {
	return Config{
		Port:      "3000",
		LogLevel:  "info",
		StaticDir: "./web",
		DBPath:    "glance.db",
		LLM: LLMConfig{
			Provider:  "http",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 300,
		},
		Analysis: AnalysisConfig{
			BaseURL:          "https://api.mentra.glass",
			PersonaVersionID: 1,
		},
		Geocode: GeocodeConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "go-glance/1.0",
		},
		Speech: SpeechConfig{
			Mode:  SpeechModeDevice,
			Voice: "shimmer",
		},
		Narration: NarrationConfig{
			HistoryScope:   HistoryScopeProcess,
			IdleThreshold:  30 * time.Second,
			IdleTick:       10 * time.Second,
			LocationTTL:    30 * time.Second,
			WelcomeDelay:   1 * time.Second,
			CityDelay:      3 * time.Second,
			ResponseWindow: 5,
		},
	}
}

// Load builds the configuration. path may be empty; a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := LoadDotEnv(".env.local", ".env"); err != nil {
		return cfg, err
	}
	cfg.LoadEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads env files that exist. Variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadEnv applies environment variable overrides.
func (c *Config) LoadEnv() {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.StaticDir, "STATIC_DIR")
	setString(&c.DBPath, "GLANCE_DB_PATH")
	setString(&c.PublicURL, "PUBLIC_URL")

	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")

	setString(&c.Analysis.BaseURL, "ANALYSIS_BASE_URL")
	setString(&c.Analysis.APIKey, "ANALYSIS_API_KEY")
	if v := os.Getenv("ANALYSIS_PERSONA_VERSION_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.PersonaVersionID = n
		}
	}

	setString(&c.Geocode.BaseURL, "GEOCODE_BASE_URL")
	setString(&c.Speech.Mode, "SPEECH_MODE")
	setString(&c.Speech.Voice, "SPEECH_VOICE")
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.LLM.APIKey
	}
	setString(&c.Narration.HistoryScope, "NARRATION_HISTORY_SCOPE")
	setString(&c.Narration.PromptDir, "NARRATION_PROMPT_DIR")
}

// Validate checks values that cannot be fixed up at call time.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return &ConfigError{Field: "port", Message: fmt.Sprintf("invalid port %q", c.Port)}
	}
	switch c.Narration.HistoryScope {
	case HistoryScopeProcess, HistoryScopeSession:
	default:
		return &ConfigError{Field: "narration.history_scope", Message: fmt.Sprintf("must be %q or %q, got %q", HistoryScopeProcess, HistoryScopeSession, c.Narration.HistoryScope)}
	}
	switch c.Speech.Mode {
	case SpeechModeDevice, SpeechModeServer:
	default:
		return &ConfigError{Field: "speech.mode", Message: fmt.Sprintf("must be %q or %q, got %q", SpeechModeDevice, SpeechModeServer, c.Speech.Mode)}
	}
	switch c.LLM.Provider {
	case "http", "sdk":
	default:
		return &ConfigError{Field: "llm.provider", Message: fmt.Sprintf("must be \"http\" or \"sdk\", got %q", c.LLM.Provider)}
	}
	if c.Narration.IdleTick <= 0 || c.Narration.IdleThreshold <= 0 {
		return &ConfigError{Field: "narration", Message: "idle_tick and idle_threshold must be positive"}
	}
	return nil
}

// BaseURL returns the URL clients use to reach this server.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}
	return "http://localhost:" + c.Port
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config " + e.Field + ": " + e.Message
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
