// Package config loads Akari's configuration from an optional YAML file
// with environment-variable overrides on top. Secrets — the Matrix access
// token, the LLM API key, the master encryption key — are read only from
// the environment, never from the file, so the file can live in version
// control.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkoriyama/Akari/common/environment"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Matrix holds the homeserver connection settings.
type Matrix struct {
	// Homeserver is the base URL, e.g. "https://matrix.example.org".
	Homeserver string `yaml:"homeserver"`
	// UserID is Akari's own Matrix ID, e.g. "@akari:example.org".
	UserID string `yaml:"user_id"`
	// AssistantRooms are the rooms where Akari converses and runs tools.
	AssistantRooms []string `yaml:"assistant_rooms"`
	// WatchRooms are captured into the notification inbox; Akari stays
	// silent there.
	WatchRooms []string `yaml:"watch_rooms"`
	// AccessToken comes only from MATRIX_ACCESS_TOKEN.
	AccessToken string `yaml:"-"`
}

// LLM holds the OpenAI-compatible provider settings. When no API key is
// present Akari runs in deterministic mode: keyword classification and
// trigger-stripping extraction, no generative fallback.
type LLM struct {
	// BaseURL is the API endpoint, e.g. "https://api.openai.com/v1" or a
	// local Ollama at "http://localhost:11434/v1".
	BaseURL string `yaml:"base_url"`
	// Model is the chat model used for intent classification and
	// parameter extraction.
	Model string `yaml:"model"`
	// Timeout bounds each provider call.
	Timeout Duration `yaml:"timeout"`
	// RateLimit caps inference calls per user per minute. Zero or negative
	// uses the built-in default.
	RateLimit int `yaml:"rate_limit"`
	// DailyTokens caps model tokens per user per UTC day. Zero or negative
	// uses the built-in default.
	DailyTokens int `yaml:"daily_tokens"`
	// APIKey comes only from AKARI_LLM_API_KEY.
	APIKey string `yaml:"-"`
}

// Log holds log level and format.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Config is the root Akari configuration.
type Config struct {
	Matrix Matrix `yaml:"matrix"`
	// AllowedUsers restricts who Akari answers. Empty means everyone in
	// the assistant rooms.
	AllowedUsers []string `yaml:"allowed_users"`
	// DatabasePath is the SQLite file. Defaults to "./akari.db".
	DatabasePath string `yaml:"database_path"`
	LLM          LLM    `yaml:"llm"`
	Log          Log    `yaml:"log"`
	// HealthAddr enables the /health and /status HTTP endpoints when set,
	// e.g. ":8420". Empty disables them.
	HealthAddr string `yaml:"health_addr"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and defaults, and validates the result. A
// non-empty path that cannot be read is an error; env-only operation is
// supported by passing "".
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DatabasePath: "./akari.db",
		LLM: LLM{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: Duration(30 * time.Second),
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEnv layers environment variables over whatever the file set.
// Variables that are unset leave the file values untouched.
func (c *Config) applyEnv() {
	c.Matrix.Homeserver = environment.Override("MATRIX_HOMESERVER", c.Matrix.Homeserver)
	c.Matrix.UserID = environment.Override("MATRIX_USER_ID", c.Matrix.UserID)
	c.Matrix.AccessToken = os.Getenv("MATRIX_ACCESS_TOKEN")
	c.Matrix.AssistantRooms = environment.OverrideList("AKARI_ASSISTANT_ROOMS", c.Matrix.AssistantRooms)
	c.Matrix.WatchRooms = environment.OverrideList("AKARI_WATCH_ROOMS", c.Matrix.WatchRooms)

	c.AllowedUsers = environment.OverrideList("AKARI_ALLOWED_USERS", c.AllowedUsers)
	c.DatabasePath = environment.Override("AKARI_DB_PATH", c.DatabasePath)

	c.LLM.APIKey = os.Getenv("AKARI_LLM_API_KEY")
	c.LLM.BaseURL = environment.Override("AKARI_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = environment.Override("AKARI_LLM_MODEL", c.LLM.Model)
	c.LLM.Timeout = Duration(environment.OverrideDuration("AKARI_LLM_TIMEOUT", time.Duration(c.LLM.Timeout)))
	c.LLM.RateLimit = environment.OverrideInt("AKARI_LLM_RATE_LIMIT", c.LLM.RateLimit)
	c.LLM.DailyTokens = environment.OverrideInt("AKARI_LLM_DAILY_TOKENS", c.LLM.DailyTokens)

	c.Log.Level = environment.Override("LOG_LEVEL", c.Log.Level)
	c.Log.Format = environment.Override("LOG_FORMAT", c.Log.Format)

	c.HealthAddr = environment.Override("AKARI_HEALTH_ADDR", c.HealthAddr)
}

// Validate reports the first missing or malformed required setting.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required (or set MATRIX_HOMESERVER)")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required (or set MATRIX_USER_ID)")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("MATRIX_ACCESS_TOKEN is required")
	}
	if len(c.Matrix.AssistantRooms) == 0 {
		return fmt.Errorf("matrix.assistant_rooms must list at least one room (or set AKARI_ASSISTANT_ROOMS)")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if time.Duration(c.LLM.Timeout) <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	return nil
}
