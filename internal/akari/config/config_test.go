package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkoriyama/Akari/internal/akari/config"
)

// clearAkariEnv unsets every variable Load reads so host-machine settings
// cannot leak into assertions. t.Setenv registers the restore.
func clearAkariEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MATRIX_HOMESERVER", "MATRIX_USER_ID", "MATRIX_ACCESS_TOKEN",
		"AKARI_ASSISTANT_ROOMS", "AKARI_WATCH_ROOMS", "AKARI_ALLOWED_USERS",
		"AKARI_DB_PATH", "AKARI_LLM_API_KEY", "AKARI_LLM_BASE_URL",
		"AKARI_LLM_MODEL", "AKARI_LLM_TIMEOUT", "AKARI_LLM_RATE_LIMIT",
		"AKARI_LLM_DAILY_TOKENS", "LOG_LEVEL", "LOG_FORMAT",
		"AKARI_HEALTH_ADDR",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "akari.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

const validYAML = `
matrix:
  homeserver: https://matrix.example.org
  user_id: "@akari:example.org"
  assistant_rooms:
    - "!home:example.org"
  watch_rooms:
    - "!alerts:example.org"
allowed_users:
  - "@mkoriyama:example.org"
database_path: /data/akari.db
llm:
  base_url: http://localhost:11434/v1
  model: llama3
  timeout: 45s
  rate_limit: 12
  daily_tokens: 100000
log:
  level: debug
  format: json
health_addr: ":8420"
`

func TestLoad_FromFile(t *testing.T) {
	clearAkariEnv(t)
	t.Setenv("MATRIX_ACCESS_TOKEN", "syt_secret")

	cfg, err := config.Load(writeConfigFile(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Matrix.Homeserver != "https://matrix.example.org" {
		t.Errorf("Homeserver: got %q", cfg.Matrix.Homeserver)
	}
	if cfg.Matrix.UserID != "@akari:example.org" {
		t.Errorf("UserID: got %q", cfg.Matrix.UserID)
	}
	if cfg.Matrix.AccessToken != "syt_secret" {
		t.Errorf("AccessToken: got %q", cfg.Matrix.AccessToken)
	}
	if len(cfg.Matrix.AssistantRooms) != 1 || cfg.Matrix.AssistantRooms[0] != "!home:example.org" {
		t.Errorf("AssistantRooms: got %v", cfg.Matrix.AssistantRooms)
	}
	if len(cfg.Matrix.WatchRooms) != 1 || cfg.Matrix.WatchRooms[0] != "!alerts:example.org" {
		t.Errorf("WatchRooms: got %v", cfg.Matrix.WatchRooms)
	}
	if cfg.DatabasePath != "/data/akari.db" {
		t.Errorf("DatabasePath: got %q", cfg.DatabasePath)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("LLM.BaseURL: got %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "llama3" {
		t.Errorf("LLM.Model: got %q", cfg.LLM.Model)
	}
	if time.Duration(cfg.LLM.Timeout) != 45*time.Second {
		t.Errorf("LLM.Timeout: got %v", time.Duration(cfg.LLM.Timeout))
	}
	if cfg.LLM.RateLimit != 12 || cfg.LLM.DailyTokens != 100000 {
		t.Errorf("LLM limits: got rate=%d daily=%d", cfg.LLM.RateLimit, cfg.LLM.DailyTokens)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log: got %+v", cfg.Log)
	}
	if cfg.HealthAddr != ":8420" {
		t.Errorf("HealthAddr: got %q", cfg.HealthAddr)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	clearAkariEnv(t)
	t.Setenv("MATRIX_HOMESERVER", "https://hs.example.org")
	t.Setenv("MATRIX_USER_ID", "@akari:example.org")
	t.Setenv("MATRIX_ACCESS_TOKEN", "syt_secret")
	t.Setenv("AKARI_ASSISTANT_ROOMS", "!a:example.org, !b:example.org")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Matrix.AssistantRooms) != 2 {
		t.Fatalf("AssistantRooms: got %v", cfg.Matrix.AssistantRooms)
	}
	if cfg.Matrix.AssistantRooms[1] != "!b:example.org" {
		t.Errorf("AssistantRooms[1]: got %q (whitespace should be trimmed)", cfg.Matrix.AssistantRooms[1])
	}
	// Defaults survive when nothing overrides them.
	if cfg.DatabasePath != "./akari.db" {
		t.Errorf("default DatabasePath: got %q", cfg.DatabasePath)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("default LLM.Model: got %q", cfg.LLM.Model)
	}
	if time.Duration(cfg.LLM.Timeout) != 30*time.Second {
		t.Errorf("default LLM.Timeout: got %v", time.Duration(cfg.LLM.Timeout))
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("default Log: got %+v", cfg.Log)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearAkariEnv(t)
	t.Setenv("MATRIX_ACCESS_TOKEN", "syt_secret")
	t.Setenv("AKARI_LLM_MODEL", "gpt-4o")
	t.Setenv("AKARI_LLM_TIMEOUT", "2m")
	t.Setenv("AKARI_LLM_RATE_LIMIT", "3")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfigFile(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM.Model: got %q, want env override %q", cfg.LLM.Model, "gpt-4o")
	}
	if time.Duration(cfg.LLM.Timeout) != 2*time.Minute {
		t.Errorf("LLM.Timeout: got %v, want 2m", time.Duration(cfg.LLM.Timeout))
	}
	if cfg.LLM.RateLimit != 3 {
		t.Errorf("LLM.RateLimit: got %d, want env override 3", cfg.LLM.RateLimit)
	}
	if cfg.LLM.DailyTokens != 100000 {
		t.Errorf("LLM.DailyTokens: got %d, want file value 100000", cfg.LLM.DailyTokens)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level: got %q, want %q", cfg.Log.Level, "warn")
	}
	// Fields without env overrides keep their file values.
	if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("LLM.BaseURL: got %q", cfg.LLM.BaseURL)
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	clearAkariEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearAkariEnv(t)
	t.Setenv("MATRIX_ACCESS_TOKEN", "syt_secret")

	_, err := config.Load(writeConfigFile(t, "matrix: [not a map"))
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	clearAkariEnv(t)
	t.Setenv("MATRIX_ACCESS_TOKEN", "syt_secret")

	_, err := config.Load(writeConfigFile(t, `
matrix:
  homeserver: https://matrix.example.org
  user_id: "@akari:example.org"
  assistant_rooms: ["!home:example.org"]
llm:
  timeout: soon
`))
	if err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	base := map[string]string{
		"MATRIX_HOMESERVER":     "https://hs.example.org",
		"MATRIX_USER_ID":        "@akari:example.org",
		"MATRIX_ACCESS_TOKEN":   "tok",
		"AKARI_ASSISTANT_ROOMS": "!a:example.org",
	}

	for _, missing := range []string{
		"MATRIX_HOMESERVER",
		"MATRIX_USER_ID",
		"MATRIX_ACCESS_TOKEN",
		"AKARI_ASSISTANT_ROOMS",
	} {
		t.Run("missing "+missing, func(t *testing.T) {
			clearAkariEnv(t)
			for k, v := range base {
				if k != missing {
					t.Setenv(k, v)
				}
			}
			if _, err := config.Load(""); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
