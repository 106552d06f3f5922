package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 300*time.Millisecond, cfg.Pacing.PostFetchDelay)
	assert.Equal(t, 60*time.Second, cfg.Pacing.CheckDelayBase)
	assert.Equal(t, 20*time.Second, cfg.Pacing.CheckDelayJitter)
	assert.Equal(t, 4, cfg.Pacing.LookaheadWindow)
	assert.Equal(t, "data.json", cfg.Store.Path)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGTRACKER_BOT_TOKEN", "123456:token")
	t.Setenv("IGTRACKER_ALLOWED_USER_ID", "987654321")
	t.Setenv("IGTRACKER_SESSION_ID", "env_session")
	t.Setenv("IGTRACKER_CSRF_TOKEN", "env_csrf")
	t.Setenv("IGTRACKER_REQUESTS_PER_MINUTE", "30")
	t.Setenv("IGTRACKER_STATE_FILE", "/tmp/state.json")
	t.Setenv("IGTRACKER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "123456:token", cfg.Telegram.Token)
	assert.Equal(t, int64(987654321), cfg.Telegram.AllowedUserID)
	assert.Equal(t, "env_session", cfg.Instagram.SessionID)
	assert.Equal(t, "env_csrf", cfg.Instagram.CSRFToken)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/tmp/state.json", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("IGTRACKER_ALLOWED_USER_ID", "not-a-number")
	t.Setenv("IGTRACKER_REQUESTS_PER_MINUTE", "-5")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, int64(0), cfg.Telegram.AllowedUserID)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadFromFile(t *testing.T) {
	content := `
telegram:
  token: file_token
  allowed_user_id: 42
pacing:
  lookahead_window: 8
  post_fetch_delay: 500ms
store:
  path: custom.json
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "file_token", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AllowedUserID)
	assert.Equal(t, 8, cfg.Pacing.LookaheadWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.PostFetchDelay)
	assert.Equal(t, "custom.json", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram: [not a map"), 0644))

	cfg := DefaultConfig()

	assert.Error(t, cfg.LoadFromFile(path))
}

func TestEnvOverridesFile(t *testing.T) {
	content := "telegram:\n  token: file_token\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("IGTRACKER_BOT_TOKEN", "env_token")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env_token", cfg.Telegram.Token)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative post fetch delay", func(c *Config) { c.Pacing.PostFetchDelay = -time.Second }},
		{"zero check delay base", func(c *Config) { c.Pacing.CheckDelayBase = 0 }},
		{"jitter above base", func(c *Config) { c.Pacing.CheckDelayJitter = 2 * c.Pacing.CheckDelayBase }},
		{"zero lookahead window", func(c *Config) { c.Pacing.LookaheadWindow = 0 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"negative retry attempts", func(c *Config) { c.Retry.MaxAttempts = -1 }},
		{"zero request timeout", func(c *Config) { c.Instagram.RequestTimeout = 0 }},
		{"bogus log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
