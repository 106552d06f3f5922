package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the tracker bot
type Config struct {
	// Telegram transport settings
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Instagram session and HTTP settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Pacing of feed fetches within and across subscriptions
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Subscriber state storage
	Store StoreConfig `yaml:"store" json:"store"`

	// Rate limiting of Instagram API requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behavior for transient API failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TelegramConfig holds bot transport configuration
type TelegramConfig struct {
	Token string `yaml:"token" json:"token"`
	// AllowedUserID restricts the bot to a single Telegram user when set
	AllowedUserID int64 `yaml:"allowed_user_id" json:"allowed_user_id"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	SessionID      string        `yaml:"session_id" json:"session_id"`
	CSRFToken      string        `yaml:"csrf_token" json:"csrf_token"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// PacingConfig shapes how quickly the checker hits the feed source
type PacingConfig struct {
	// PostFetchDelay is the pause between consecutive post pulls from one feed
	PostFetchDelay time.Duration `yaml:"post_fetch_delay" json:"post_fetch_delay"`
	// CheckDelayBase and CheckDelayJitter shape the randomized pause between
	// subscription checks within one cycle: base ± jitter
	CheckDelayBase   time.Duration `yaml:"check_delay_base" json:"check_delay_base"`
	CheckDelayJitter time.Duration `yaml:"check_delay_jitter" json:"check_delay_jitter"`
	// LookaheadWindow is the selector's out-of-order tolerance window
	LookaheadWindow int `yaml:"lookahead_window" json:"lookahead_window"`
}

// StoreConfig holds subscriber table storage configuration
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration for transient API failures
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
		},
		Pacing: PacingConfig{
			PostFetchDelay:   300 * time.Millisecond,
			CheckDelayBase:   60 * time.Second,
			CheckDelayJitter: 20 * time.Second,
			LookaheadWindow:  4,
		},
		Store: StoreConfig{
			Path: "data.json",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    60 * time.Second,
			Multiplier:  2.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("IGTRACKER_BOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if userID := os.Getenv("IGTRACKER_ALLOWED_USER_ID"); userID != "" {
		if val, err := strconv.ParseInt(userID, 10, 64); err == nil {
			c.Telegram.AllowedUserID = val
		}
	}
	if sessionID := os.Getenv("IGTRACKER_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("IGTRACKER_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if userAgent := os.Getenv("IGTRACKER_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}
	if rpm := os.Getenv("IGTRACKER_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if path := os.Getenv("IGTRACKER_STATE_FILE"); path != "" {
		c.Store.Path = path
	}
	if logLevel := os.Getenv("IGTRACKER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".igtracker.yaml",
		".igtracker.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igtracker", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igtracker", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igtracker.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Pacing.PostFetchDelay < 0 {
		errs = append(errs, errors.New("post fetch delay cannot be negative"))
	}
	if c.Pacing.CheckDelayBase <= 0 {
		errs = append(errs, errors.New("check delay base must be positive"))
	}
	if c.Pacing.CheckDelayJitter < 0 || c.Pacing.CheckDelayJitter > c.Pacing.CheckDelayBase {
		errs = append(errs, errors.New("check delay jitter must be between zero and the base delay"))
	}
	if c.Pacing.LookaheadWindow <= 0 {
		errs = append(errs, errors.New("lookahead window must be positive"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("state file path is required"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Instagram.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Load loads configuration from all sources with proper precedence:
// environment variables > .env file > config file > defaults
func Load(configPath string) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igtracker.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
