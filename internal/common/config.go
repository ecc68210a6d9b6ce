package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration, loaded from TOML with
// environment and CLI overrides applied on top.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Cache      CacheConfig      `toml:"cache"`
	Tokens     TokensConfig     `toml:"tokens"`
	Preprocess PreprocessConfig `toml:"preprocess"`
	Analysis   AnalysisConfig   `toml:"analysis"`
	Platforms  PlatformsConfig  `toml:"platforms"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `toml:"host" validate:"required"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

// StorageConfig controls the Badger store.
type StorageConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// SchedulerConfig controls the dispatch loop.
type SchedulerConfig struct {
	TickInterval      string `toml:"tick_interval"`
	MaxConcurrentJobs int    `toml:"max_concurrent_jobs" validate:"min=1"`
	MaxAttempts       int    `toml:"max_attempts" validate:"min=1"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled      bool   `toml:"enabled"`
	TTLSeconds   int    `toml:"ttl_seconds" validate:"min=1"`
	MaxSize      int    `toml:"max_size" validate:"min=1"`
	PollInterval string `toml:"poll_interval"`
	PollCeiling  string `toml:"poll_ceiling"`
}

// TokensConfig controls the token lifecycle manager.
type TokensConfig struct {
	// EncryptionKey is a hex-encoded 32-byte AES key. Required; tokens
	// are never stored in the clear.
	EncryptionKey       string `toml:"encryption_key" validate:"required"`
	ExpiryBufferMinutes int    `toml:"expiry_buffer_minutes" validate:"min=0"`
	StaleAfterDays      int    `toml:"stale_after_days" validate:"min=1"`
	CleanupSchedule     string `toml:"cleanup_schedule"`
}

// PreprocessConfig controls the comment preprocessor.
type PreprocessConfig struct {
	// RulesPath optionally overrides the embedded keyword rule file.
	RulesPath string `toml:"rules_path"`
}

// AnalysisConfig selects and configures the analysis engine.
type AnalysisConfig struct {
	// Provider is one of "offline", "claude", "gemini".
	Provider string       `toml:"provider" validate:"oneof=offline claude gemini"`
	Claude   ClaudeConfig `toml:"claude"`
	Gemini   GeminiConfig `toml:"gemini"`
}

// ClaudeConfig configures the Anthropic-backed engine.
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	Timeout   string `toml:"timeout"`
	MaxTokens int    `toml:"max_tokens"`
}

// GeminiConfig configures the Gemini-backed engine.
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// PlatformConfig holds one platform's OAuth app and client settings.
type PlatformConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	RateLimit    float64 `toml:"rate_limit"`
	Burst        int     `toml:"burst"`
}

// PlatformsConfig holds per-platform client settings.
type PlatformsConfig struct {
	YouTube   PlatformConfig `toml:"youtube"`
	Instagram PlatformConfig `toml:"instagram"`
	Twitter   PlatformConfig `toml:"twitter"`
	TikTok    PlatformConfig `toml:"tiktok"`
	Facebook  PlatformConfig `toml:"facebook"`
}

// LoggingConfig controls arbor logger output.
type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"`
}

// NewDefaultConfig returns the built-in defaults, used when no config
// file is present and as the base for file/env overrides.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Storage: StorageConfig{
			Path:           "./data/sentio",
			ResetOnStartup: false,
		},
		Scheduler: SchedulerConfig{
			TickInterval:      "1s",
			MaxConcurrentJobs: 3,
			MaxAttempts:       3,
			ShutdownTimeout:   "30s",
		},
		Cache: CacheConfig{
			Enabled:      true,
			TTLSeconds:   300,
			MaxSize:      100,
			PollInterval: "5s",
			PollCeiling:  "10m",
		},
		Tokens: TokensConfig{
			ExpiryBufferMinutes: 30,
			StaleAfterDays:      7,
			CleanupSchedule:     "0 3 * * *",
		},
		Analysis: AnalysisConfig{
			Provider: "offline",
			Claude: ClaudeConfig{
				Model:     "claude-sonnet-4-20250514",
				Timeout:   "60s",
				MaxTokens: 4096,
			},
			Gemini: GeminiConfig{
				Model:   "gemini-2.0-flash",
				Timeout: "60s",
			},
		},
		Platforms: PlatformsConfig{
			YouTube:   PlatformConfig{RateLimit: 10, Burst: 5},
			Instagram: PlatformConfig{RateLimit: 5, Burst: 3},
			Twitter:   PlatformConfig{RateLimit: 5, Burst: 3},
			TikTok:    PlatformConfig{RateLimit: 5, Burst: 3},
			Facebook:  PlatformConfig{RateLimit: 5, Burst: 3},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"console", "file"},
		},
	}
}

// LoadConfig loads configuration from the given TOML file (optional),
// then applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural constraints. The encryption key length is
// checked by the crypto package at startup; here we only require presence.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.ParseDuration(c.Scheduler.TickInterval); err != nil {
		return fmt.Errorf("invalid scheduler.tick_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Scheduler.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid scheduler.shutdown_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.PollInterval); err != nil {
		return fmt.Errorf("invalid cache.poll_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.PollCeiling); err != nil {
		return fmt.Errorf("invalid cache.poll_ceiling: %w", err)
	}
	return nil
}

// applyEnvOverrides applies SENTIO_* environment variables on top of
// file values. Only operationally useful knobs are exposed this way.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SENTIO_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SENTIO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SENTIO_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SENTIO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SENTIO_ENCRYPTION_KEY"); v != "" {
		c.Tokens.EncryptionKey = v
	}
	if v := os.Getenv("SENTIO_ANALYSIS_PROVIDER"); v != "" {
		c.Analysis.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.Analysis.Claude.APIKey == "" {
		c.Analysis.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Analysis.Gemini.APIKey == "" {
		c.Analysis.Gemini.APIKey = v
	}
}

// Duration getters. Values are validated at load time, so parse
// failures fall back to the documented defaults.

func (c *SchedulerConfig) Tick() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

func (c *SchedulerConfig) DrainTimeout() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c *CacheConfig) Poll() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func (c *CacheConfig) Ceiling() time.Duration {
	d, err := time.ParseDuration(c.PollCeiling)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

func (c *TokensConfig) ExpiryBuffer() time.Duration {
	return time.Duration(c.ExpiryBufferMinutes) * time.Minute
}

func (c *TokensConfig) StaleWindow() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}
