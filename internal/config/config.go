// Package config provides configuration management for memochat.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"

	RetentionAll           = "all"
	RetentionUnsummarized  = "unsummarized"
	defaultStorePath       = "memochat.sqlite3"
	defaultMaxOutputTokens = 4096
)

// Settings is the credential bundle model calls are derived from. It is comparable, so a change of any field can be
// detected with ==.
type Settings struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// Configured reports whether the bundle has what a model call needs
func (s Settings) Configured() bool {
	return s.HasCredentials() && s.Model != ""
}

// HasCredentials reports whether the bundle is enough to reach the provider, e.g. to list its models
func (s Settings) HasCredentials() bool {
	if s.APIKey == "" {
		return false
	}
	if s.Provider == ProviderOpenAI && s.BaseURL == "" {
		return false
	}
	return true
}

// Config holds the configuration for memochat
type Config struct {
	Settings `yaml:",inline"`

	MaxOutputTokens  int64         `yaml:"max_output_tokens"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	Store            string        `yaml:"store"`
	StorePath        string        `yaml:"store_path"`
	HistoryRetention string        `yaml:"history_retention"`
	LogLevel         string        `yaml:"log_level"`

	TelemetryEnabled  bool   `yaml:"telemetry_enabled"`
	TelemetryEndpoint string `yaml:"telemetry_endpoint"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Settings: Settings{
			Provider: ProviderOpenAI,
		},
		MaxOutputTokens:  defaultMaxOutputTokens,
		Store:            StoreSQLite,
		StorePath:        defaultStorePath,
		HistoryRetention: RetentionAll,
		LogLevel:         "info",
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if path is not empty), then MEMOCHAT_*
// environment variables. Provider-specific key variables are not consulted; see ResolveProviderAPIKey.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &config); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.loadEnv(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ResolveProviderAPIKey falls back to the provider's own API key variable when no key has been set by any other
// source. It must run once the provider is final, after command line flags are applied.
func (c *Config) ResolveProviderAPIKey() {
	if c.APIKey != "" {
		return
	}
	switch c.Provider {
	case ProviderAnthropic:
		loadOptionalFromEnv(&c.APIKey, "ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		loadOptionalFromEnv(&c.APIKey, "OPENAI_API_KEY")
	}
}

func (c *Config) loadEnv() error {
	loadOptionalFromEnv(&c.Provider, "MEMOCHAT_PROVIDER")
	loadOptionalFromEnv(&c.APIKey, "MEMOCHAT_API_KEY")
	loadOptionalFromEnv(&c.BaseURL, "MEMOCHAT_BASE_URL")
	loadOptionalFromEnv(&c.Model, "MEMOCHAT_MODEL")
	loadOptionalFromEnv(&c.Store, "MEMOCHAT_STORE")
	loadOptionalFromEnv(&c.StorePath, "MEMOCHAT_STORE_PATH")
	loadOptionalFromEnv(&c.HistoryRetention, "MEMOCHAT_HISTORY_RETENTION")
	loadOptionalFromEnv(&c.LogLevel, "MEMOCHAT_LOG_LEVEL")
	loadOptionalFromEnv(&c.TelemetryEndpoint, "MEMOCHAT_TELEMETRY_ENDPOINT")

	return errors.Join(
		parseOptionalFromEnv(&c.MaxOutputTokens, "MEMOCHAT_MAX_OUTPUT_TOKENS", func(v string) (int64, error) {
			return strconv.ParseInt(v, 10, 64)
		}),
		parseOptionalFromEnv(&c.RequestTimeout, "MEMOCHAT_REQUEST_TIMEOUT", time.ParseDuration),
		parseOptionalFromEnv(&c.TelemetryEnabled, "MEMOCHAT_TELEMETRY_ENABLED", strconv.ParseBool),
	)
}

// Validate checks that the configuration is complete and consistent
func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("missing API key: set MEMOCHAT_API_KEY or --api-key"))
	}
	if c.Model == "" {
		errs = append(errs, fmt.Errorf("missing model: set MEMOCHAT_MODEL or --model"))
	}
	if c.Provider == ProviderOpenAI && c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("missing base URL: set MEMOCHAT_BASE_URL or --base-url"))
	}
	errs = append(errs, c.ValidateStorage())
	if c.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("max output tokens must be positive, got %d", c.MaxOutputTokens))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout))
	}
	return errors.Join(errs...)
}

// ValidateStorage checks only the settings needed to open the checkpoint store, for commands that never call a model
func (c Config) ValidateStorage() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.StorePath == "" {
			errs = append(errs, fmt.Errorf("store %q requires a store path", c.Store))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	switch c.HistoryRetention {
	case RetentionAll, RetentionUnsummarized:
	default:
		errs = append(errs, fmt.Errorf("unknown history retention %q", c.HistoryRetention))
	}
	return errors.Join(errs...)
}

func loadOptionalFromEnv(dest *string, key string) {
	_ = parseOptionalFromEnv(dest, key, func(v string) (string, error) { return v, nil })
}

func parseOptionalFromEnv[T any](dest *T, key string, parseFn func(string) (T, error)) error {
	str := os.Getenv(key)
	if str == "" {
		return nil // Leave default value
	}
	v, err := parseFn(str)
	if err != nil {
		return fmt.Errorf("failed to parse environment variable '%s' value '%s' as '%T': %w", key, str, *dest, err)
	}
	*dest = v
	return nil
}
