// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (PENSIV_* runtime override)
//  2. Config file (~/.pensiv/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Reasoning: chain budgets, dedup threshold, mirror directory
//   - Storage: PostgreSQL connection (see storage.go)
//   - Embedder: provider and model for semantic deduplication
//   - Server: HTTP API address and rate limiting
//   - Observability: OTLP trace export
//
// Sensitive data (passwords) is never logged; the config directory is
// created with 0750 permissions. Validation uses sentinel errors so callers
// can branch with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidMaxDepth indicates the chain depth limit is out of range.
	ErrInvalidMaxDepth = errors.New("invalid max depth")

	// ErrInvalidTokenBudget indicates the chain token budget is out of range.
	ErrInvalidTokenBudget = errors.New("invalid token budget")

	// ErrInvalidSimilarityThreshold indicates the dedup threshold is outside (0, 1].
	ErrInvalidSimilarityThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidEmbedderProvider indicates the embedder provider is not supported.
	ErrInvalidEmbedderProvider = errors.New("invalid embedder provider")

	// ErrInvalidEmbedderModel indicates the embedder model name is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidMirrorDir indicates the file-mirror directory is invalid.
	ErrInvalidMirrorDir = errors.New("invalid mirror directory")
)

// Embedder provider identifiers used in Config.EmbedderProvider.
const (
	// EmbedderGoogleAI uses the Gemini embedding API via Genkit.
	EmbedderGoogleAI = "googleai"

	// EmbedderNone disables embeddings; deduplication falls back to
	// lexical (Jaccard) similarity.
	EmbedderNone = "none"
)

// DefaultEmbedderModel is the default Gemini embedder model.
// gemini-embedding-001 supports truncation to 768 dimensions via
// OutputDimensionality, matching the reasoning_chains vector column.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
type Config struct {
	// Reasoning chain limits
	MaxDepth            int     `mapstructure:"max_depth" json:"max_depth"`
	TokenBudget         int     `mapstructure:"token_budget" json:"token_budget"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// MirrorDir is where per-session JSONL mirror files live.
	// Empty selects ~/.pensiv/reasoning.
	MirrorDir string `mapstructure:"mirror_dir" json:"mirror_dir"`

	// Embedder configuration
	EmbedderProvider string `mapstructure:"embedder_provider" json:"embedder_provider"`
	EmbedderModel    string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration (see storage.go)
	PostgresEnabled  bool   `mapstructure:"postgres_enabled" json:"postgres_enabled"`
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: never serialized
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP API configuration (serve mode only)
	HTTPAddr   string  `mapstructure:"http_addr" json:"http_addr"`
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"`
	RateRefill float64 `mapstructure:"rate_refill" json:"rate_refill"`
	TrustProxy bool    `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Observability configuration. Empty endpoint disables trace export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".pensiv")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL has the highest priority for PostgreSQL settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	// Reasoning defaults mirror the chain invariants: at most 100 thoughts
	// and 50k whitespace tokens per session.
	v.SetDefault("max_depth", 100)
	v.SetDefault("token_budget", 50000)
	v.SetDefault("similarity_threshold", 0.92)
	v.SetDefault("mirror_dir", filepath.Join(configDir, "reasoning"))

	v.SetDefault("embedder_provider", EmbedderGoogleAI)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("postgres_enabled", true)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "pensiv")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "pensiv")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("rate_burst", 60)
	v.SetDefault("rate_refill", 1.0)
	v.SetDefault("trust_proxy", false)

	v.SetDefault("otlp_endpoint", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds PENSIV_* environment variables.
// Example: PENSIV_TOKEN_BUDGET=80000 overrides token_budget.
func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix("PENSIV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SlogLevel converts the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
