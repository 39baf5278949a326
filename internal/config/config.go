// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.sinr/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Embedding: provider selection, model, output dimension (see Validate)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: match count, similarity threshold
//   - Ingestion: chunk mode and concurrency
//
// Security: API keys and passwords are never logged; config directory uses 0750 permissions.
// Validation: range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/cocoroai/sinr/internal/chunker"
	"github.com/cocoroai/sinr/internal/embedding"
	"github.com/cocoroai/sinr/internal/knowledge"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder produces vectors
	// incompatible with the database schema.
	ErrInvalidEmbedderDimension = errors.New("incompatible embedder dimension")

	// ErrInvalidMatchCount indicates the retrieval match count is out of range.
	ErrInvalidMatchCount = errors.New("invalid match count")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidChunkMode indicates the chunk mode is not supported.
	ErrInvalidChunkMode = errors.New("invalid chunk mode")

	// ErrInvalidConcurrency indicates the ingest concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid ingest concurrency")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Embedding provider identifiers used in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Chunk mode identifiers used in Config.ChunkMode.
const (
	// ChunkModeSINR builds the two-level parent/child hierarchy with the
	// default 800/100 parent and 200/50 child windows.
	ChunkModeSINR = "sinr"

	// ChunkModeFlat narrows the parent window to 600/50. The hierarchy
	// is still built; only the windows differ.
	ChunkModeFlat = "flat"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// Embedding configuration. API keys come from the environment only
	// (OPENAI_API_KEY, GEMINI_API_KEY); a missing key is not a
	// configuration error because retrieval degrades to empty results.
	Provider          string `mapstructure:"provider" json:"provider"`                     // "openai" (default), "gemini"
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`         // e.g. "text-embedding-3-small", "gemini-embedding-001"
	EmbedderDimension int32  `mapstructure:"embedder_dimension" json:"embedder_dimension"` // must match the vector column width

	OpenAIAPIKey string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON

	// Retrieval configuration
	MatchCount          int32   `mapstructure:"match_count" json:"match_count"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// Ingestion configuration
	ChunkMode         string `mapstructure:"chunk_mode" json:"chunk_mode"` // "sinr" (default), "flat"
	IngestConcurrency int    `mapstructure:"ingest_concurrency" json:"ingest_concurrency"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.sinr/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sinr")

	// Ensure directory exists (0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Embedding defaults
	viper.SetDefault("provider", ProviderOpenAI)
	viper.SetDefault("embedder_model", embedding.DefaultOpenAIModel)
	viper.SetDefault("embedder_dimension", embedding.DefaultDimension)

	// Retrieval defaults
	viper.SetDefault("match_count", knowledge.DefaultMatchCount)
	viper.SetDefault("similarity_threshold", knowledge.DefaultThreshold)

	// Ingestion defaults
	viper.SetDefault("chunk_mode", ChunkModeSINR)
	viper.SetDefault("ingest_concurrency", knowledge.DefaultIngestConcurrency)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "sinr")
	viper.SetDefault("postgres_password", "sinr_dev_password")
	viper.SetDefault("postgres_db_name", "sinr")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variables explicitly.
// API keys bind to the conventional provider variables; everything else
// uses the SINR_ prefix.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key string, envVars ...string) {
		if err := viper.BindEnv(append([]string{key}, envVars...)...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %v: %v", key, envVars, err))
		}
	}

	// Provider API keys. Optional: the embedding client degrades to
	// empty results when the selected provider has no key.
	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("gemini_api_key", "GEMINI_API_KEY")

	// Embedding overrides
	mustBind("provider", "SINR_PROVIDER")
	mustBind("embedder_model", "SINR_EMBEDDER_MODEL")

	// Retrieval overrides
	mustBind("match_count", "SINR_MATCH_COUNT")
	mustBind("similarity_threshold", "SINR_SIMILARITY_THRESHOLD")

	// Ingestion overrides
	mustBind("chunk_mode", "SINR_CHUNK_MODE")
}

// ChunkOptions returns the chunk window configuration for the
// configured mode. Call Validate first; unknown modes fall back to the
// hierarchical defaults.
func (c *Config) ChunkOptions() chunker.Options {
	if c.ChunkMode == ChunkModeFlat {
		return chunker.FlatOptions()
	}
	return chunker.DefaultOptions()
}

// APIKey returns the API key for the configured provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// with characters that could appear in real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - OpenAIAPIKey
//   - GeminiAPIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
