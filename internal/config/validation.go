package config

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/cocoroai/sinr/internal/embedding"
)

// MaxMatchCount is the absolute maximum retrieval match count. Larger
// fan-outs blow past the context budget downstream.
const MaxMatchCount int32 = 50

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// A missing provider API key is deliberately NOT an error: the
// embedding client treats an unconfigured provider as "return nothing"
// so chat keeps working without retrieval. Validate only warns.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Embedding configuration
	if c.Provider != ProviderOpenAI && c.Provider != ProviderGemini {
		return fmt.Errorf("%w: %q is not supported, must be %q or %q",
			ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderGemini)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// The vector column width is fixed at migration time. A mismatched
	// embedder would fail every insert, so reject it up front.
	if c.EmbedderDimension != embedding.DefaultDimension {
		return fmt.Errorf("%w: schema stores %d-dimension vectors, got %d",
			ErrInvalidEmbedderDimension, embedding.DefaultDimension, c.EmbedderDimension)
	}

	if c.APIKey() == "" {
		slog.Warn("no API key for embedding provider, retrieval will return empty results",
			"provider", c.Provider)
	}

	// 2. Retrieval configuration
	if c.MatchCount < 1 || c.MatchCount > MaxMatchCount {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidMatchCount, MaxMatchCount, c.MatchCount)
	}

	// Cosine similarity lives in [-1, 1]; thresholds at or below zero
	// match everything and are almost certainly a typo.
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: must be in (0, 1], got %.2f",
			ErrInvalidThreshold, c.SimilarityThreshold)
	}

	// 3. Ingestion configuration
	if c.ChunkMode != ChunkModeSINR && c.ChunkMode != ChunkModeFlat {
		return fmt.Errorf("%w: %q is not supported, must be %q or %q",
			ErrInvalidChunkMode, c.ChunkMode, ChunkModeSINR, ChunkModeFlat)
	}

	if c.IngestConcurrency < 1 || c.IngestConcurrency > 64 {
		return fmt.Errorf("%w: must be between 1 and 64, got %d",
			ErrInvalidConcurrency, c.IngestConcurrency)
	}

	// 4. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "sinr_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// 5. PostgreSQL SSL mode validation
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
