package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cocoroai/sinr/internal/config"
	"github.com/cocoroai/sinr/internal/database"
	"github.com/cocoroai/sinr/internal/embedding"
	"github.com/cocoroai/sinr/internal/log"
)

// newLogger builds the CLI logger, honoring --verbose.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// newEmbedder builds the fail-soft embedding client for the configured
// provider. A missing API key yields a client whose lookups return
// nothing; commands decide how loudly to complain about that.
func newEmbedder(cfg *config.Config, logger log.Logger) *embedding.Client {
	var provider embedding.Provider
	switch cfg.Provider {
	case config.ProviderGemini:
		provider = embedding.NewGemini(cfg.GeminiAPIKey, cfg.EmbedderModel, int(cfg.EmbedderDimension))
	default:
		provider = embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbedderModel)
	}
	return embedding.NewClient(provider, logger)
}

// openDatabase loads config and opens a pooled connection with
// pgvector types registered.
func openDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	return pool, nil
}
