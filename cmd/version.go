package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cocoroai/sinr/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "sinr %s\n", AppVersion)
	fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		// Version output should still work with a broken config.
		fmt.Fprintf(out, "\nConfiguration: %v\n", err)
		return nil
	}

	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintf(out, "  Provider: %s\n", cfg.Provider)
	fmt.Fprintf(out, "  Embedder: %s (%d dimensions)\n", cfg.EmbedderModel, cfg.EmbedderDimension)
	fmt.Fprintf(out, "  Match count: %d\n", cfg.MatchCount)
	fmt.Fprintf(out, "  Similarity threshold: %.2f\n", cfg.SimilarityThreshold)
	fmt.Fprintf(out, "  Chunk mode: %s\n", cfg.ChunkMode)
	fmt.Fprintf(out, "  Database: %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)

	if cfg.APIKey() == "" {
		fmt.Fprintf(out, "  API key: not set (retrieval will return empty results)\n")
	} else {
		fmt.Fprintf(out, "  API key: configured\n")
	}
	return nil
}
