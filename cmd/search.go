package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cocoroai/sinr/internal/config"
	"github.com/cocoroai/sinr/internal/database"
	"github.com/cocoroai/sinr/internal/knowledge"
)

var (
	searchNamespace string
	searchCount     int32
	searchThreshold float64
	searchAssemble  bool
	searchFlat      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve the most relevant passages for a query",
	Long: `Embeds the query and searches the namespace's child chunks, returning
the surrounding parent text for each match. If nothing clears the
threshold, progressively lower thresholds are tried, and finally the
parent chunks are searched directly.

An empty result is normal: it means nothing in the namespace was
relevant enough, or no embedding provider is configured.`,
	Example: `  sinr search --namespace michelle "瞑想の始め方"
  sinr search --namespace michelle --count 4 --threshold 0.7 "breathing exercises"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchNamespace, "namespace", "n", "", "namespace to search (required)")
	searchCmd.Flags().Int32VarP(&searchCount, "count", "c", 0, "maximum matches to return (default from config)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "initial similarity threshold (default from config)")
	searchCmd.Flags().BoolVar(&searchAssemble, "context", false, "print matches as an assembled context block")
	searchCmd.Flags().BoolVar(&searchFlat, "flat", false, "search parent chunks directly, skipping the hierarchy")
	_ = searchCmd.MarkFlagRequired("namespace")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := cmd.Context()
	logger := newLogger()

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	searcherOpts := []knowledge.SearcherOption{}
	if searchFlat {
		searcherOpts = append(searcherOpts, knowledge.WithStrategy(knowledge.FlatSearch{}))
	}

	searcher := knowledge.NewSearcher(
		database.New(pool),
		newEmbedder(cfg, logger),
		logger,
		searcherOpts...,
	)

	searchOpts := []knowledge.SearchOption{
		knowledge.WithMatchCount(cfg.MatchCount),
		knowledge.WithThreshold(cfg.SimilarityThreshold),
	}
	if searchCount > 0 {
		searchOpts = append(searchOpts, knowledge.WithMatchCount(searchCount))
	}
	if searchThreshold > 0 {
		searchOpts = append(searchOpts, knowledge.WithThreshold(searchThreshold))
	}

	query := strings.Join(args, " ")
	matches := searcher.Search(ctx, searchNamespace, query, searchOpts...)

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}

	if searchAssemble {
		fmt.Fprintln(out, knowledge.Assemble(matches))
		return nil
	}

	for i, m := range matches {
		fmt.Fprintf(out, "%d. score %.3f  document %s\n", i+1, m.Similarity, m.DocumentID)
		fmt.Fprintln(out, indent(m.Content, "   "))
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
