package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cocoroai/sinr/internal/config"
	"github.com/cocoroai/sinr/internal/database"
)

var (
	documentsNamespace string
	documentsLimit     int32
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents in a namespace",
	RunE:  runDocuments,
}

func init() {
	documentsCmd.Flags().StringVarP(&documentsNamespace, "namespace", "n", "", "namespace to list (required)")
	documentsCmd.Flags().Int32VarP(&documentsLimit, "limit", "l", 50, "maximum documents to list")
	_ = documentsCmd.MarkFlagRequired("namespace")
	rootCmd.AddCommand(documentsCmd)
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := cmd.Context()
	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	queries := database.New(pool)

	docs, err := queries.ListDocuments(ctx, documentsNamespace, documentsLimit)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	docCount, err := queries.CountDocuments(ctx, documentsNamespace)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	chunkCount, err := queries.CountChunks(ctx, documentsNamespace)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintf(out, "No documents in namespace %q.\n", documentsNamespace)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tTYPE\tSOURCE\tTITLE")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.CreatedAt.Format("2006-01-02 15:04"), d.SourceType, d.SourceID, d.Title)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}

	fmt.Fprintf(out, "\n%d document(s), %d chunk(s)\n", docCount, chunkCount)
	return nil
}
