package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/cocoroai/sinr/internal/chunker"
	"github.com/cocoroai/sinr/internal/config"
	"github.com/cocoroai/sinr/internal/database"
	"github.com/cocoroai/sinr/internal/knowledge"
	"github.com/cocoroai/sinr/internal/loader"
)

var (
	ingestNamespace string
	ingestURLs      []string
	ingestClear     bool
	ingestFlat      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into the knowledge store",
	Long: `Splits documents into parent and child chunks, embeds them and writes
them to the vector store.

Ingestion appends: running it twice on the same source stores the
content twice. Use --clear to replace everything previously ingested
for each source instead.

Only one ingest runs at a time; a second invocation fails immediately
instead of interleaving writes.`,
	Example: `  sinr ingest --namespace michelle notes/*.md
  sinr ingest --namespace michelle --url https://example.com/guide --clear`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestNamespace, "namespace", "n", "", "namespace to ingest into (required)")
	ingestCmd.Flags().StringArrayVarP(&ingestURLs, "url", "u", nil, "URL to fetch and ingest (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "replace previously ingested content for each source")
	ingestCmd.Flags().BoolVar(&ingestFlat, "flat", false, "use the narrower flat chunk windows")
	_ = ingestCmd.MarkFlagRequired("namespace")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(ingestURLs) == 0 {
		return fmt.Errorf("nothing to ingest: pass files or --url")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	unlock, err := acquireIngestLock()
	if err != nil {
		return err
	}
	defer unlock()

	ctx := cmd.Context()
	logger := newLogger()

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	chunking := cfg.ChunkOptions()
	if ingestFlat {
		chunking = chunker.FlatOptions()
	}

	ingestor := knowledge.NewIngestor(
		database.New(pool),
		newEmbedder(cfg, logger),
		logger,
		knowledge.WithChunking(chunking),
		knowledge.WithConcurrency(cfg.IngestConcurrency),
	)

	var failed int
	for _, path := range args {
		doc, err := loader.FromFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", path, err)
			failed++
			continue
		}
		if err := ingestOne(ctx, cmd, ingestor, doc, knowledge.SourceTypeFile); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "ingesting %s: %v\n", path, err)
			failed++
		}
	}

	for _, rawURL := range ingestURLs {
		doc, err := loader.FromURL(ctx, rawURL)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", rawURL, err)
			failed++
			continue
		}
		if err := ingestOne(ctx, cmd, ingestor, doc, knowledge.SourceTypeURL); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "ingesting %s: %v\n", rawURL, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d source(s) failed", failed)
	}
	return nil
}

func ingestOne(ctx context.Context, cmd *cobra.Command, ingestor *knowledge.Ingestor, doc loader.Document, sourceType string) error {
	params := knowledge.IngestParams{
		NamespaceID: ingestNamespace,
		SourceType:  sourceType,
		SourceID:    doc.SourceID,
		Title:       doc.Title,
		Content:     doc.Content,
	}

	var (
		report knowledge.Report
		err    error
	)
	if ingestClear {
		_, report, err = ingestor.Replace(ctx, params)
	} else {
		_, report, err = ingestor.Ingest(ctx, params)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d parent(s), %d child(ren)", doc.SourceID, report.Parents, report.Children)
	if n := report.FailedParents + report.FailedChildren; n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d failed", n)
	}
	if report.MissingEmbeddings > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d without embeddings", report.MissingEmbeddings)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// acquireIngestLock takes an advisory file lock so concurrent ingests
// cannot interleave deletes and inserts for the same source.
func acquireIngestLock() (func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	dir := filepath.Join(home, ".sinr")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, "ingest.lock"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another ingest is already running (lock %s held)", fl.Path())
	}

	return func() { _ = fl.Unlock() }, nil
}
