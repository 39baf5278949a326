package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/cocoroai/sinr/internal/chunker"
	"github.com/cocoroai/sinr/internal/database"
	"github.com/cocoroai/sinr/internal/log"
)

var (
	// ErrNoStore indicates ingestion was attempted without a vector
	// store. Unlike the search path, ingestion with no destination is
	// pointless and fails loudly.
	ErrNoStore = errors.New("no vector store configured")

	// ErrDocumentInsert indicates the document row insert failed.
	// This aborts the whole ingestion: chunks without a document row
	// would be orphans.
	ErrDocumentInsert = errors.New("failed to insert document")
)

// DefaultIngestConcurrency bounds how many parent chunks are processed
// at once. The embedding API and the database both throttle; unbounded
// fan-out trips their limits.
const DefaultIngestConcurrency = 4

// IngestQuerier is the storage capability the ingestion path consumes.
type IngestQuerier interface {
	InsertDocument(ctx context.Context, arg database.InsertDocumentParams) error
	InsertChunk(ctx context.Context, arg database.InsertChunkParams) error
	DeleteDocumentsBySource(ctx context.Context, namespaceID, sourceID string) (int64, error)
}

// IngestParams describes one document to ingest.
type IngestParams struct {
	NamespaceID string
	SourceType  string
	SourceID    string
	Title       string
	Content     string
}

// Report summarizes what one ingestion actually persisted. Ingestion
// is best-effort below the document level: a document with some chunks
// missing is more useful than no document, so per-chunk failures are
// counted here instead of aborting.
type Report struct {
	// Parents and Children count successfully inserted chunk rows.
	Parents  int
	Children int

	// FailedParents counts parent inserts that failed; their children
	// were skipped since they had nothing to attach to.
	FailedParents int

	// FailedChildren counts child inserts that failed.
	FailedChildren int

	// MissingEmbeddings counts chunks stored without a vector because
	// embedding generation failed; they are excluded from search but
	// keep their text for parent resolution.
	MissingEmbeddings int
}

type ingestStats struct {
	parents           atomic.Int64
	children          atomic.Int64
	failedParents     atomic.Int64
	failedChildren    atomic.Int64
	missingEmbeddings atomic.Int64
}

func (s *ingestStats) report() Report {
	return Report{
		Parents:           int(s.parents.Load()),
		Children:          int(s.children.Load()),
		FailedParents:     int(s.failedParents.Load()),
		FailedChildren:    int(s.failedChildren.Load()),
		MissingEmbeddings: int(s.missingEmbeddings.Load()),
	}
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithChunking overrides the chunk window configuration.
// Default: chunker.DefaultOptions (hierarchical 800/100 over 200/50).
func WithChunking(opts chunker.Options) IngestorOption {
	return func(i *Ingestor) {
		i.chunking = opts
	}
}

// WithConcurrency bounds concurrent parent-chunk processing.
func WithConcurrency(n int) IngestorOption {
	return func(i *Ingestor) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// Ingestor writes documents and their chunk trees into the vector
// store. Documents are append-only: replacing one means clearing its
// (namespace, source) pair and re-ingesting, never mutating rows in
// place, so embeddings and text cannot diverge.
type Ingestor struct {
	queries     IngestQuerier
	embedder    Embedder
	chunking    chunker.Options
	concurrency int
	logger      log.Logger
}

// NewIngestor creates an Ingestor. logger nil falls back to a no-op
// logger.
func NewIngestor(queries IngestQuerier, embedder Embedder, logger log.Logger, opts ...IngestorOption) *Ingestor {
	if logger == nil {
		logger = log.NewNop()
	}
	ing := &Ingestor{
		queries:     queries,
		embedder:    embedder,
		chunking:    chunker.DefaultOptions(),
		concurrency: DefaultIngestConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest persists one document and its parent/child chunk tree.
//
// The document row is inserted first; if that fails nothing else is
// attempted. Parent chunks are then processed with bounded
// concurrency: each parent is embedded and inserted, followed by its
// children in index order. Per-chunk failures are logged, counted in
// the Report and skipped. Empty content yields a document with zero
// chunks, not an error.
func (ing *Ingestor) Ingest(ctx context.Context, p IngestParams) (uuid.UUID, Report, error) {
	if ing.queries == nil {
		return uuid.Nil, Report{}, ErrNoStore
	}
	if err := ing.chunking.Validate(); err != nil {
		return uuid.Nil, Report{}, fmt.Errorf("invalid chunk configuration: %w", err)
	}

	parents, err := chunker.Hierarchy(p.Content, ing.chunking)
	if err != nil {
		return uuid.Nil, Report{}, fmt.Errorf("chunking document: %w", err)
	}

	docID := uuid.New()
	if err := ing.queries.InsertDocument(ctx, database.InsertDocumentParams{
		ID:          docID,
		NamespaceID: p.NamespaceID,
		SourceType:  p.SourceType,
		SourceID:    p.SourceID,
		Title:       p.Title,
		Content:     p.Content,
	}); err != nil {
		return uuid.Nil, Report{}, fmt.Errorf("%w (%s/%s): %w", ErrDocumentInsert, p.NamespaceID, p.SourceID, err)
	}

	var stats ingestStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)

	for _, parent := range parents {
		g.Go(func() error {
			ing.ingestParent(gctx, docID, p, parent, &stats)
			// Best-effort: parent failures are recorded, not fatal.
			return nil
		})
	}
	_ = g.Wait()

	report := stats.report()
	ing.logger.Info("document ingested",
		"namespace", p.NamespaceID,
		"source", p.SourceID,
		"document_id", docID,
		"parents", report.Parents,
		"children", report.Children,
		"failed_parents", report.FailedParents,
		"failed_children", report.FailedChildren,
		"missing_embeddings", report.MissingEmbeddings,
	)
	return docID, report, nil
}

// Replace clears everything previously ingested for the params'
// (namespace, source) pair, then ingests. Ingest alone appends and
// does not deduplicate.
func (ing *Ingestor) Replace(ctx context.Context, p IngestParams) (uuid.UUID, Report, error) {
	if ing.queries == nil {
		return uuid.Nil, Report{}, ErrNoStore
	}

	deleted, err := ing.queries.DeleteDocumentsBySource(ctx, p.NamespaceID, p.SourceID)
	if err != nil {
		return uuid.Nil, Report{}, fmt.Errorf("clearing previous ingestion (%s/%s): %w", p.NamespaceID, p.SourceID, err)
	}
	if deleted > 0 {
		ing.logger.Info("cleared previous ingestion",
			"namespace", p.NamespaceID, "source", p.SourceID, "documents", deleted)
	}

	return ing.Ingest(ctx, p)
}

func (ing *Ingestor) ingestParent(ctx context.Context, docID uuid.UUID, p IngestParams, parent chunker.Parent, stats *ingestStats) {
	parentID := uuid.New()
	parentVec := ing.embedVector(ctx, parent.Content, stats)

	if err := ing.queries.InsertChunk(ctx, database.InsertChunkParams{
		ID:          parentID,
		DocumentID:  docID,
		NamespaceID: p.NamespaceID,
		ChunkText:   parent.Content,
		ChunkIndex:  int32(parent.Index), // #nosec G115 -- chunk counts are tiny
		Embedding:   parentVec,
		Metadata:    chunkMetadata(p.Title, parent.Index, -1),
	}); err != nil {
		stats.failedParents.Add(1)
		ing.logger.Warn("parent chunk insert failed, skipping its children",
			"document_id", docID, "parent_index", parent.Index, "error", err)
		return
	}
	stats.parents.Add(1)

	for _, child := range parent.Children {
		childVec := ing.embedVector(ctx, child.Content, stats)

		if err := ing.queries.InsertChunk(ctx, database.InsertChunkParams{
			ID:            uuid.New(),
			DocumentID:    docID,
			ParentChunkID: &parentID,
			NamespaceID:   p.NamespaceID,
			ChunkText:     child.Content,
			ChunkIndex:    int32(child.Index), // #nosec G115 -- chunk counts are tiny
			Embedding:     childVec,
			Metadata:      chunkMetadata(p.Title, parent.Index, child.Index),
		}); err != nil {
			stats.failedChildren.Add(1)
			ing.logger.Warn("child chunk insert failed, continuing",
				"document_id", docID, "parent_index", parent.Index,
				"child_index", child.Index, "error", err)
			continue
		}
		stats.children.Add(1)
	}
}

// embedVector embeds text and converts the result for storage. A
// failed embedding is counted and stored as NULL rather than dropping
// the chunk.
func (ing *Ingestor) embedVector(ctx context.Context, text string, stats *ingestStats) *pgvector.Vector {
	if ing.embedder == nil {
		stats.missingEmbeddings.Add(1)
		return nil
	}
	vec := ing.embedder.Embed(ctx, text)
	if len(vec) == 0 {
		stats.missingEmbeddings.Add(1)
		return nil
	}
	v := pgvector.NewVector(vec)
	return &v
}

func chunkMetadata(title string, parentIndex, childIndex int) []byte {
	meta := map[string]any{
		"title":        title,
		"parent_index": parentIndex,
	}
	if childIndex >= 0 {
		meta["child_index"] = childIndex
	}

	data, err := json.Marshal(meta)
	if err != nil {
		// Unreachable with string/int values; fall back to empty object.
		return []byte("{}")
	}
	return data
}
