package knowledge

import (
	"context"
	"slices"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/cocoroai/sinr/internal/database"
	"github.com/cocoroai/sinr/internal/log"
)

// Search tuning defaults. The fallback ladder exists because embedding
// similarity for short queries is brittle: one fixed cutoff either
// misses relevant-but-lexically-distant matches or returns nothing, so
// the search trades precision for recall progressively until something
// comes back.
const (
	// DefaultMatchCount is the number of results requested per attempt.
	DefaultMatchCount = 8

	// DefaultThreshold is the first similarity cutoff attempted.
	DefaultThreshold = 0.65

	// DefaultSearchTimeout bounds one whole Search call, embedding
	// included. A stuck provider must not hang the chat path.
	DefaultSearchTimeout = 10 * time.Second
)

// fallbackThresholds are appended after the caller's threshold,
// walked in descending order until an attempt returns matches.
var fallbackThresholds = []float64{0.58, 0.50, 0.45, 0.35}

// SearchQuerier is the vector-store capability the search path
// consumes. Namespace isolation is enforced inside these queries.
type SearchQuerier interface {
	MatchParentChunks(ctx context.Context, arg database.MatchParentChunksParams) ([]database.MatchParentChunksRow, error)
	MatchChildChunks(ctx context.Context, arg database.MatchChildChunksParams) ([]database.MatchChildChunksRow, error)
}

// Embedder is the fail-soft embedding capability consumed by the
// engine; a nil vector means "embedding unavailable", never an error.
// *embedding.Client satisfies it.
type Embedder interface {
	Configured() bool
	Embed(ctx context.Context, text string) []float32
}

// Strategy maps one threshold attempt onto the vector store. The
// retrieval mode is fixed at construction time; there is no runtime
// flag branching.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Fallback returns the strategy to retry with after this one's
	// threshold ladder is exhausted, or nil when there is none.
	Fallback() Strategy

	// Match runs one nearest-neighbor attempt at the given threshold.
	Match(ctx context.Context, q SearchQuerier, namespaceID string, embedding pgvector.Vector, matchCount int32, threshold float64) ([]Match, error)
}

// FlatSearch matches directly against parent-level embeddings.
type FlatSearch struct{}

// Name implements Strategy.
func (FlatSearch) Name() string { return "flat" }

// Fallback implements Strategy.
func (FlatSearch) Fallback() Strategy { return nil }

// Match implements Strategy.
func (FlatSearch) Match(ctx context.Context, q SearchQuerier, namespaceID string, embedding pgvector.Vector, matchCount int32, threshold float64) ([]Match, error) {
	rows, err := q.MatchParentChunks(ctx, database.MatchParentChunksParams{
		NamespaceID:         namespaceID,
		QueryEmbedding:      &embedding,
		SimilarityThreshold: threshold,
		MatchCount:          matchCount,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			ChunkID:       row.ID,
			DocumentID:    row.DocumentID,
			ParentChunkID: row.ParentChunkID,
			Content:       row.ChunkText,
			Similarity:    row.Similarity,
		})
	}
	return matches, nil
}

// HierarchicalSearch matches against child-level embeddings and
// resolves each hit to its parent chunk's content: children are
// embedded finely enough for precise similarity, parents carry enough
// surrounding context to be useful prompt material. Search small,
// return big. When the whole ladder comes back empty it falls back to
// a flat search over parent embeddings.
type HierarchicalSearch struct{}

// Name implements Strategy.
func (HierarchicalSearch) Name() string { return "sinr" }

// Fallback implements Strategy.
func (HierarchicalSearch) Fallback() Strategy { return FlatSearch{} }

// Match implements Strategy.
func (HierarchicalSearch) Match(ctx context.Context, q SearchQuerier, namespaceID string, embedding pgvector.Vector, matchCount int32, threshold float64) ([]Match, error) {
	rows, err := q.MatchChildChunks(ctx, database.MatchChildChunksParams{
		NamespaceID:         namespaceID,
		QueryEmbedding:      &embedding,
		SimilarityThreshold: threshold,
		MatchCount:          matchCount,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		parentID := row.ParentChunkID
		matches = append(matches, Match{
			ChunkID:       row.ID,
			DocumentID:    row.DocumentID,
			ParentChunkID: &parentID,
			Content:       row.ParentText,
			Similarity:    row.Similarity,
		})
	}
	return matches, nil
}

// SearcherOption configures a Searcher at construction time.
type SearcherOption func(*Searcher)

// WithStrategy selects the retrieval strategy. Default: HierarchicalSearch.
func WithStrategy(s Strategy) SearcherOption {
	return func(sr *Searcher) {
		sr.strategy = s
	}
}

// WithMetrics attaches degradation counters.
func WithMetrics(m *Metrics) SearcherOption {
	return func(sr *Searcher) {
		sr.metrics = m
	}
}

// WithSearchTimeout overrides the per-call timeout.
func WithSearchTimeout(d time.Duration) SearcherOption {
	return func(sr *Searcher) {
		sr.timeout = d
	}
}

// SearchOption configures one Search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	matchCount int32
	threshold  float64
}

// WithMatchCount sets the maximum number of results per attempt.
func WithMatchCount(n int32) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.matchCount = n
		}
	}
}

// WithThreshold sets the first similarity cutoff attempted. The fixed
// fallback ladder is still appended after it.
func WithThreshold(t float64) SearchOption {
	return func(c *searchConfig) {
		if t > 0 {
			c.threshold = t
		}
	}
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{
		matchCount: DefaultMatchCount,
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Searcher answers similarity queries over one vector store. It is
// stateless between calls and safe for concurrent use.
//
// Searcher never returns errors: every failure mode (absent
// configuration, embedding failure, store errors, exhausted threshold
// ladder) degrades to an empty result, logged and counted. Callers
// treat "no retrieved context" as a normal outcome.
type Searcher struct {
	queries  SearchQuerier
	embedder Embedder
	strategy Strategy
	logger   log.Logger
	metrics  *Metrics
	timeout  time.Duration
}

// NewSearcher creates a Searcher. queries may be nil when no vector
// store is configured; the searcher then returns empty results without
// any network work. logger nil falls back to a no-op logger.
func NewSearcher(queries SearchQuerier, embedder Embedder, logger log.Logger, opts ...SearcherOption) *Searcher {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Searcher{
		queries:  queries,
		embedder: embedder,
		strategy: HierarchicalSearch{},
		logger:   logger,
		timeout:  DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds query and walks the similarity threshold ladder until
// an attempt returns matches, scoped to namespaceID. The first
// non-empty threshold wins; looser thresholds are not tried after a
// hit. When the strategy's ladder is exhausted its fallback strategy
// (SINR → flat) is walked with the same ladder before giving up.
//
// An empty result is a normal "no relevant knowledge" outcome.
func (s *Searcher) Search(ctx context.Context, namespaceID, query string, opts ...SearchOption) []Match {
	cfg := buildSearchConfig(opts)
	s.metrics.incSearches()

	if s.queries == nil || s.embedder == nil || !s.embedder.Configured() {
		s.metrics.incEmbeddingUnavailable()
		s.logger.Debug("retrieval unavailable, skipping search", "namespace", namespaceID)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vector := s.embedder.Embed(ctx, query)
	if len(vector) == 0 {
		s.metrics.incEmbeddingUnavailable()
		s.logger.Debug("no query embedding, skipping search", "namespace", namespaceID)
		return nil
	}
	embedding := pgvector.NewVector(vector)

	for strategy := s.strategy; strategy != nil; strategy = strategy.Fallback() {
		if matches := s.runLadder(ctx, strategy, namespaceID, embedding, cfg); len(matches) > 0 {
			return matches
		}
	}

	s.metrics.incLadderExhausted()
	s.logger.Debug("threshold ladder exhausted, no matches",
		"namespace", namespaceID, "strategy", s.strategy.Name())
	return nil
}

// runLadder walks the descending threshold list for one strategy and
// returns the first non-empty result set. Store errors on an attempt
// are logged and the next threshold is tried.
func (s *Searcher) runLadder(ctx context.Context, strategy Strategy, namespaceID string, embedding pgvector.Vector, cfg searchConfig) []Match {
	for _, threshold := range thresholdLadder(cfg.threshold) {
		matches, err := strategy.Match(ctx, s.queries, namespaceID, embedding, cfg.matchCount, threshold)
		if err != nil {
			s.metrics.incStoreErrors()
			s.logger.Warn("vector search attempt failed",
				"strategy", strategy.Name(), "threshold", threshold, "error", err)
			continue
		}
		if len(matches) > 0 {
			s.logger.Debug("vector search hit",
				"strategy", strategy.Name(), "threshold", threshold, "matches", len(matches))
			return matches
		}
	}
	return nil
}

// thresholdLadder builds the descending list of cutoffs to attempt:
// the initial threshold followed by the fixed fallback ladder,
// de-duplicated, non-positive values dropped.
func thresholdLadder(initial float64) []float64 {
	ladder := make([]float64, 0, len(fallbackThresholds)+1)
	seen := make(map[float64]struct{}, len(fallbackThresholds)+1)

	for _, t := range append([]float64{initial}, fallbackThresholds...) {
		if t <= 0 {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		ladder = append(ladder, t)
	}

	slices.SortFunc(ladder, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	})
	return ladder
}
