package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocoroai/sinr/internal/database"
	"github.com/cocoroai/sinr/internal/log"
)

// mockEmbedder implements Embedder for search tests.
type mockEmbedder struct {
	configured bool
	vector     []float32
	callCount  int
	lastInput  string
}

func (m *mockEmbedder) Configured() bool { return m.configured }

func (m *mockEmbedder) Embed(_ context.Context, text string) []float32 {
	m.callCount++
	m.lastInput = text
	return m.vector
}

// matchCall records one nearest-neighbor attempt for assertions.
type matchCall struct {
	kind        string // "child" or "parent"
	namespaceID string
	threshold   float64
	matchCount  int32
}

// mockQuerier implements SearchQuerier. Results and errors are keyed
// by (kind, threshold) so tests can script the ladder.
type mockQuerier struct {
	calls      []matchCall
	childRows  map[float64][]database.MatchChildChunksRow
	parentRows map[float64][]database.MatchParentChunksRow
	childErr   map[float64]error
	parentErr  map[float64]error
}

func (m *mockQuerier) MatchChildChunks(_ context.Context, arg database.MatchChildChunksParams) ([]database.MatchChildChunksRow, error) {
	m.calls = append(m.calls, matchCall{"child", arg.NamespaceID, arg.SimilarityThreshold, arg.MatchCount})
	if err := m.childErr[arg.SimilarityThreshold]; err != nil {
		return nil, err
	}
	return m.childRows[arg.SimilarityThreshold], nil
}

func (m *mockQuerier) MatchParentChunks(_ context.Context, arg database.MatchParentChunksParams) ([]database.MatchParentChunksRow, error) {
	m.calls = append(m.calls, matchCall{"parent", arg.NamespaceID, arg.SimilarityThreshold, arg.MatchCount})
	if err := m.parentErr[arg.SimilarityThreshold]; err != nil {
		return nil, err
	}
	return m.parentRows[arg.SimilarityThreshold], nil
}

func thresholds(calls []matchCall, kind string) []float64 {
	var out []float64
	for _, c := range calls {
		if c.kind == kind {
			out = append(out, c.threshold)
		}
	}
	return out
}

func TestThresholdLadder(t *testing.T) {
	tests := []struct {
		name    string
		initial float64
		want    []float64
	}{
		{"default threshold", 0.65, []float64{0.65, 0.58, 0.50, 0.45, 0.35}},
		{"duplicate of a fallback", 0.50, []float64{0.58, 0.50, 0.45, 0.35}},
		{"looser than the ladder", 0.30, []float64{0.58, 0.50, 0.45, 0.35, 0.30}},
		{"non-positive dropped", 0, []float64{0.58, 0.50, 0.45, 0.35}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, thresholdLadder(tt.initial))
		})
	}
}

func TestSearch_UnconfiguredStoreReturnsEmpty(t *testing.T) {
	embedder := &mockEmbedder{configured: true, vector: []float32{1, 0}}
	metrics := &Metrics{}
	s := NewSearcher(nil, embedder, log.NewNop(), WithMetrics(metrics))

	matches := s.Search(context.Background(), "persona-a", "anxiety coping")
	assert.Empty(t, matches)
	assert.Zero(t, embedder.callCount, "no network work without a store")
	assert.Equal(t, int64(1), metrics.Snapshot().EmbeddingUnavailable)
}

func TestSearch_UnconfiguredEmbedderReturnsEmpty(t *testing.T) {
	q := &mockQuerier{}
	s := NewSearcher(q, &mockEmbedder{configured: false}, log.NewNop())

	assert.Empty(t, s.Search(context.Background(), "persona-a", "query"))
	assert.Empty(t, q.calls, "no store call without an embedding credential")
}

func TestSearch_EmbeddingFailureReturnsEmpty(t *testing.T) {
	q := &mockQuerier{}
	metrics := &Metrics{}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: nil}, log.NewNop(), WithMetrics(metrics))

	assert.Empty(t, s.Search(context.Background(), "persona-a", "query"))
	assert.Empty(t, q.calls)
	assert.Equal(t, int64(1), metrics.Snapshot().EmbeddingUnavailable)
}

func TestSearch_FirstNonEmptyThresholdWins(t *testing.T) {
	q := &mockQuerier{
		childRows: map[float64][]database.MatchChildChunksRow{
			0.50: {{ID: uuid.New(), DocumentID: uuid.New(), ParentChunkID: uuid.New(), ParentText: "hit at 0.50", Similarity: 0.52}},
			0.45: {{ID: uuid.New(), DocumentID: uuid.New(), ParentChunkID: uuid.New(), ParentText: "hit at 0.45", Similarity: 0.47}},
		},
	}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop())

	matches := s.Search(context.Background(), "persona-a", "query")
	require.Len(t, matches, 1)
	assert.Equal(t, "hit at 0.50", matches[0].Content)

	// The ladder stops at the first non-empty threshold; 0.45 and 0.35
	// are never attempted, and no flat fallback runs.
	assert.Equal(t, []float64{0.65, 0.58, 0.50}, thresholds(q.calls, "child"))
	assert.Empty(t, thresholds(q.calls, "parent"))
}

func TestSearch_StoreErrorContinuesToNextThreshold(t *testing.T) {
	q := &mockQuerier{
		childErr: map[float64]error{
			0.65: errors.New("connection reset"),
		},
		childRows: map[float64][]database.MatchChildChunksRow{
			0.58: {{ID: uuid.New(), DocumentID: uuid.New(), ParentChunkID: uuid.New(), ParentText: "recovered", Similarity: 0.60}},
		},
	}
	metrics := &Metrics{}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop(), WithMetrics(metrics))

	matches := s.Search(context.Background(), "persona-a", "query")
	require.Len(t, matches, 1)
	assert.Equal(t, "recovered", matches[0].Content)
	assert.Equal(t, int64(1), metrics.Snapshot().StoreErrors)
}

func TestSearch_SinrResolvesParentContent(t *testing.T) {
	childID := uuid.New()
	docID := uuid.New()
	parentID := uuid.New()
	q := &mockQuerier{
		childRows: map[float64][]database.MatchChildChunksRow{
			0.65: {{ID: childID, DocumentID: docID, ParentChunkID: parentID, ParentText: "full parent context", Similarity: 0.71}},
		},
	}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop())

	matches := s.Search(context.Background(), "persona-a", "query")
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, childID, m.ChunkID)
	assert.Equal(t, docID, m.DocumentID)
	require.NotNil(t, m.ParentChunkID)
	assert.Equal(t, parentID, *m.ParentChunkID)
	assert.Equal(t, "full parent context", m.Content, "content must be the parent's, not the child's")
	assert.InDelta(t, 0.71, m.Similarity, 1e-9, "similarity must stay the child's score")
}

func TestSearch_SinrFallsBackToFlat(t *testing.T) {
	q := &mockQuerier{
		parentRows: map[float64][]database.MatchParentChunksRow{
			0.45: {{ID: uuid.New(), DocumentID: uuid.New(), ChunkText: "flat hit", Similarity: 0.46}},
		},
	}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop())

	matches := s.Search(context.Background(), "persona-a", "query")
	require.Len(t, matches, 1)
	assert.Equal(t, "flat hit", matches[0].Content)
	assert.Nil(t, matches[0].ParentChunkID)

	// The whole child ladder runs first, then the flat ladder.
	assert.Equal(t, []float64{0.65, 0.58, 0.50, 0.45, 0.35}, thresholds(q.calls, "child"))
	assert.Equal(t, []float64{0.65, 0.58, 0.50, 0.45}, thresholds(q.calls, "parent"))
}

func TestSearch_LadderExhaustedReturnsEmpty(t *testing.T) {
	q := &mockQuerier{}
	metrics := &Metrics{}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop(), WithMetrics(metrics))

	assert.Empty(t, s.Search(context.Background(), "persona-a", "nothing matches this"))
	assert.Equal(t, int64(1), metrics.Snapshot().LadderExhausted)

	// SINR ladder plus flat fallback ladder, all empty.
	assert.Len(t, thresholds(q.calls, "child"), 5)
	assert.Len(t, thresholds(q.calls, "parent"), 5)
}

func TestSearch_FlatStrategyHasNoFallback(t *testing.T) {
	q := &mockQuerier{}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop(),
		WithStrategy(FlatSearch{}))

	assert.Empty(t, s.Search(context.Background(), "persona-a", "query"))
	assert.Len(t, thresholds(q.calls, "parent"), 5)
	assert.Empty(t, thresholds(q.calls, "child"))
}

func TestSearch_OptionsReachTheStore(t *testing.T) {
	q := &mockQuerier{}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop(),
		WithStrategy(FlatSearch{}))

	s.Search(context.Background(), "persona-b", "query",
		WithMatchCount(3), WithThreshold(0.80))

	require.NotEmpty(t, q.calls)
	first := q.calls[0]
	assert.Equal(t, "persona-b", first.namespaceID)
	assert.Equal(t, int32(3), first.matchCount)
	assert.Equal(t, 0.80, first.threshold)
	assert.Equal(t, []float64{0.80, 0.58, 0.50, 0.45, 0.35}, thresholds(q.calls, "parent"))
}

func TestSearch_NamespaceScopedOnEveryAttempt(t *testing.T) {
	q := &mockQuerier{}
	s := NewSearcher(q, &mockEmbedder{configured: true, vector: []float32{1, 0}}, log.NewNop())

	s.Search(context.Background(), "persona-a", "query")
	for _, call := range q.calls {
		assert.Equal(t, "persona-a", call.namespaceID)
	}
}
