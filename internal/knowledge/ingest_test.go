package knowledge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocoroai/sinr/internal/chunker"
	"github.com/cocoroai/sinr/internal/database"
	"github.com/cocoroai/sinr/internal/log"
)

// staticEmbedder returns a fixed vector. It keeps no state so it is
// safe under the Ingestor's concurrent parent processing.
type staticEmbedder struct {
	vector []float32
}

func (e *staticEmbedder) Configured() bool { return len(e.vector) > 0 }

func (e *staticEmbedder) Embed(context.Context, string) []float32 { return e.vector }

// mockIngestQuerier records inserts and can be scripted to fail.
// Safe for concurrent use: ingestion runs parents in parallel.
type mockIngestQuerier struct {
	mu        sync.Mutex
	documents []database.InsertDocumentParams
	chunks    []database.InsertChunkParams
	deleted   []string // "namespace/source"

	docErr          error
	chunkErrFor     func(database.InsertChunkParams) error
	deleteErr       error
	deletedDocCount int64
}

func (m *mockIngestQuerier) InsertDocument(_ context.Context, arg database.InsertDocumentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docErr != nil {
		return m.docErr
	}
	m.documents = append(m.documents, arg)
	return nil
}

func (m *mockIngestQuerier) InsertChunk(_ context.Context, arg database.InsertChunkParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunkErrFor != nil {
		if err := m.chunkErrFor(arg); err != nil {
			return err
		}
	}
	m.chunks = append(m.chunks, arg)
	return nil
}

func (m *mockIngestQuerier) DeleteDocumentsBySource(_ context.Context, namespaceID, sourceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleted = append(m.deleted, namespaceID+"/"+sourceID)
	return m.deletedDocCount, nil
}

func (m *mockIngestQuerier) parents() []database.InsertChunkParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.InsertChunkParams
	for _, c := range m.chunks {
		if c.ParentChunkID == nil {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockIngestQuerier) children() []database.InsertChunkParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.InsertChunkParams
	for _, c := range m.chunks {
		if c.ParentChunkID != nil {
			out = append(out, c)
		}
	}
	return out
}

func testParams(content string) IngestParams {
	return IngestParams{
		NamespaceID: "persona-a",
		SourceType:  SourceTypeManual,
		SourceID:    "lecture-01",
		Title:       "Lecture 1",
		Content:     content,
	}
}

func TestIngest_LinksChunksToDocumentAndParent(t *testing.T) {
	q := &mockIngestQuerier{}
	embedder := &staticEmbedder{vector: []float32{0.5, 0.5}}
	ing := NewIngestor(q, embedder, log.NewNop())

	content := strings.Repeat("abcdefghij", 200) // 2000 runes: 3 parents
	docID, report, err := ing.Ingest(context.Background(), testParams(content))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, docID)

	require.Len(t, q.documents, 1)
	assert.Equal(t, docID, q.documents[0].ID)
	assert.Equal(t, "persona-a", q.documents[0].NamespaceID)

	parents := q.parents()
	children := q.children()
	assert.Equal(t, 3, report.Parents)
	assert.Len(t, parents, 3)
	assert.Equal(t, 14, report.Children) // 5 + 5 + 4 at 200/50
	assert.Len(t, children, 14)
	assert.Zero(t, report.FailedParents)
	assert.Zero(t, report.FailedChildren)
	assert.Zero(t, report.MissingEmbeddings)

	parentIDs := make(map[uuid.UUID]bool, len(parents))
	for _, p := range parents {
		assert.Equal(t, docID, p.DocumentID)
		assert.Equal(t, "persona-a", p.NamespaceID)
		require.NotNil(t, p.Embedding)
		parentIDs[p.ID] = true
	}
	for _, c := range children {
		assert.Equal(t, docID, c.DocumentID)
		assert.True(t, parentIDs[*c.ParentChunkID], "child must reference an inserted parent")
		require.NotNil(t, c.Embedding)
	}
}

func TestIngest_DocumentInsertFailureIsFatal(t *testing.T) {
	q := &mockIngestQuerier{docErr: errors.New("permission denied")}
	ing := NewIngestor(q, &staticEmbedder{vector: []float32{1}}, log.NewNop())

	_, _, err := ing.Ingest(context.Background(), testParams("some content"))
	require.ErrorIs(t, err, ErrDocumentInsert)
	assert.Empty(t, q.chunks, "no orphan chunks after a fatal document insert")
}

func TestIngest_NoStore(t *testing.T) {
	ing := NewIngestor(nil, &staticEmbedder{vector: []float32{1}}, log.NewNop())
	_, _, err := ing.Ingest(context.Background(), testParams("content"))
	require.ErrorIs(t, err, ErrNoStore)
}

func TestIngest_ParentInsertFailureSkipsItsChildren(t *testing.T) {
	q := &mockIngestQuerier{}
	q.chunkErrFor = func(arg database.InsertChunkParams) error {
		// Fail the second parent only.
		if arg.ParentChunkID == nil && arg.ChunkIndex == 1 {
			return errors.New("disk full")
		}
		return nil
	}
	ing := NewIngestor(q, &staticEmbedder{vector: []float32{1}}, log.NewNop(),
		WithConcurrency(1))

	content := strings.Repeat("abcdefghij", 200) // 3 parents
	_, report, err := ing.Ingest(context.Background(), testParams(content))
	require.NoError(t, err, "per-chunk failures must not abort the document")

	assert.Equal(t, 2, report.Parents)
	assert.Equal(t, 1, report.FailedParents)
	assert.Equal(t, 9, report.Children, "the failed parent's five children are skipped")

	for _, c := range q.children() {
		for _, p := range q.parents() {
			if *c.ParentChunkID == p.ID {
				assert.NotEqual(t, int32(1), p.ChunkIndex)
			}
		}
	}
}

func TestIngest_ChildInsertFailureContinues(t *testing.T) {
	q := &mockIngestQuerier{}
	failed := false
	q.chunkErrFor = func(arg database.InsertChunkParams) error {
		if arg.ParentChunkID != nil && !failed {
			failed = true
			return errors.New("timeout")
		}
		return nil
	}
	ing := NewIngestor(q, &staticEmbedder{vector: []float32{1}}, log.NewNop(),
		WithConcurrency(1))

	content := strings.Repeat("abcdefghij", 80) // 800 runes: 1 parent, 5 children
	_, report, err := ing.Ingest(context.Background(), testParams(content))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Parents)
	assert.Equal(t, 4, report.Children)
	assert.Equal(t, 1, report.FailedChildren)
}

func TestIngest_MissingEmbeddingStoresNullVector(t *testing.T) {
	q := &mockIngestQuerier{}
	ing := NewIngestor(q, &staticEmbedder{}, log.NewNop())

	_, report, err := ing.Ingest(context.Background(), testParams("short content"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Parents)
	assert.Equal(t, 1, report.Children)
	assert.Equal(t, 2, report.MissingEmbeddings)
	for _, c := range q.chunks {
		assert.Nil(t, c.Embedding, "failed embeddings are stored as NULL")
	}
}

func TestIngest_EmptyContentYieldsDocumentWithoutChunks(t *testing.T) {
	q := &mockIngestQuerier{}
	ing := NewIngestor(q, &staticEmbedder{vector: []float32{1}}, log.NewNop())

	docID, report, err := ing.Ingest(context.Background(), testParams("   "))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, docID)
	assert.Len(t, q.documents, 1)
	assert.Empty(t, q.chunks)
	assert.Equal(t, Report{}, report)
}

func TestIngest_FlatWindowConfiguration(t *testing.T) {
	q := &mockIngestQuerier{}
	ing := NewIngestor(q, &staticEmbedder{vector: []float32{1}}, log.NewNop(),
		WithChunking(chunker.FlatOptions()))

	content := strings.Repeat("abcdefghij", 120) // 1200 runes at 600/50: windows at 0, 550, 1100
	_, report, err := ing.Ingest(context.Background(), testParams(content))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Parents)
}

func TestIngest_InvalidChunkConfiguration(t *testing.T) {
	ing := NewIngestor(&mockIngestQuerier{}, &staticEmbedder{vector: []float32{1}}, log.NewNop(),
		WithChunking(chunker.Options{ParentSize: 100, ParentOverlap: 100, ChildSize: 200, ChildOverlap: 50}))

	_, _, err := ing.Ingest(context.Background(), testParams("content"))
	require.ErrorIs(t, err, chunker.ErrOverlap)
}

func TestReplace_ClearsPreviousSourceFirst(t *testing.T) {
	q := &mockIngestQuerier{deletedDocCount: 2}
	ing := NewIngestor(q, &staticEmbedder{vector: []float32{1}}, log.NewNop())

	_, _, err := ing.Replace(context.Background(), testParams("fresh content"))
	require.NoError(t, err)
	assert.Equal(t, []string{"persona-a/lecture-01"}, q.deleted)
	assert.Len(t, q.documents, 1)
}

func TestReplace_DeleteFailureIsFatal(t *testing.T) {
	q := &mockIngestQuerier{deleteErr: errors.New("lock timeout")}
	ing := NewIngestor(q, &staticEmbedder{vector: []float32{1}}, log.NewNop())

	_, _, err := ing.Replace(context.Background(), testParams("content"))
	require.Error(t, err)
	assert.Empty(t, q.documents, "no insert after a failed clear")
}
