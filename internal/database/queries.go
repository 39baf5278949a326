package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx, so the
// same queries run inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries exposes the parameterized statements over the retrieval schema.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given connection source.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const insertDocument = `
INSERT INTO rag_documents (id, namespace_id, source_type, source_id, title, content)
VALUES ($1, $2, $3, $4, $5, $6)
`

// InsertDocumentParams holds the column values for a new document row.
type InsertDocumentParams struct {
	ID          uuid.UUID
	NamespaceID string
	SourceType  string
	SourceID    string
	Title       string
	Content     string
}

// InsertDocument inserts one document row.
func (q *Queries) InsertDocument(ctx context.Context, arg InsertDocumentParams) error {
	_, err := q.db.Exec(ctx, insertDocument,
		arg.ID, arg.NamespaceID, arg.SourceType, arg.SourceID, arg.Title, arg.Content)
	return err
}

const insertChunk = `
INSERT INTO rag_chunks (id, document_id, parent_chunk_id, namespace_id, chunk_text, chunk_index, embedding, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// InsertChunkParams holds the column values for a new chunk row.
// ParentChunkID is nil for parent (top-level) chunks; Embedding is nil
// when embedding generation failed, stored as SQL NULL so the text
// stays available for parent resolution.
type InsertChunkParams struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	ParentChunkID *uuid.UUID
	NamespaceID   string
	ChunkText     string
	ChunkIndex    int32
	Embedding     *pgvector.Vector
	Metadata      []byte
}

// InsertChunk inserts one chunk row.
func (q *Queries) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	_, err := q.db.Exec(ctx, insertChunk,
		arg.ID, arg.DocumentID, arg.ParentChunkID, arg.NamespaceID,
		arg.ChunkText, arg.ChunkIndex, arg.Embedding, arg.Metadata)
	return err
}

const matchParentChunks = `
SELECT id, document_id, parent_chunk_id, chunk_text,
       1 - (embedding <=> $2) AS similarity
FROM rag_chunks
WHERE namespace_id = $1
  AND parent_chunk_id IS NULL
  AND embedding IS NOT NULL
  AND 1 - (embedding <=> $2) >= $3
ORDER BY embedding <=> $2
LIMIT $4
`

// MatchParentChunksParams scopes a flat nearest-neighbor query.
type MatchParentChunksParams struct {
	NamespaceID         string
	QueryEmbedding      *pgvector.Vector
	SimilarityThreshold float64
	MatchCount          int32
}

// MatchParentChunksRow is one flat search hit.
type MatchParentChunksRow struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	ParentChunkID *uuid.UUID
	ChunkText     string
	Similarity    float64
}

// MatchParentChunks runs cosine nearest-neighbor search over parent
// chunk embeddings within one namespace, ordered by descending
// similarity. Namespace isolation lives in the WHERE predicate, not in
// client-side filtering.
func (q *Queries) MatchParentChunks(ctx context.Context, arg MatchParentChunksParams) ([]MatchParentChunksRow, error) {
	rows, err := q.db.Query(ctx, matchParentChunks,
		arg.NamespaceID, arg.QueryEmbedding, arg.SimilarityThreshold, arg.MatchCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MatchParentChunksRow
	for rows.Next() {
		var r MatchParentChunksRow
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ParentChunkID, &r.ChunkText, &r.Similarity); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const matchChildChunks = `
SELECT c.id, c.document_id, c.parent_chunk_id, p.chunk_text AS parent_text,
       1 - (c.embedding <=> $2) AS similarity
FROM rag_chunks c
JOIN rag_chunks p ON p.id = c.parent_chunk_id
WHERE c.namespace_id = $1
  AND c.parent_chunk_id IS NOT NULL
  AND c.embedding IS NOT NULL
  AND 1 - (c.embedding <=> $2) >= $3
ORDER BY c.embedding <=> $2
LIMIT $4
`

// MatchChildChunksParams scopes a hierarchical nearest-neighbor query.
type MatchChildChunksParams struct {
	NamespaceID         string
	QueryEmbedding      *pgvector.Vector
	SimilarityThreshold float64
	MatchCount          int32
}

// MatchChildChunksRow is one hierarchical search hit: similarity is
// measured against the child embedding, ParentText carries the parent
// chunk's full content.
type MatchChildChunksRow struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	ParentChunkID uuid.UUID
	ParentText    string
	Similarity    float64
}

// MatchChildChunks runs cosine nearest-neighbor search over child
// chunk embeddings within one namespace and resolves each hit to its
// parent's content in the same statement.
func (q *Queries) MatchChildChunks(ctx context.Context, arg MatchChildChunksParams) ([]MatchChildChunksRow, error) {
	rows, err := q.db.Query(ctx, matchChildChunks,
		arg.NamespaceID, arg.QueryEmbedding, arg.SimilarityThreshold, arg.MatchCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MatchChildChunksRow
	for rows.Next() {
		var r MatchChildChunksRow
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ParentChunkID, &r.ParentText, &r.Similarity); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const deleteDocumentsBySource = `
DELETE FROM rag_documents
WHERE namespace_id = $1 AND source_id = $2
`

// DeleteDocumentsBySource removes all documents for one (namespace,
// source) pair; chunk rows follow via ON DELETE CASCADE. Returns the
// number of documents removed.
func (q *Queries) DeleteDocumentsBySource(ctx context.Context, namespaceID, sourceID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocumentsBySource, namespaceID, sourceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countChunks = `
SELECT COUNT(*) FROM rag_chunks WHERE namespace_id = $1
`

// CountChunks returns the number of chunk rows in a namespace.
func (q *Queries) CountChunks(ctx context.Context, namespaceID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countChunks, namespaceID).Scan(&count)
	return count, err
}

const countDocuments = `
SELECT COUNT(*) FROM rag_documents WHERE namespace_id = $1
`

// CountDocuments returns the number of document rows in a namespace.
func (q *Queries) CountDocuments(ctx context.Context, namespaceID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countDocuments, namespaceID).Scan(&count)
	return count, err
}

const listDocuments = `
SELECT id, namespace_id, source_type, source_id, title, created_at
FROM rag_documents
WHERE namespace_id = $1
ORDER BY created_at DESC
LIMIT $2
`

// ListDocumentsRow is one document summary, without content.
type ListDocumentsRow struct {
	ID          uuid.UUID
	NamespaceID string
	SourceType  string
	SourceID    string
	Title       string
	CreatedAt   time.Time
}

// ListDocuments lists a namespace's documents, newest first.
func (q *Queries) ListDocuments(ctx context.Context, namespaceID string, limit int32) ([]ListDocumentsRow, error) {
	rows, err := q.db.Query(ctx, listDocuments, namespaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListDocumentsRow
	for rows.Next() {
		var r ListDocumentsRow
		if err := rows.Scan(&r.ID, &r.NamespaceID, &r.SourceType, &r.SourceID, &r.Title, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
