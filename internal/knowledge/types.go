package knowledge

import (
	"github.com/google/uuid"
)

// Source type constants for knowledge documents. The column is
// free-text provenance; these cover the sources the CLI produces.
const (
	// SourceTypeManual represents directly supplied text.
	SourceTypeManual = "manual"

	// SourceTypeFile represents ingested local file content.
	SourceTypeFile = "file"

	// SourceTypeURL represents article text extracted from a web page.
	SourceTypeURL = "url"
)

// Match is one retrieval hit. Content is always prompt-ready: for
// hierarchical search it carries the parent chunk's full text even
// though similarity was measured against a child embedding.
// Matches are ephemeral per-query values, never persisted.
type Match struct {
	// ChunkID identifies the chunk the vector store matched.
	ChunkID uuid.UUID

	// DocumentID identifies the owning document.
	DocumentID uuid.UUID

	// ParentChunkID is set when the match originated at a child chunk.
	ParentChunkID *uuid.UUID

	// Content is the resolved chunk text.
	Content string

	// Similarity is the cosine similarity of the matched embedding,
	// reported non-negative in this domain.
	Similarity float64
}
