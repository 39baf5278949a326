// Package knowledge implements the retrieval engine: document
// ingestion into a two-level chunk hierarchy and similarity search
// over the stored embeddings.
//
// # Architecture
//
// Ingestion (offline/batch):
//
//	raw document
//	     |
//	     v
//	chunker.Hierarchy (parent windows, child windows)
//	     |
//	     v
//	embedding per chunk (fail-soft)
//	     |
//	     v
//	rag_documents / rag_chunks rows (PostgreSQL + pgvector)
//
// Search (online, per query):
//
//	query text -> query embedding -> threshold ladder over the vector
//	store -> [child hits resolved to parent content] -> ranked matches
//
// Assemble formats ranked matches into a labeled context block for
// prompt injection.
//
// # Strategies
//
// Two retrieval strategies exist, fixed at construction time:
//
//   - FlatSearch matches parent-level embeddings directly.
//   - HierarchicalSearch (SINR) matches child-level embeddings and
//     returns the parent's content; when its ladder is exhausted it
//     falls back to FlatSearch.
//
// # Degradation contract
//
// The search path never returns an error. Missing configuration,
// embedding failures and store errors all degrade to an empty result,
// distinguishable internally through Metrics counters and structured
// logs. Ingestion is the opposite: a document insert failure is fatal,
// while per-chunk failures below it are best-effort and reported.
//
// Both Ingestor and Searcher depend on consumer-defined interfaces
// (IngestQuerier, SearchQuerier, Embedder) so tests substitute fakes
// without global state; production wires *database.Queries and
// *embedding.Client.
package knowledge
