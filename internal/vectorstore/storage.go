package vectorstore

import "docrag/internal/domain"

// Searcher is the read side of an index, used by retrieval.
type Searcher interface {
	Search(query domain.Vector, k int) ([]domain.RetrievalResult, error)
	Len() int
}

// Index is the single mutable store shared by ingestion and retrieval.
// Append is atomic per call; readers never observe a partial batch.
type Index interface {
	Searcher
	Append(entries []domain.IndexEntry) error
	RemoveDocument(documentID string) int
	Dimension() int
	Persist(dir string) error
}
