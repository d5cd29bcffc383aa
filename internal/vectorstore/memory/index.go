// Package memory implements a flat in-process vector index with exact
// inner-product search and two-file persistence.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"docrag/internal/domain"
)

// Index is a brute-force inner-product index. Vectors are expected to be
// L2-normalized, which makes the score a cosine similarity.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   []domain.Vector
	chunks    []domain.Chunk
}

// NewIndex returns an empty index. A zero dimension is fixed by the first append.
func NewIndex(dimension int) *Index {
	if dimension < 0 {
		dimension = 0
	}
	return &Index{dimension: dimension}
}

// Append adds all entries or none. Entries keep their order as positions.
func (x *Index) Append(entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for i, e := range entries {
		if len(e.Vector) != dim || dim == 0 {
			return &domain.IndexError{
				Op:  "append",
				Err: fmt.Errorf("%w: entry %d (%s) has %d, index has %d", domain.ErrDimensionMismatch, i, e.Chunk.ID, len(e.Vector), dim),
			}
		}
	}
	x.dimension = dim
	for _, e := range entries {
		x.vectors = append(x.vectors, e.Vector)
		x.chunks = append(x.chunks, e.Chunk)
	}
	return nil
}

// Search returns the k entries with the highest inner product against query,
// best first. Equal scores keep insertion order.
func (x *Index) Search(query domain.Vector, k int) ([]domain.RetrievalResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.vectors)
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if len(query) != x.dimension {
		return nil, &domain.IndexError{
			Op:  "search",
			Err: fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), x.dimension),
		}
	}

	scores := make([]float64, n)
	order := make([]int, n)
	for i, v := range x.vectors {
		scores[i] = dot(v, query)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	if k > n {
		k = n
	}
	results := make([]domain.RetrievalResult, k)
	for i := 0; i < k; i++ {
		j := order[i]
		results[i] = domain.RetrievalResult{Chunk: x.chunks[j], Score: scores[j]}
	}
	return results, nil
}

// RemoveDocument drops every entry of the document and returns how many were removed.
func (x *Index) RemoveDocument(documentID string) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	kept := 0
	for i := range x.chunks {
		if x.chunks[i].DocumentID == documentID {
			continue
		}
		x.chunks[kept] = x.chunks[i]
		x.vectors[kept] = x.vectors[i]
		kept++
	}
	removed := len(x.chunks) - kept
	clear(x.chunks[kept:])
	clear(x.vectors[kept:])
	x.chunks = x.chunks[:kept]
	x.vectors = x.vectors[:kept]
	return removed
}

// Len returns the number of stored entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Dimension returns the vector dimension, or 0 if not yet fixed.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimension
}

// DocumentSummary describes one document held in the index.
type DocumentSummary struct {
	ID     string `json:"document_id"`
	Chunks int    `json:"chunks"`
	Pages  int    `json:"pages"`
}

// Documents lists the indexed documents in order of first appearance.
func (x *Index) Documents() []DocumentSummary {
	x.mu.RLock()
	defer x.mu.RUnlock()
	pos := make(map[string]int)
	pages := make(map[string]map[int]struct{})
	var docs []DocumentSummary
	for _, c := range x.chunks {
		i, ok := pos[c.DocumentID]
		if !ok {
			i = len(docs)
			pos[c.DocumentID] = i
			pages[c.DocumentID] = make(map[int]struct{})
			docs = append(docs, DocumentSummary{ID: c.DocumentID})
		}
		docs[i].Chunks++
		pages[c.DocumentID][c.PageNumber] = struct{}{}
	}
	for i := range docs {
		docs[i].Pages = len(pages[docs[i].ID])
	}
	return docs
}

func dot(a, b domain.Vector) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
