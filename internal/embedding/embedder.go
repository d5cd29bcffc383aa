package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"docrag/internal/domain"
)

// Embedder converts a batch of non-empty texts into fixed-dimension vectors.
// The i-th output vector corresponds to the i-th input text.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error)
}

// BoundedEmbedder enforces the batch contract on top of any backend. Every
// failure it returns is a *domain.EmbeddingError.
type BoundedEmbedder struct {
	inner     Embedder
	batchSize int
}

// Bounded wraps e so that no call exceeds batchSize texts.
func Bounded(e Embedder, batchSize int) *BoundedEmbedder {
	return &BoundedEmbedder{inner: e, batchSize: batchSize}
}

func (b *BoundedEmbedder) Name() string { return b.inner.Name() }

func (b *BoundedEmbedder) Dimension() int { return b.inner.Dimension() }

// BatchSize returns the largest batch accepted by EmbedBatch.
func (b *BoundedEmbedder) BatchSize() int { return b.batchSize }

// EmbedBatch validates the input, calls the backend and validates its output.
func (b *BoundedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b.batchSize > 0 && len(texts) > b.batchSize {
		return nil, &domain.EmbeddingError{Reason: fmt.Sprintf("batch of %d exceeds limit %d", len(texts), b.batchSize)}
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &domain.EmbeddingError{Reason: fmt.Sprintf("text %d is empty", i)}
		}
	}
	vecs, err := b.inner.EmbedBatch(ctx, texts)
	if err != nil {
		var embErr *domain.EmbeddingError
		if errors.As(err, &embErr) {
			return nil, err
		}
		return nil, &domain.EmbeddingError{Reason: b.inner.Name() + " backend", Err: err}
	}
	if len(vecs) != len(texts) {
		return nil, &domain.EmbeddingError{Reason: fmt.Sprintf("backend returned %d vectors for %d texts", len(vecs), len(texts))}
	}
	if dim := b.inner.Dimension(); dim > 0 {
		for i, v := range vecs {
			if len(v) != dim {
				return nil, &domain.EmbeddingError{Reason: fmt.Sprintf("vector %d has dimension %d, want %d", i, len(v), dim)}
			}
		}
	}
	return vecs, nil
}

// Normalize scales v to unit L2 norm in place. A zero vector is left as is.
func Normalize(v domain.Vector) domain.Vector {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
