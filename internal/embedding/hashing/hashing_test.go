package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func dot(a, b domain.Vector) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedBatch_Deterministic(t *testing.T) {
	e := NewEmbedder(64)
	ctx := context.Background()

	a, err := e.EmbedBatch(ctx, []string{"Rent is due on the first day of each month"})
	require.NoError(t, err)
	b, err := e.EmbedBatch(ctx, []string{"Rent is due on the first day of each month"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a[0], 64)
}

func TestEmbedBatch_UnitNorm(t *testing.T) {
	e := NewEmbedder(0)
	require.Equal(t, DefaultDimension, e.Dimension())

	vecs, err := e.EmbedBatch(context.Background(), []string{"tenant landlord deposit", "termination notice period"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		assert.InDelta(t, 1.0, math.Sqrt(dot(v, v)), 1e-5)
	}
}

func TestEmbedBatch_SimilarTextScoresHigher(t *testing.T) {
	e := NewEmbedder(256)
	vecs, err := e.EmbedBatch(context.Background(), []string{
		"security deposit refund",
		"the security deposit is refunded after inspection",
		"quarterly revenue grew in the northern region",
	})
	require.NoError(t, err)

	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestEmbedBatch_StopwordsOnlyIsZeroVector(t *testing.T) {
	e := NewEmbedder(32)
	vecs, err := e.EmbedBatch(context.Background(), []string{"the and of"})
	require.NoError(t, err)
	assert.Zero(t, dot(vecs[0], vecs[0]))
}

func TestEmbedBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
