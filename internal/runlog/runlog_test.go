package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/service"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(id string, started time.Time) *service.RunReport {
	return &service.RunReport{
		RunID:              id,
		Tier:               "free",
		StartedAt:          started,
		FinishedAt:         started.Add(2 * time.Second),
		Processed:          1,
		Skipped:            1,
		TotalChunksIndexed: 4,
		PeakHeapBytes:      12 << 20,
		Documents: []service.DocumentOutcome{
			{DocumentID: "a", DisplayName: "a.txt", Status: service.StatusIndexed, Chunks: 4, PagesDropped: 1},
			{DocumentID: "b", DisplayName: "b.txt", Status: service.StatusSkipped, Reason: service.ReasonFileTooLarge},
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, report("run-1", base)))
	second := report("run-2", base.Add(time.Hour))
	second.Cancelled = true
	second.Documents = nil
	require.NoError(t, s.Record(ctx, second))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "run-2", got[0].RunID)
	assert.True(t, got[0].Cancelled)
	assert.Empty(t, got[0].Documents)

	first := got[1]
	want := report("run-1", base)
	assert.Equal(t, want.RunID, first.RunID)
	assert.True(t, want.StartedAt.Equal(first.StartedAt))
	assert.True(t, want.FinishedAt.Equal(first.FinishedAt))
	assert.Equal(t, want.Processed, first.Processed)
	assert.Equal(t, want.Skipped, first.Skipped)
	assert.Equal(t, want.TotalChunksIndexed, first.TotalChunksIndexed)
	assert.Equal(t, want.PeakHeapBytes, first.PeakHeapBytes)
	assert.Equal(t, want.Documents, first.Documents)
}

func TestRecent_Limit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Record(ctx, report(id, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r3", got[0].RunID)
	assert.Equal(t, "r2", got[1].RunID)
}

func TestRecord_DuplicateRunRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := report("dup", time.Now())

	require.NoError(t, s.Record(ctx, r))
	assert.Error(t, s.Record(ctx, r))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Documents, 2)
}

func TestOpen_ReopensExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), report("keep", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].RunID)
	assert.Equal(t, path, s.Path())
}
