package memory

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func populated(t *testing.T) *Index {
	t.Helper()
	x := NewIndex(3)
	e := entry("doc", 2, 0.25, -0.5, 1)
	e.Chunk.Text = "naïve \"quoted\" <tag> text"
	require.NoError(t, x.Append([]domain.IndexEntry{entry("doc", 0, 1, 0, 0), entry("doc", 1, 0, 1, 0), e}))
	return x
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	x := populated(t)
	require.NoError(t, x.Persist(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, x.Dimension(), loaded.Dimension())
	assert.Equal(t, x.vectors, loaded.vectors)
	assert.Equal(t, x.chunks, loaded.chunks)

	q := domain.Vector{0.2, 0.3, 0.9}
	want, err := x.Search(q, 3)
	require.NoError(t, err)
	got, err := loaded.Search(q, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPersist_Idempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, populated(t).Persist(dir))
	first, err := os.ReadFile(filepath.Join(dir, VectorsFile))
	require.NoError(t, err)
	firstChunks, err := os.ReadFile(filepath.Join(dir, ChunksFile))
	require.NoError(t, err)

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, loaded.Persist(dir))

	second, err := os.ReadFile(filepath.Join(dir, VectorsFile))
	require.NoError(t, err)
	secondChunks, err := os.ReadFile(filepath.Join(dir, ChunksFile))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstChunks, secondChunks)

	_, err = os.Stat(filepath.Join(dir, VectorsFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestPersistLoad_EmptyIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewIndex(8).Persist(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, 8, loaded.Dimension())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))

	var idxErr *domain.IndexError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, "load", idxErr.Op)
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(t *testing.T, dir string)
	}{
		{"bad magic", func(t *testing.T, dir string) {
			p := filepath.Join(dir, VectorsFile)
			b, err := os.ReadFile(p)
			require.NoError(t, err)
			copy(b, "XXXX")
			require.NoError(t, os.WriteFile(p, b, 0o644))
		}},
		{"truncated vectors", func(t *testing.T, dir string) {
			p := filepath.Join(dir, VectorsFile)
			b, err := os.ReadFile(p)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(p, b[:len(b)-3], 0o644))
		}},
		{"short header", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), []byte("DRVX"), 0o644))
		}},
		{"oversized dimension", func(t *testing.T, dir string) {
			b := make([]byte, headerSize)
			copy(b, "DRVX")
			binary.LittleEndian.PutUint32(b[4:], formatVersion)
			binary.LittleEndian.PutUint32(b[8:], 0xFFFFFFFF)
			require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), b, 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, ChunksFile), nil, 0o644))
		}},
		{"malformed chunk line", func(t *testing.T, dir string) {
			p := filepath.Join(dir, ChunksFile)
			b, err := os.ReadFile(p)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(p, append(b, []byte("{not json\n")...), 0o644))
		}},
		{"count mismatch", func(t *testing.T, dir string) {
			p := filepath.Join(dir, ChunksFile)
			b, err := os.ReadFile(p)
			require.NoError(t, err)
			lines := 0
			cut := 0
			for i, c := range b {
				if c == '\n' {
					lines++
					if lines == 2 {
						cut = i + 1
					}
				}
			}
			require.NoError(t, os.WriteFile(p, b[:cut], 0o644))
		}},
		{"missing chunks file", func(t *testing.T, dir string) {
			require.NoError(t, os.Remove(filepath.Join(dir, ChunksFile)))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, populated(t).Persist(dir))
			tc.mutate(t, dir)

			assert.NotPanics(t, func() {
				_, err := Load(dir)
				if tc.name == "missing chunks file" {
					assert.ErrorIs(t, err, domain.ErrIndexNotFound)
					return
				}
				assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
			})
		})
	}
}
