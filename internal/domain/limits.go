package domain

import "fmt"

// LimitProfile is a named set of ingestion ceilings for a deployment tier.
// Profiles are plain values: construct once, pass explicitly.
type LimitProfile struct {
	Name             string `yaml:"-"`
	MaxFileSizeBytes int64  `yaml:"max_file_size_bytes"`
	MaxPages         int    `yaml:"max_pages"`
	MaxChunksTotal   int    `yaml:"max_chunks_total"`
	MaxChunksPerPage int    `yaml:"max_chunks_per_page"`
	ChunkSizeChars   int    `yaml:"chunk_size_chars"`
	BatchSize        int    `yaml:"batch_size"`
}

// Validate reports an error wrapping ErrInvalidProfile unless every limit is positive.
func (p LimitProfile) Validate() error {
	checks := []struct {
		name  string
		value int64
	}{
		{"max_file_size_bytes", p.MaxFileSizeBytes},
		{"max_pages", int64(p.MaxPages)},
		{"max_chunks_total", int64(p.MaxChunksTotal)},
		{"max_chunks_per_page", int64(p.MaxChunksPerPage)},
		{"chunk_size_chars", int64(p.ChunkSizeChars)},
		{"batch_size", int64(p.BatchSize)},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %d", ErrInvalidProfile, c.name, c.value)
		}
	}
	return nil
}
