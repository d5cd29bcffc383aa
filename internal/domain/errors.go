package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTier is returned when a tier selector names no profile.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrInvalidProfile is returned when a profile has a non-positive limit.
	ErrInvalidProfile = errors.New("invalid limit profile")
	// ErrDuplicateProfile is returned when two custom profile names differ only in case.
	ErrDuplicateProfile = errors.New("duplicate profile name")

	// ErrIndexNotFound means no persisted index exists at the given location.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexCorrupt means persisted index files exist but cannot be decoded.
	ErrIndexCorrupt = errors.New("index corrupt")
	// ErrDimensionMismatch means a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbedding is the root of every embedding failure.
	ErrEmbedding = errors.New("embedding failed")
)

// ConfigError is fatal at startup: the configured tier cannot be resolved.
type ConfigError struct {
	Tier string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: tier %q: %v", e.Tier, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IndexError wraps one of ErrIndexNotFound, ErrIndexCorrupt or ErrDimensionMismatch,
// or an I/O failure during persist.
type IndexError struct {
	Op   string
	Path string
	Err  error
}

func (e *IndexError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("index %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("index %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// EmbeddingError reports malformed embedder input or an unavailable backend.
// It matches ErrEmbedding under errors.Is.
type EmbeddingError struct {
	Reason string
	Err    error
}

func (e *EmbeddingError) Error() string {
	if e.Err == nil {
		return "embedding: " + e.Reason
	}
	return fmt.Sprintf("embedding: %s: %v", e.Reason, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }
