package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/logger"
	"docrag/internal/vectorstore"
)

// DefaultDelimiter separates chunks in an assembled context.
const DefaultDelimiter = "\n\n---\n\n"

// Context is an assembled prompt context and the chunks it was built from.
type Context struct {
	Text    string
	Sources []domain.RetrievalResult
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithDelimiter replaces DefaultDelimiter.
func WithDelimiter(d string) AssemblerOption {
	return func(a *Assembler) { a.delimiter = d }
}

// Assembler builds bounded contexts from the nearest chunks to a query.
// It only reads the index and is safe for concurrent use.
type Assembler struct {
	embedder  embedding.Embedder
	index     vectorstore.Searcher
	delimiter string
}

// NewAssembler returns an assembler reading from index.
func NewAssembler(e embedding.Embedder, index vectorstore.Searcher, opts ...AssemblerOption) *Assembler {
	a := &Assembler{embedder: embedding.Bounded(e, 1), index: index, delimiter: DefaultDelimiter}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble embeds query, retrieves up to k chunks and joins them best first
// until the next chunk would push the text past maxChars runes. Chunks are
// included whole, except that a top chunk longer than maxChars is cut to fit.
// Delimiters count toward maxChars. Sources lists exactly the included chunks.
func (a *Assembler) Assemble(ctx context.Context, query string, k, maxChars int) (Context, error) {
	if strings.TrimSpace(query) == "" || k <= 0 || maxChars <= 0 || a.index.Len() == 0 {
		return Context{}, nil
	}

	vecs, err := a.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return Context{}, fmt.Errorf("assemble: %w", err)
	}
	results, err := a.index.Search(vecs[0], k)
	if err != nil {
		return Context{}, fmt.Errorf("assemble: %w", err)
	}
	if len(results) == 0 {
		return Context{}, nil
	}

	var sb strings.Builder
	used := 0
	delim := utf8.RuneCountInString(a.delimiter)
	var sources []domain.RetrievalResult
	for i, r := range results {
		n := utf8.RuneCountInString(r.Chunk.Text)
		if i == 0 {
			if n > maxChars {
				sb.WriteString(truncateRunes(r.Chunk.Text, maxChars))
				used = maxChars
				sources = append(sources, r)
				logger.Debug("top chunk truncated", "chunk", r.Chunk.ID, "chars", n, "limit", maxChars)
				break
			}
			sb.WriteString(r.Chunk.Text)
			used = n
			sources = append(sources, r)
			continue
		}
		if used+delim+n > maxChars {
			break
		}
		sb.WriteString(a.delimiter)
		sb.WriteString(r.Chunk.Text)
		used += delim + n
		sources = append(sources, r)
	}
	logger.Debug("context assembled", "retrieved", len(results), "used", len(sources), "chars", used)
	return Context{Text: sb.String(), Sources: sources}, nil
}

// AssembleContext is Assemble without provenance.
func (a *Assembler) AssembleContext(ctx context.Context, query string, k, maxChars int) (string, error) {
	c, err := a.Assemble(ctx, query, k, maxChars)
	return c.Text, err
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
