package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"docrag/internal/domain"
)

// maxLookback caps how far back (in runes) a span end may move to reach whitespace.
const maxLookback = 32

// PageChunker splits page text into bounded, non-overlapping chunks.
type PageChunker struct {
	profile domain.LimitProfile
}

// New returns a chunker bound to the profile's chunk size and per-page cap.
func New(profile domain.LimitProfile) *PageChunker {
	return &PageChunker{profile: profile}
}

// ChunkPage returns at most MaxChunksPerPage chunks for the page, in text order.
// Text past the last kept chunk is dropped.
func (c *PageChunker) ChunkPage(documentID string, page domain.Page) []domain.Chunk {
	spans := Split(page.Text, c.profile)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, len(spans))
	for i, r := range spans {
		chunks[i] = domain.Chunk{
			ID:             ChunkID(documentID, page.Number, i),
			DocumentID:     documentID,
			PageNumber:     page.Number,
			SequenceInPage: i,
			Text:           page.Text[r.Start:r.End],
			Offsets:        r,
		}
	}
	return chunks
}

// ChunkID is the deterministic identifier of the seq-th chunk of a page.
func ChunkID(documentID string, page, seq int) string {
	return fmt.Sprintf("%s:p%d:c%d", documentID, page, seq)
}

// Split cuts text into consecutive spans of at most ChunkSizeChars runes and
// returns the byte ranges of their whitespace-trimmed contents. Spans end on
// whitespace when one is available within the lookback window. Whitespace-only
// spans are omitted. At most MaxChunksPerPage ranges are returned.
func Split(text string, profile domain.LimitProfile) []domain.ByteRange {
	size, limit := profile.ChunkSizeChars, profile.MaxChunksPerPage
	if size <= 0 || limit <= 0 || text == "" {
		return nil
	}
	lookback := min(maxLookback, size/4)

	var spans []domain.ByteRange
	pos := 0
	for pos < len(text) && len(spans) < limit {
		end := advance(text, pos, size)
		if end < len(text) && lookback > 0 {
			end = wordBoundary(text, pos, end, lookback)
		}
		if r := trimRange(text, pos, end); r.Len() > 0 {
			spans = append(spans, r)
		}
		pos = end
	}
	return spans
}

// advance returns the byte offset n runes after pos, or len(text).
func advance(text string, pos, n int) int {
	for i := 0; i < n && pos < len(text); i++ {
		_, w := utf8.DecodeRuneInString(text[pos:])
		pos += w
	}
	return pos
}

// wordBoundary moves end back to the nearest whitespace within lookback runes
// when end would otherwise fall inside a word. It never returns start.
func wordBoundary(text string, start, end, lookback int) int {
	next, _ := utf8.DecodeRuneInString(text[end:])
	prev, _ := utf8.DecodeLastRuneInString(text[start:end])
	if unicode.IsSpace(next) || unicode.IsSpace(prev) {
		return end
	}
	cut := end
	for i := 0; i < lookback; i++ {
		r, w := utf8.DecodeLastRuneInString(text[start:cut])
		if cut-w <= start {
			break
		}
		cut -= w
		if unicode.IsSpace(r) {
			return cut
		}
	}
	return end
}

func trimRange(text string, start, end int) domain.ByteRange {
	s := text[start:end]
	lead := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	trail := len(s) - len(strings.TrimRightFunc(s, unicode.IsSpace))
	if lead == len(s) {
		return domain.ByteRange{Start: end, End: end}
	}
	return domain.ByteRange{Start: start + lead, End: end - trail}
}
