package domain

// Page is one page of extracted text, numbered from 1 in extraction order.
type Page struct {
	Number int
	Text   string
}

// SourceDocument is a single uploaded file after text extraction.
// It is owned by the ingestion run and discarded once its chunks are indexed.
type SourceDocument struct {
	ID          string
	DisplayName string
	ByteSize    int64
	Pages       []Page
}

// ByteRange is a half-open [Start, End) byte range into a page's text.
type ByteRange struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int { return r.End - r.Start }

// Chunk is a bounded span of a page's text, the unit of indexing and retrieval.
type Chunk struct {
	ID             string
	DocumentID     string
	PageNumber     int
	SequenceInPage int
	Text           string
	Offsets        ByteRange
}

// Vector is a fixed-dimension embedding.
type Vector []float32

// IndexEntry pairs a stored vector with the chunk it was computed from.
type IndexEntry struct {
	Vector Vector
	Chunk  Chunk
}

// RetrievalResult represents a matching chunk with a relevance score.
type RetrievalResult struct {
	Chunk Chunk
	Score float64
}
