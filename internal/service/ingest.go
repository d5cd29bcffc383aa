package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrag/internal/chunker"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/logger"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/memory"
)

// ErrRunInProgress is returned when the index is already held by another writer.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Status is the terminal state of one document in a run.
type Status string

const (
	StatusIndexed Status = "indexed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Skip reasons. Skips are policy outcomes, not errors.
const (
	ReasonFileTooLarge    = "file too large"
	ReasonBudgetExhausted = "chunk budget exhausted"
)

// DocumentOutcome records what happened to one submitted document.
type DocumentOutcome struct {
	DocumentID    string `json:"document_id"`
	DisplayName   string `json:"display_name"`
	Status        Status `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Chunks        int    `json:"chunks"`
	PagesDropped  int    `json:"pages_dropped,omitempty"`
	ChunksDropped int    `json:"chunks_dropped,omitempty"`
}

// RunReport summarizes one ingestion run. Processed counts indexed documents.
type RunReport struct {
	RunID              string            `json:"run_id"`
	Tier               string            `json:"tier"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         time.Time         `json:"finished_at"`
	Processed          int               `json:"processed"`
	Skipped            int               `json:"skipped"`
	Failed             int               `json:"failed"`
	TotalChunksIndexed int               `json:"total_chunks_indexed"`
	Cancelled          bool              `json:"cancelled"`
	PeakHeapBytes      uint64            `json:"peak_heap_bytes"`
	Documents          []DocumentOutcome `json:"documents"`
}

func (r *RunReport) add(o DocumentOutcome) {
	switch o.Status {
	case StatusIndexed:
		r.Processed++
		r.TotalChunksIndexed += o.Chunks
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
	r.Documents = append(r.Documents, o)
}

// RunRecorder stores finished run reports.
type RunRecorder interface {
	Record(ctx context.Context, report *RunReport) error
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithRecorder hands every finished report to r.
func WithRecorder(r RunRecorder) Option {
	return func(g *Ingestor) { g.recorder = r }
}

// Ingestor is the only writer of an index. It processes documents one at a
// time and persists the index at the end of every run.
type Ingestor struct {
	mu       sync.Mutex
	profile  domain.LimitProfile
	chunker  *chunker.PageChunker
	embedder *embedding.BoundedEmbedder
	index    vectorstore.Index
	indexDir string
	recorder RunRecorder
	peakHeap uint64
}

// NewIngestor binds a profile, an embedder and an index persisted under indexDir.
func NewIngestor(profile domain.LimitProfile, e embedding.Embedder, index vectorstore.Index, indexDir string, opts ...Option) *Ingestor {
	g := &Ingestor{
		profile:  profile,
		chunker:  chunker.New(profile),
		embedder: embedding.Bounded(e, profile.BatchSize),
		index:    index,
		indexDir: indexDir,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run ingests docs in submission order. Document failures are recorded in the
// report and never abort the run. Cancellation is honoured between documents;
// a cancelled run still persists and returns ctx.Err() with the report.
// Only a persist failure is returned as a run error.
func (g *Ingestor) Run(ctx context.Context, docs []domain.SourceDocument) (*RunReport, error) {
	if !g.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer g.mu.Unlock()

	report := &RunReport{RunID: uuid.NewString(), Tier: g.profile.Name, StartedAt: time.Now()}
	logger.Info("ingestion started", "run", report.RunID, "tier", report.Tier, "documents", len(docs))

	g.peakHeap = 0
	g.sampleHeap()
	work := context.WithoutCancel(ctx)
	for _, doc := range docs {
		if ctx.Err() != nil {
			report.Cancelled = true
			logger.Info("ingestion cancelled", "run", report.RunID, "remaining", len(docs)-len(report.Documents))
			break
		}
		report.add(g.ingestDocument(work, doc))
	}

	persistErr := g.index.Persist(g.indexDir)
	report.FinishedAt = time.Now()
	report.PeakHeapBytes = g.peakHeap
	if persistErr != nil {
		logger.Error("index persist failed", "run", report.RunID, "dir", g.indexDir, "error", persistErr)
	}
	logger.Info("ingestion finished",
		"run", report.RunID,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"chunks", report.TotalChunksIndexed,
		"index_size", g.index.Len(),
		"peak_heap_bytes", report.PeakHeapBytes,
	)

	if g.recorder != nil {
		if err := g.recorder.Record(work, report); err != nil {
			logger.Warn("run history not recorded", "run", report.RunID, "error", err)
		}
	}

	if persistErr != nil {
		return report, fmt.Errorf("ingest: %w", persistErr)
	}
	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

func (g *Ingestor) ingestDocument(ctx context.Context, doc domain.SourceDocument) DocumentOutcome {
	out := DocumentOutcome{DocumentID: doc.ID, DisplayName: doc.DisplayName}
	log := logger.L().With("document", doc.ID, "name", doc.DisplayName)

	if doc.ByteSize > g.profile.MaxFileSizeBytes {
		out.Status, out.Reason = StatusSkipped, ReasonFileTooLarge
		log.Info("document skipped", "reason", out.Reason, "size", doc.ByteSize, "limit", g.profile.MaxFileSizeBytes)
		return out
	}

	pages := doc.Pages
	if len(pages) > g.profile.MaxPages {
		out.PagesDropped = len(pages) - g.profile.MaxPages
		pages = pages[:g.profile.MaxPages]
		log.Info("trailing pages dropped", "dropped", out.PagesDropped, "limit", g.profile.MaxPages)
	}

	var chunks []domain.Chunk
	for _, p := range pages {
		chunks = append(chunks, g.chunker.ChunkPage(doc.ID, p)...)
	}
	if len(chunks) == 0 {
		out.Status = StatusIndexed
		log.Debug("document has no text")
		return out
	}

	budget := g.profile.MaxChunksTotal - g.index.Len()
	if budget <= 0 {
		out.Status, out.Reason = StatusSkipped, ReasonBudgetExhausted
		out.ChunksDropped = len(chunks)
		log.Info("document skipped", "reason", out.Reason, "chunks", len(chunks), "limit", g.profile.MaxChunksTotal)
		return out
	}
	if len(chunks) > budget {
		out.ChunksDropped = len(chunks) - budget
		clear(chunks[budget:])
		chunks = chunks[:budget]
		log.Info("chunks truncated to budget", "dropped", out.ChunksDropped, "kept", budget)
	}

	entries, err := g.embed(ctx, chunks)
	if err != nil {
		out.Status, out.Reason = StatusFailed, err.Error()
		log.Warn("document failed", "stage", "embed", "error", err)
		return out
	}
	if err := g.index.Append(entries); err != nil {
		out.Status, out.Reason = StatusFailed, err.Error()
		log.Warn("document failed", "stage", "index", "error", err)
		return out
	}

	out.Status, out.Chunks = StatusIndexed, len(entries)
	log.Debug("document indexed", "chunks", out.Chunks)
	return out
}

// embed runs the chunks through the embedder in sub-batches. Each batch's
// text slice is cleared once the call returns.
func (g *Ingestor) embed(ctx context.Context, chunks []domain.Chunk) ([]domain.IndexEntry, error) {
	size := g.embedder.BatchSize()
	if size <= 0 {
		size = len(chunks)
	}
	entries := make([]domain.IndexEntry, 0, len(chunks))
	texts := make([]string, 0, size)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		texts = texts[:0]
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := g.embedder.EmbedBatch(ctx, texts)
		clear(texts)
		heap := g.sampleHeap()
		logger.Debug("embedding batch done", "document", chunks[start].DocumentID, "from", start, "to", end, "heap_bytes", heap)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		for i, v := range vecs {
			entries = append(entries, domain.IndexEntry{Vector: v, Chunk: chunks[start+i]})
		}
	}
	return entries, nil
}

// RemoveDocument deletes a document's entries and persists the index.
func (g *Ingestor) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	if !g.mu.TryLock() {
		return 0, ErrRunInProgress
	}
	defer g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := g.index.RemoveDocument(documentID)
	if n == 0 {
		return 0, nil
	}
	if err := g.index.Persist(g.indexDir); err != nil {
		return n, fmt.Errorf("remove %s: %w", documentID, err)
	}
	logger.Info("document removed", "document", documentID, "chunks", n)
	return n, nil
}

// OpenIndex loads the index persisted in dir. A missing or unreadable index,
// or one built with a different dimension, is replaced by an empty index of
// dimension dim. Other I/O errors are returned.
func OpenIndex(dir string, dim int) (*memory.Index, error) {
	idx, err := memory.Load(dir)
	switch {
	case err == nil:
		if dim > 0 && idx.Dimension() > 0 && idx.Dimension() != dim {
			logger.Warn("index dimension differs from embedder, starting empty",
				"dir", dir, "index", idx.Dimension(), "embedder", dim)
			return memory.NewIndex(dim), nil
		}
		if idx.Dimension() == 0 && idx.Len() == 0 {
			return memory.NewIndex(dim), nil
		}
		return idx, nil
	case errors.Is(err, domain.ErrIndexNotFound):
		logger.Debug("no index found, starting empty", "dir", dir)
		return memory.NewIndex(dim), nil
	case errors.Is(err, domain.ErrIndexCorrupt):
		logger.Warn("index corrupt, starting empty", "dir", dir, "error", err)
		return memory.NewIndex(dim), nil
	default:
		return nil, err
	}
}

// sampleHeap reads the live heap size and raises the run's peak. Callers hold g.mu.
func (g *Ingestor) sampleHeap() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	g.peakHeap = max(g.peakHeap, ms.HeapAlloc)
	return ms.HeapAlloc
}
