package memory

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"docrag/internal/domain"
)

const (
	// VectorsFile holds the header and the raw float32 matrix.
	VectorsFile = "vectors.bin"
	// ChunksFile holds one JSON chunk record per line, in position order.
	ChunksFile = "chunks.jsonl"

	formatVersion = 1
	headerSize    = 4 + 4 + 4 + 8
	maxLineBytes  = 16 << 20
	maxDimension  = 1 << 16
)

var magic = [4]byte{'D', 'R', 'V', 'X'}

type chunkRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Seq        int    `json:"seq"`
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

type header struct {
	Magic     [4]byte
	Version   uint32
	Dimension uint32
	Count     uint64
}

// Persist writes the index to dir. Each file is written to a temporary name
// and renamed into place.
func (x *Index) Persist(dir string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.IndexError{Op: "persist", Path: dir, Err: err}
	}
	if err := writeAtomic(filepath.Join(dir, VectorsFile), x.writeVectors); err != nil {
		return &domain.IndexError{Op: "persist", Path: dir, Err: err}
	}
	if err := writeAtomic(filepath.Join(dir, ChunksFile), x.writeChunks); err != nil {
		return &domain.IndexError{Op: "persist", Path: dir, Err: err}
	}
	return nil
}

func (x *Index) writeVectors(w io.Writer) error {
	h := header{Magic: magic, Version: formatVersion, Dimension: uint32(x.dimension), Count: uint64(len(x.vectors))}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	buf := make([]byte, 4*x.dimension)
	for _, v := range x.vectors {
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) writeChunks(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, c := range x.chunks {
		rec := chunkRecord{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Page:       c.PageNumber,
			Seq:        c.SequenceInPage,
			Text:       c.Text,
			Start:      c.Offsets.Start,
			End:        c.Offsets.End,
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads an index previously written by Persist. A missing file yields
// ErrIndexNotFound; any decoding problem yields ErrIndexCorrupt.
func Load(dir string) (*Index, error) {
	vectors, dim, err := readVectors(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, &domain.IndexError{Op: "load", Path: dir, Err: err}
	}
	chunks, err := readChunks(filepath.Join(dir, ChunksFile))
	if err != nil {
		return nil, &domain.IndexError{Op: "load", Path: dir, Err: err}
	}
	if len(chunks) != len(vectors) {
		return nil, &domain.IndexError{
			Op:   "load",
			Path: dir,
			Err:  fmt.Errorf("%w: %d vectors but %d chunk records", domain.ErrIndexCorrupt, len(vectors), len(chunks)),
		}
	}
	return &Index{dimension: dim, vectors: vectors, chunks: chunks}, nil
}

func readVectors(path string) ([]domain.Vector, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, domain.ErrIndexNotFound
		}
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	r := bufio.NewReader(f)
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("%w: header: %v", domain.ErrIndexCorrupt, err)
	}
	if h.Magic != magic {
		return nil, 0, fmt.Errorf("%w: bad magic %q", domain.ErrIndexCorrupt, h.Magic[:])
	}
	if h.Version != formatVersion {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", domain.ErrIndexCorrupt, h.Version)
	}
	if h.Dimension > maxDimension {
		return nil, 0, fmt.Errorf("%w: dimension %d exceeds %d", domain.ErrIndexCorrupt, h.Dimension, maxDimension)
	}
	dim := int(h.Dimension)
	if h.Count > 0 && dim == 0 {
		return nil, 0, fmt.Errorf("%w: %d vectors of dimension 0", domain.ErrIndexCorrupt, h.Count)
	}
	// The size check bounds allocation before trusting the header's count.
	if dim > 0 && h.Count > uint64(info.Size())/uint64(4*dim) {
		return nil, 0, fmt.Errorf("%w: header claims %d vectors, file has %d bytes", domain.ErrIndexCorrupt, h.Count, info.Size())
	}
	want := int64(headerSize) + int64(h.Count)*int64(4*dim)
	if info.Size() != want {
		return nil, 0, fmt.Errorf("%w: file has %d bytes, want %d", domain.ErrIndexCorrupt, info.Size(), want)
	}

	if h.Count == 0 {
		return nil, dim, nil
	}
	vectors := make([]domain.Vector, h.Count)
	buf := make([]byte, 4*dim)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("%w: vector %d: %v", domain.ErrIndexCorrupt, i, err)
		}
		v := make(domain.Vector, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors[i] = v
	}
	return vectors, dim, nil
}

func readChunks(path string) ([]domain.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, err
	}
	defer f.Close()

	var chunks []domain.Chunk
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec chunkRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrIndexCorrupt, ChunksFile, line, err)
		}
		if rec.ID == "" || rec.DocumentID == "" {
			return nil, fmt.Errorf("%w: %s line %d: missing id", domain.ErrIndexCorrupt, ChunksFile, line)
		}
		chunks = append(chunks, domain.Chunk{
			ID:             rec.ID,
			DocumentID:     rec.DocumentID,
			PageNumber:     rec.Page,
			SequenceInPage: rec.Seq,
			Text:           rec.Text,
			Offsets:        domain.ByteRange{Start: rec.Start, End: rec.End},
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexCorrupt, ChunksFile, err)
	}
	return chunks, nil
}
