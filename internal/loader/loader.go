// Package loader turns files on disk into already-extracted source documents.
// Plain text files are split into pages on form feeds, the separator written
// by pdftotext. JSON files carry pages produced by an external extractor.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/logger"
)

// ErrNoDocuments is returned when no path resolves to a supported file.
var ErrNoDocuments = errors.New("no supported documents found")

const pageSeparator = "\f"

// Options controls how files are read.
type Options struct {
	// MaxReadBytes leaves larger files unread; their document has a size and no pages.
	// Zero means no limit.
	MaxReadBytes int64
}

type jsonPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type jsonDocument struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	ByteSize    int64      `json:"byte_size"`
	Pages       []jsonPage `json:"pages"`
}

// Load expands glob patterns and returns one document per supported file,
// in argument order.
func Load(paths []string, opts Options) ([]domain.SourceDocument, error) {
	var docs []domain.SourceDocument
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			doc, ok, err := loadFile(m, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				docs = append(docs, doc)
			}
		}
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	return docs, nil
}

func loadFile(path string, opts Options) (domain.SourceDocument, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".json":
	default:
		logger.Debug("unsupported file ignored", "path", path)
		return domain.SourceDocument{}, false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.SourceDocument{}, false, err
	}
	if info.IsDir() {
		return domain.SourceDocument{}, false, nil
	}
	doc := domain.SourceDocument{
		ID:          hashString(path),
		DisplayName: filepath.Base(path),
		ByteSize:    info.Size(),
	}
	if opts.MaxReadBytes > 0 && info.Size() > opts.MaxReadBytes {
		logger.Debug("file not read, over size limit", "path", path, "size", info.Size())
		return doc, true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceDocument{}, false, err
	}
	if ext == ".json" {
		if err := decodeJSON(data, &doc); err != nil {
			return domain.SourceDocument{}, false, fmt.Errorf("load %s: %w", path, err)
		}
		return doc, true, nil
	}
	doc.Pages = SplitPages(string(data))
	return doc, true, nil
}

func decodeJSON(data []byte, doc *domain.SourceDocument) error {
	var jd jsonDocument
	if err := json.Unmarshal(data, &jd); err != nil {
		return err
	}
	if jd.ID != "" {
		doc.ID = jd.ID
	}
	if jd.DisplayName != "" {
		doc.DisplayName = jd.DisplayName
	}
	if jd.ByteSize > 0 {
		doc.ByteSize = jd.ByteSize
	}
	doc.Pages = make([]domain.Page, len(jd.Pages))
	for i, p := range jd.Pages {
		n := p.Number
		if n <= 0 {
			n = i + 1
		}
		doc.Pages[i] = domain.Page{Number: n, Text: p.Text}
	}
	return nil
}

// SplitPages splits text on form feeds. A single trailing separator does not
// start an extra page.
func SplitPages(text string) []domain.Page {
	text = strings.TrimSuffix(text, pageSeparator)
	if text == "" {
		return nil
	}
	parts := strings.Split(text, pageSeparator)
	pages := make([]domain.Page, len(parts))
	for i, p := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: p}
	}
	return pages
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
