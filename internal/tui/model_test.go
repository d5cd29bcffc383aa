package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/service"
)

type fakeRetriever struct {
	got struct {
		query    string
		k, chars int
	}
	ctx service.Context
	err error
}

func (f *fakeRetriever) Assemble(_ context.Context, q string, k, chars int) (service.Context, error) {
	f.got.query, f.got.k, f.got.chars = q, k, chars
	return f.ctx, f.err
}

func submit(t *testing.T, m Model, query string) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	m.input.SetValue(query)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_QueryShowsSources(t *testing.T) {
	f := &fakeRetriever{ctx: service.Context{
		Text: "Rent is due monthly.",
		Sources: []domain.RetrievalResult{
			{Chunk: domain.Chunk{DocumentID: "lease", PageNumber: 2, Text: "Rent is due monthly. Pets are allowed."}, Score: 0.9},
			{Chunk: domain.Chunk{DocumentID: "rules", PageNumber: 1, Text: "Quiet hours start at ten."}, Score: 0.4},
		},
	}}
	m := submit(t, New(f, Options{TopK: 4, MaxChars: 500, Header: "tier free"}), "when is rent due")

	assert.Equal(t, "when is rent due", f.got.query)
	assert.Equal(t, 4, f.got.k)
	assert.Equal(t, 500, f.got.chars)
	assert.Contains(t, m.status, "2 sources")
	assert.Contains(t, m.render(), "lease page 2")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.render(), "rules page 1")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.True(t, strings.HasPrefix(m.render(), "Assembled context"))
	assert.Contains(t, m.View(), "tier free")
}

func TestModel_QueryError(t *testing.T) {
	f := &fakeRetriever{err: errors.New("embedder down")}
	m := submit(t, New(f, Options{TopK: 1, MaxChars: 10}), "anything")

	assert.Equal(t, "Error: embedder down", m.status)
	assert.Equal(t, "No results yet.", m.render())
}

func TestModel_EmptyContext(t *testing.T) {
	m := submit(t, New(&fakeRetriever{}, Options{TopK: 1, MaxChars: 10}), "anything")
	assert.Contains(t, m.status, "No relevant context")
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("The deposit is refundable. Rent is due monthly.", "rent due")
	assert.Contains(t, out, "The deposit is refundable.")
	assert.Contains(t, out, "Rent is due monthly.")
	assert.Equal(t, "  ", highlightBestSentence("  ", "rent"))
}

func TestHighlightBestSentence_KeepsUnterminatedTail(t *testing.T) {
	out := highlightBestSentence("Rent is due on the first. Late rent incurs a fee of fifty", "late fee")
	assert.Contains(t, out, "Rent is due on the first.")
	assert.Contains(t, out, "Late rent incurs a fee of fifty")

	out = highlightBestSentence("no punctuation at all", "")
	assert.Equal(t, "no punctuation at all", out)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", " Two!", " three"}, splitSentences("One. Two! three"))
	assert.Equal(t, []string{"tail only"}, splitSentences("tail only"))
	assert.Empty(t, splitSentences("   "))
}
