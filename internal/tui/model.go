package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/service"
)

// Retriever is the TUI-facing subset of the retrieval assembler.
type Retriever interface {
	Assemble(ctx context.Context, query string, k, maxChars int) (service.Context, error)
}

// Options bounds each query issued from the console.
type Options struct {
	TopK     int
	MaxChars int
	// Header is shown under the title, e.g. the tier and index size.
	Header string
}

type resultMsg struct {
	query string
	ctx   service.Context
	err   error
}

// Model is the Bubble Tea model for the query console.
type Model struct {
	retriever   Retriever
	opts        Options
	input       textinput.Model
	viewport    viewport.Model
	result      service.Context
	status      string
	cursor      int
	showContext bool
	ready       bool
	busy        bool
	lastQuery   string
}

// New creates a new TUI model instance.
func New(r Retriever, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{retriever: r, opts: opts, input: ti, viewport: vp, status: "Ready. Tab toggles sources/context."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) query(q string) tea.Cmd {
	r, opts := m.retriever, m.opts
	return func() tea.Msg {
		c, err := r.Assemble(context.Background(), q, opts.TopK, opts.MaxChars)
		return resultMsg{query: q, ctx: c, err: err}
	}
}

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header lines, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.render())
		return m, nil
	case resultMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.result = service.Context{}
		} else {
			m.result = msg.ctx
			m.cursor = 0
			m.lastQuery = msg.query
			if len(msg.ctx.Sources) == 0 {
				m.status = fmt.Sprintf("No relevant context for %q", msg.query)
			} else {
				m.status = fmt.Sprintf("%d sources, %d chars for %q", len(msg.ctx.Sources), len([]rune(msg.ctx.Text)), msg.query)
			}
		}
		m.viewport.SetContent(m.render())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Searching..."
				return m, m.query(q)
			}
		case "tab":
			m.showContext = !m.showContext
			m.viewport.SetContent(m.render())
			return m, nil
		case "down":
			if n := len(m.result.Sources); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if n := len(m.result.Sources); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout and the current source or context.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docrag")
	sub := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.opts.Header)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + sub + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if len(m.result.Sources) == 0 {
		return "No results yet."
	}
	if m.showContext {
		return "Assembled context\n\n" + m.result.Text
	}
	r := m.result.Sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s page %d  score=%.3f",
		m.cursor+1, len(m.result.Sources), r.Chunk.DocumentID, r.Chunk.PageNumber, r.Score)
	return title + "\n\n" + highlightBestSentence(r.Chunk.Text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

// splitSentences splits text on terminal punctuation. Text between or after
// matches, such as an unterminated tail cut by the chunker, is kept as its
// own segment.
func splitSentences(text string) []string {
	var out []string
	keep := func(s string) {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		keep(text[last:loc[0]])
		keep(text[loc[0]:loc[1]])
		last = loc[1]
	}
	keep(text[last:])
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
