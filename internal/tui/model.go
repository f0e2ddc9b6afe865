// Package tui is the interactive console for querying ingested legal documents.
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

	"legalrag/internal/domain"
	"legalrag/internal/retrieval"
	"legalrag/internal/service"
)

// QueryPort is the TUI-facing subset of the query pipeline.
type QueryPort interface {
	Query(ctx context.Context, text string, filters retrieval.Filters, topK int) (service.QueryResult, error)
	Ask(ctx context.Context, text string, filters retrieval.Filters, topK int) (service.QueryResult, error)
}

// Options fixes the session-wide retrieval settings.
type Options struct {
	Filters retrieval.Filters
	TopK    int
	// CanAsk enables ctrl+a; false when no synthesizer is configured.
	CanAsk bool
}

type resultMsg struct {
	query  string
	asked  bool
	result service.QueryResult
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	service   QueryPort
	opts      Options
	input     textinput.Model
	viewport  viewport.Model
	hits      []domain.RetrievalHit
	answer    string
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(ctx context.Context, service QueryPort, opts Options, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Nhập câu hỏi, Enter để tìm"
	if opts.CanAsk {
		ti.Placeholder += ", Ctrl+A để hỏi"
	}
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		opts:     opts,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + qh + 1 // header, summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case resultMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.hits = nil
			m.answer = ""
		} else {
			m.hits = msg.result.Hits
			m.answer = msg.result.Answer
			m.cursor = 0
			m.lastQuery = msg.query
			switch {
			case msg.result.NotFound:
				m.status = msg.result.Message
			case msg.asked:
				m.status = fmt.Sprintf("Answer for %q from %d passages", msg.query, len(m.hits))
			default:
				m.status = fmt.Sprintf("%d results for %q", len(m.hits), msg.query)
			}
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit(false)
		case "ctrl+a":
			if m.opts.CanAsk {
				return m.submit(true)
			}
			m.status = "No synthesizer configured."
			return m, nil
		case "down":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor + 1) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor - 1 + len(m.hits)) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(ask bool) (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.busy {
		return m, nil
	}
	m.busy = true
	if ask {
		m.status = fmt.Sprintf("Asking %q...", q)
	} else {
		m.status = fmt.Sprintf("Searching %q...", q)
	}
	return m, m.run(q, ask)
}

func (m Model) run(q string, ask bool) tea.Cmd {
	ctx, svc, opts := m.ctx, m.service, m.opts
	return func() tea.Msg {
		var (
			res service.QueryResult
			err error
		)
		if ask {
			res, err = svc.Ask(ctx, q, opts.Filters, opts.TopK)
		} else {
			res, err = svc.Query(ctx, q, opts.Filters, opts.TopK)
		}
		return resultMsg{query: q, asked: ask, result: res, err: err}
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Legal RAG")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary + filterLabel(m.opts.Filters))
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func filterLabel(f retrieval.Filters) string {
	var parts []string
	if f.DocType != "" {
		parts = append(parts, "doc_type="+f.DocType)
	}
	if f.Code != "" {
		parts = append(parts, "code="+f.Code)
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, " ") + "]"
}

func (m Model) renderCurrent() string {
	var b strings.Builder
	if m.answer != "" {
		b.WriteString(answerStyle.Render("Trả lời: " + m.answer))
		b.WriteString("\n\n")
	}
	if len(m.hits) == 0 {
		if m.answer == "" {
			b.WriteString("No results yet.")
		}
		return b.String()
	}
	h := m.hits[m.cursor]
	fmt.Fprintf(&b, "Result %d/%d  score=%.3f\n", m.cursor+1, len(m.hits), h.Score)
	b.WriteString(metaStyle.Render(metadataLine(h.Metadata)))
	b.WriteString("\n\n")
	b.WriteString(highlightBestSentence(h.Text, m.lastQuery))
	return b.String()
}

func metadataLine(md domain.ChunkMetadata) string {
	var parts []string
	for _, kv := range [][2]string{
		{"Văn bản", md.DocType},
		{"Mã số", md.Code},
		{"Ban hành", md.IssueDate},
		{"Hiệu lực", md.EffectiveDate},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+": "+kv[1])
		}
	}
	return strings.Join(parts, " | ")
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// highlightBestSentence emphasizes the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
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
	seen := map[string]struct{}{}
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
