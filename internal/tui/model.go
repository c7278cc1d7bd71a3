package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/lexicon"
)

// ChatPort is the TUI-facing entry point of the conversation core.
type ChatPort interface {
	HandleTurn(ctx context.Context, conversationID, userMessage string) (string, error)
}

// Retriever renders the retrieval context for a query, as the chat turns see it.
type Retriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) (string, error)
}

type entry struct {
	role domain.Role
	text string
}

type answerMsg struct {
	conversationID string
	text           string
	err            error
}

type retrieveMsg struct {
	query string
	text  string
	err   error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	chat           ChatPort
	retriever      Retriever
	topK           int
	conversationID string

	input    textinput.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	entries  []entry
	summary  string
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model for conversationID. retriever backs /retrieve.
func New(chat ChatPort, retriever Retriever, conversationID, summary string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /retrieve <query>, /new or /quit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		chat:           chat,
		retriever:      retriever,
		topK:           topK,
		conversationID: conversationID,
		input:          ti,
		viewport:       vp,
		summary:        summary,
		status:         "Corpus loaded. Ask away.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 3 + 1 + qh + 1 // header, summary, conversation id, status, input frame, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		if r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(max(20, msg.Width-6)),
		); err == nil {
			m.renderer = r
		}
		m.refresh()
		return m, nil

	case answerMsg:
		if msg.conversationID != m.conversationID {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.entries = append(m.entries, entry{role: domain.RoleAssistant, text: msg.text})
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case retrieveMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.entries = append(m.entries, entry{role: domain.RoleSystem, text: renderContext(msg.query, msg.text)})
			m.status = fmt.Sprintf("%d passage(s) for %q", strings.Count(msg.text, "\nScore: "), msg.query)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	switch {
	case text == "/quit" || text == "exit" || text == "quit":
		return m, tea.Quit
	case text == "/new":
		// an answer still in flight belongs to the old id and is dropped
		m.input.SetValue("")
		m.conversationID = uuid.NewString()
		m.entries = nil
		m.busy = false
		m.status = "Started conversation " + m.conversationID
		m.refresh()
		return m, nil
	case m.busy:
		return m, nil
	}
	m.input.SetValue("")

	switch {
	case strings.HasPrefix(text, "/retrieve"):
		query := strings.TrimSpace(strings.TrimPrefix(text, "/retrieve"))
		if query == "" {
			m.status = "Usage: /retrieve <query>"
			return m, nil
		}
		m.busy = true
		m.status = "Retrieving..."
		return m, retrieveCmd(m.retriever, query, m.topK)
	}

	m.entries = append(m.entries, entry{role: domain.RoleUser, text: text})
	m.busy = true
	m.status = "Thinking..."
	m.refresh()
	return m, askCmd(m.chat, m.conversationID, text)
}

func askCmd(chat ChatPort, conversationID, text string) tea.Cmd {
	return func() tea.Msg {
		answer, err := chat.HandleTurn(context.Background(), conversationID, text)
		return answerMsg{conversationID: conversationID, text: answer, err: err}
	}
}

func retrieveCmd(retriever Retriever, query string, topK int) tea.Cmd {
	return func() tea.Msg {
		text, err := retriever.RetrieveContext(context.Background(), query, topK)
		return retrieveMsg{query: query, text: text, err: err}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	conv := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("conversation " + m.conversationID)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + conv + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "No messages yet."
	}
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch e.role {
		case domain.RoleUser:
			parts = append(parts, userStyle.Render("You: ")+e.text)
		case domain.RoleAssistant:
			parts = append(parts, assistantStyle.Render("Assistant:")+"\n"+m.renderMarkdown(e.text))
		default:
			parts = append(parts, e.text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// renderContext shows the formatted context unchanged except that the
// sentence closest to query in each passage is highlighted.
func renderContext(query, text string) string {
	if text == "" {
		return "No passages retrieved."
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "Score: ") || strings.Trim(line, "-") == "" {
			continue
		}
		lines[i] = highlightBestSentence(line, query)
	}
	return strings.Join(lines, "\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := lexicon.Sentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := lexicon.Words(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := lexicon.Words(sentence)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
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
