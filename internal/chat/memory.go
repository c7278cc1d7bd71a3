package chat

import (
	"slices"
	"strings"

	"ragchat/internal/domain"
)

// Memory is the append-only turn log of one conversation.
// It has no locking of its own; Session serializes access.
type Memory struct {
	conversationID string
	turns          []domain.Turn
}

// NewMemory returns an empty log for conversationID.
func NewMemory(conversationID string) *Memory {
	return &Memory{conversationID: conversationID}
}

// ConversationID is the id the log belongs to.
func (m *Memory) ConversationID() string { return m.conversationID }

// AppendUser stores text as the next user turn. Empty text is kept as is.
func (m *Memory) AppendUser(text string) { m.append(domain.RoleUser, text) }

// AppendAssistant stores text as the next assistant turn.
func (m *Memory) AppendAssistant(text string) { m.append(domain.RoleAssistant, text) }

func (m *Memory) append(role domain.Role, text string) {
	m.turns = append(m.turns, domain.Turn{Role: role, Text: text, Sequence: len(m.turns)})
}

// History returns a copy of all turns in insertion order.
func (m *Memory) History() []domain.Turn { return slices.Clone(m.turns) }

// Len is the number of stored turns.
func (m *Memory) Len() int { return len(m.turns) }

// Transcript renders the log as "<Role>: <text>" lines. It feeds the query
// summarizer only.
func (m *Memory) Transcript() string {
	lines := make([]string, len(m.turns))
	for i, t := range m.turns {
		lines[i] = t.Role.Label() + ": " + t.Text
	}
	return strings.Join(lines, "\n")
}
