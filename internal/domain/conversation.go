package domain

import "context"

// Role tags a message or turn with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label is the capitalized form used in plain-text transcripts.
func (r Role) Label() string {
	switch r {
	case RoleSystem:
		return "System"
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	}
	return string(r)
}

// Turn is one immutable entry of a conversation log.
type Turn struct {
	Role     Role
	Text     string
	Sequence int
}

// Message is a role-tagged entry of a structured prompt.
type Message struct {
	Role Role
	Text string
}

// Passage is a scored piece of corpus text returned by an Index.
type Passage struct {
	Score float64
	Text  string
}

// GenerationConfig is passed through to the completion backend untouched.
type GenerationConfig struct {
	Model       string
	Temperature float64
}

// Index maps a query to up to topK passages ordered by descending score.
// Implementations must be safe for concurrent use.
type Index interface {
	Query(ctx context.Context, text string, topK int) ([]Passage, error)
}

// CompletionService turns a structured prompt into generated text.
// Implementations must be safe for concurrent use.
type CompletionService interface {
	Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (string, error)
}
