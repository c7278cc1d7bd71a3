package chat

import (
	"context"
	"strings"

	"ragchat/internal/domain"
)

// QuerySummarizer condenses a conversation transcript into a retrieval query.
type QuerySummarizer struct {
	completion  domain.CompletionService
	instruction string
	gen         domain.GenerationConfig
}

// NewQuerySummarizer sends instruction as the system message of every
// summary request, generated with gen.
func NewQuerySummarizer(completion domain.CompletionService, instruction string, gen domain.GenerationConfig) *QuerySummarizer {
	return &QuerySummarizer{completion: completion, instruction: instruction, gen: gen}
}

// Summarize always calls the completion service, even for an empty
// transcript. Errors are returned unchanged.
func (s *QuerySummarizer) Summarize(ctx context.Context, historyText string) (string, error) {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Text: s.instruction},
		{Role: domain.RoleUser, Text: "Conversation History:\n" + historyText + "\n\nSummary:"},
	}
	out, err := s.completion.Generate(ctx, messages, s.gen)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
