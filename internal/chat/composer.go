package chat

import (
	"context"
	"strings"

	"ragchat/internal/domain"
)

// AnswerComposer builds the answer prompt and calls the completion service.
type AnswerComposer struct {
	completion   domain.CompletionService
	systemPrompt string
	domainName   string
}

// NewAnswerComposer fills {domain} in systemPrompt with domainName.
func NewAnswerComposer(completion domain.CompletionService, systemPrompt, domainName string) *AnswerComposer {
	return &AnswerComposer{completion: completion, systemPrompt: systemPrompt, domainName: domainName}
}

// BuildPrompt returns the system message with context filled in, the history
// as role-tagged messages and userMessage as the final user message.
func (c *AnswerComposer) BuildPrompt(contextText string, history []domain.Turn, userMessage string) []domain.Message {
	r := strings.NewReplacer("{domain}", c.domainName, "{context}", contextText)
	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Text: r.Replace(c.systemPrompt)})
	for _, t := range history {
		messages = append(messages, domain.Message{Role: t.Role, Text: t.Text})
	}
	return append(messages, domain.Message{Role: domain.RoleUser, Text: userMessage})
}

// Compose returns the generated answer verbatim.
func (c *AnswerComposer) Compose(ctx context.Context, contextText string, history []domain.Turn, userMessage string, gen domain.GenerationConfig) (string, error) {
	return c.completion.Generate(ctx, c.BuildPrompt(contextText, history, userMessage), gen)
}
