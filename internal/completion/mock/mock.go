package mock

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

// Echo is an offline completion service. Summary requests get the last
// transcript line back; answer requests get the user message together with
// the number of retrieved passages.
type Echo struct{}

func New() *Echo { return &Echo{} }

func (Echo) Generate(ctx context.Context, messages []domain.Message, _ domain.GenerationConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", nil
	}
	last := messages[len(messages)-1].Text
	if strings.HasPrefix(last, "Conversation History:") {
		body := strings.TrimSuffix(strings.TrimPrefix(last, "Conversation History:\n"), "\n\nSummary:")
		lines := strings.Split(strings.TrimSpace(body), "\n")
		return strings.TrimPrefix(lines[len(lines)-1], domain.RoleUser.Label()+": "), nil
	}

	passages := 0
	if messages[0].Role == domain.RoleSystem {
		passages = strings.Count(messages[0].Text, "Score: ")
	}
	return fmt.Sprintf("(offline) You asked: %q. %d passage(s) were retrieved for this turn.", last, passages), nil
}
