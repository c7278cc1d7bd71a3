package chat

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

var passageRule = strings.Repeat("-", 45)

// ContextRetriever queries the index and renders the hits as one context
// string.
type ContextRetriever struct {
	index domain.Index
}

// NewContextRetriever formats passages returned by index.
func NewContextRetriever(index domain.Index) *ContextRetriever {
	return &ContextRetriever{index: index}
}

// RetrieveContext passes topK to the index unchanged and keeps the index's
// ordering.
func (r *ContextRetriever) RetrieveContext(ctx context.Context, query string, topK int) (string, error) {
	passages, err := r.index.Query(ctx, query, topK)
	if err != nil {
		return "", err
	}
	return FormatPassages(passages), nil
}

// FormatPassages renders each passage between two rules with its score and
// joins the blocks with a blank line. No passages yields "".
func FormatPassages(passages []domain.Passage) string {
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = fmt.Sprintf("%s\nScore: %.3f\n%s\n%s", passageRule, p.Score, p.Text, passageRule)
	}
	return strings.Join(blocks, "\n\n")
}
