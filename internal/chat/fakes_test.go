package chat

import (
	"context"
	"strings"
	"sync"

	"ragchat/internal/domain"
)

type fakeIndex struct {
	mu       sync.Mutex
	passages []domain.Passage
	err      error
	queries  []string
	topKs    []int
}

func (f *fakeIndex) Query(_ context.Context, text string, topK int) ([]domain.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	f.topKs = append(f.topKs, topK)
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func (f *fakeIndex) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// fakeCompletion answers summary prompts with summary and answer prompts
// with answer. Either may be replaced by an error.
type fakeCompletion struct {
	mu         sync.Mutex
	summary    string
	answer     string
	summaryErr error
	answerErr  error
	calls      [][]domain.Message
	configs    []domain.GenerationConfig
	onAnswer   func(ctx context.Context)
}

func (f *fakeCompletion) Generate(ctx context.Context, messages []domain.Message, cfg domain.GenerationConfig) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.configs = append(f.configs, cfg)
	isSummary := len(messages) == 2 && strings.HasPrefix(messages[1].Text, "Conversation History:")
	summary, answer, summaryErr, answerErr, onAnswer := f.summary, f.answer, f.summaryErr, f.answerErr, f.onAnswer
	f.mu.Unlock()

	if isSummary {
		return summary, summaryErr
	}
	if onAnswer != nil {
		onAnswer(ctx)
	}
	return answer, answerErr
}

func (f *fakeCompletion) lastCall() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeCompletion) set(fn func(f *fakeCompletion)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
