package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"ragchat/internal/domain"
	"ragchat/internal/logging"
)

// State is the turn stage a Session is in.
type State int32

const (
	StateIdle State = iota
	StateSummarizing
	StateRetrieving
	StateComposing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSummarizing:
		return "summarizing"
	case StateRetrieving:
		return "retrieving"
	case StateComposing:
		return "composing"
	}
	return "unknown"
}

// Session runs the turn protocol for one conversation. Turns on the same
// Session are queued: a caller waits until the running turn finishes or its
// own context is done.
type Session struct {
	id   string
	turn chan struct{}

	mu     sync.RWMutex
	memory *Memory

	state atomic.Int32

	gen        domain.GenerationConfig
	topK       int
	summarizer *QuerySummarizer
	retriever  *ContextRetriever
	composer   *AnswerComposer
}

func newSession(id string, cfg Config, index domain.Index, completion domain.CompletionService) *Session {
	gen := domain.GenerationConfig{Model: cfg.Model, Temperature: cfg.Temperature}
	return &Session{
		id:         id,
		turn:       make(chan struct{}, 1),
		memory:     NewMemory(id),
		gen:        gen,
		topK:       cfg.TopK,
		summarizer: NewQuerySummarizer(completion, cfg.SummaryInstruction, gen),
		retriever:  NewContextRetriever(index),
		composer:   NewAnswerComposer(completion, cfg.SystemPrompt, cfg.DomainName),
	}
}

// ID is the conversation id.
func (s *Session) ID() string { return s.id }

// State reports the stage of the running turn, or StateIdle.
func (s *Session) State() State { return State(s.state.Load()) }

// History returns a snapshot of the conversation log.
func (s *Session) History() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory.History()
}

// TurnCount is the number of stored turns.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory.Len()
}

// HandleTurn answers userMessage using the conversation so far.
//
// On an index or completion failure the user turn stays in memory and no
// assistant turn is added. A turn whose context ends before the answer is
// stored returns the context error and adds no assistant turn.
func (s *Session) HandleTurn(ctx context.Context, userMessage string) (string, error) {
	if userMessage == "" {
		return "", &ValidationError{Field: "user_message"}
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-s.turn }()
	defer s.setState(StateIdle)

	logger := logging.FromContext(ctx).WithField("conversation_id", s.id)
	start := time.Now()

	s.mu.Lock()
	s.memory.AppendUser(userMessage)
	history := s.memory.History()
	transcript := s.memory.Transcript()
	s.mu.Unlock()

	s.setState(StateSummarizing)
	query, err := s.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return "", s.fail(logger, CollaboratorCompletion, StateSummarizing, err)
	}
	logger.WithField("query", query).Debug("retrieval query ready")

	s.setState(StateRetrieving)
	contextText, err := s.retriever.RetrieveContext(ctx, query, s.topK)
	if err != nil {
		return "", s.fail(logger, CollaboratorIndex, StateRetrieving, err)
	}

	s.setState(StateComposing)
	answer, err := s.composer.Compose(ctx, contextText, history, userMessage, s.gen)
	if err != nil {
		return "", s.fail(logger, CollaboratorCompletion, StateComposing, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.memory.AppendAssistant(answer)
	s.mu.Unlock()

	logger.WithFields(log.Fields{
		"turns":      s.TurnCount(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("turn completed")
	return answer, nil
}

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

func (s *Session) fail(logger *log.Entry, collaborator string, stage State, err error) error {
	logger.WithFields(log.Fields{"stage": stage.String(), "collaborator": collaborator}).WithError(err).Warn("turn aborted")
	return &UpstreamError{Collaborator: collaborator, Stage: stage, Err: err}
}
