package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chat"
	"ragchat/internal/completion"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/service"
)

type scriptedTurns struct {
	ids  []string
	msgs []string
	err  error
}

func (s *scriptedTurns) HandleTurn(_ context.Context, id, msg string) (string, error) {
	s.ids = append(s.ids, id)
	s.msgs = append(s.msgs, msg)
	if s.err != nil {
		return "", s.err
	}
	return "answer to " + msg, nil
}

type fixedRetriever struct{ text string }

func (f fixedRetriever) RetrieveContext(context.Context, string, int) (string, error) {
	return f.text, nil
}

func TestREPLConversation(t *testing.T) {
	turns := &scriptedTurns{}
	in := strings.NewReader("hello\n\n/retrieve cells\n/new\nagain\nquit\nignored\n")
	var out bytes.Buffer

	err := runREPL(context.Background(), in, &out, turns, fixedRetriever{text: "Score: 0.900"}, "c1", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "again"}, turns.msgs)
	assert.Equal(t, "c1", turns.ids[0])
	assert.NotEqual(t, "c1", turns.ids[1])
	assert.Contains(t, out.String(), "Assistant: answer to hello")
	assert.Contains(t, out.String(), "Score: 0.900")
	assert.NotContains(t, out.String(), "ignored")
}

func TestREPLReportsUpstreamCollaborator(t *testing.T) {
	turns := &scriptedTurns{err: &chat.UpstreamError{Collaborator: chat.CollaboratorIndex, Stage: chat.StateRetrieving, Err: errors.New("offline")}}
	var out bytes.Buffer

	err := runREPL(context.Background(), strings.NewReader("q\n"), &out, turns, fixedRetriever{}, "c1", 5)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Error (index): offline")
}

func TestChatConfigFromAppConfig(t *testing.T) {
	cfg, err := config.Load("does-not-exist.yaml")
	require.NoError(t, err)
	cfg.Sessions = config.SessionsConfig{Eviction: "ttl", Capacity: 10, TTLSecs: 30}
	cfg.Corpus.Domain = "biology"

	got, err := chatConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 5, got.TopK)
	assert.Equal(t, "biology", got.DomainName)
	assert.Equal(t, chat.EvictionPolicy{Kind: chat.EvictTTL, Capacity: 10, TTL: 30 * time.Second}, got.Eviction)

	cfg.Sessions.Eviction = "random"
	_, err = chatConfig(cfg)
	assert.Error(t, err)
}

func TestNewCompletionAppliesRateLimit(t *testing.T) {
	cfg, err := config.Load("does-not-exist.yaml")
	require.NoError(t, err)
	cfg.Completion.Type = "mock"
	cfg.Completion.RateLimit = 3

	svc, err := newCompletion(cfg)
	require.NoError(t, err)
	_, ok := svc.(*completion.RateLimited)
	assert.True(t, ok)

	out, err := svc.Generate(context.Background(), []domain.Message{{Role: domain.RoleUser, Text: "hi"}}, domain.GenerationConfig{})
	require.NoError(t, err)
	assert.Contains(t, out, "hi")

	cfg.Completion.Type = "nope"
	_, err = newCompletion(cfg)
	assert.Error(t, err)
}

func TestOfflinePipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bio.txt"), []byte("Photosynthesis converts light to chemical energy. Cells divide by mitosis."), 0o644))

	cfg, err := config.Load("does-not-exist.yaml")
	require.NoError(t, err)
	cfg.Completion.Type = "mock"
	cfg.Chunker.SentencesPerChunk = 1
	cfg.Chunker.OverlapSentences = 0

	emb, err := newEmbedder(cfg)
	require.NoError(t, err)
	ch, err := newChunker(cfg)
	require.NoError(t, err)
	st, closeStore, err := newVectorStore(cfg)
	require.NoError(t, err)
	defer closeStore()
	sum, err := newSummarizer(cfg)
	require.NoError(t, err)
	llm, err := newCompletion(cfg)
	require.NoError(t, err)

	svc := service.NewIndexService(ch, emb, st, sum, cfg.Summarizer.MaxSentences)
	_, err = svc.IngestDocuments(context.Background(), []string{dir})
	require.NoError(t, err)

	chatCfg, err := chatConfig(cfg)
	require.NoError(t, err)
	reg, err := chat.NewRegistry(svc, llm, chatCfg)
	require.NoError(t, err)

	answer, err := reg.HandleTurn(context.Background(), "c1", "What is photosynthesis?")
	require.NoError(t, err)
	assert.Contains(t, answer, "What is photosynthesis?")
	assert.Contains(t, answer, "2 passage(s)")

	s, ok := reg.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, 2, s.TurnCount())
}
