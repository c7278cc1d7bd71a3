package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"ragchat/internal/chat"
	"ragchat/internal/config"
	"ragchat/internal/logging"
	"ragchat/internal/service"
	"ragchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, conversationID string
	var plain bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML or TOML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	flag.StringVar(&conversationID, "conversation", "", "Conversation id to use (default: a new random id)")
	flag.BoolVar(&plain, "plain", false, "Use a line-oriented prompt instead of the TUI")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = []string{cfg.Corpus.DataDir}
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	logger, closeLog, err := setupLogging(cfg.Log, plain)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closeLog()
	entry := log.NewEntry(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	emb, err := newEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	ch, err := newChunker(cfg)
	if err != nil {
		log.Fatal(err)
	}
	st, closeStore, err := newVectorStore(cfg)
	if err != nil {
		log.Fatalf("vector store init failed: %v", err)
	}
	defer closeStore()
	sum, err := newSummarizer(cfg)
	if err != nil {
		log.Fatal(err)
	}
	llm, err := newCompletion(cfg)
	if err != nil {
		log.Fatalf("completion backend init failed: %v", err)
	}

	svc := service.NewIndexService(ch, emb, st, sum, cfg.Summarizer.MaxSentences, service.WithLogger(entry.WithField("component", "index")))
	summary, err := svc.IngestDocuments(ctx, inputs)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	chatCfg, err := chatConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}
	registry, err := chat.NewRegistry(svc, llm, chatCfg, chat.WithLogger(entry.WithField("component", "chat")))
	if err != nil {
		log.Fatalf("session registry init failed: %v", err)
	}

	if plain {
		fmt.Println(summary)
		err := runREPL(ctx, os.Stdin, os.Stdout, registry, chat.NewContextRetriever(svc), conversationID, chatCfg.TopK)
		if err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
		return
	}

	m := tui.New(registry, chat.NewContextRetriever(svc), conversationID, summary, chatCfg.TopK)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

// setupLogging routes logs to the configured file, to stderr for the plain
// prompt, or nowhere while the TUI owns the terminal.
func setupLogging(cfg config.LogConfig, plain bool) (*log.Logger, func() error, error) {
	var out io.Writer = io.Discard
	closeFn := func() error { return nil }
	switch {
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out, closeFn = f, f.Close
	case plain:
		out = os.Stderr
	}
	logger, err := logging.New(cfg.Level, cfg.Format, out)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return logger, closeFn, nil
}
