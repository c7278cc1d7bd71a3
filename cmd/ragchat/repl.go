package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"ragchat/internal/chat"
)

type turnHandler interface {
	HandleTurn(ctx context.Context, conversationID, userMessage string) (string, error)
}

type contextRetriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) (string, error)
}

// runREPL reads one message per line until EOF, "exit" or "quit".
func runREPL(ctx context.Context, in io.Reader, out io.Writer, turns turnHandler, retriever contextRetriever, conversationID string, topK int) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Fprintf(out, "Conversation %s. Type exit or quit to leave.\n", conversationID)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case line == "/new":
			conversationID = uuid.NewString()
			fmt.Fprintf(out, "Started conversation %s\n", conversationID)
			continue
		case strings.HasPrefix(line, "/retrieve "):
			text, err := retriever.RetrieveContext(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/retrieve ")), topK)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			if text == "" {
				text = "No passages retrieved."
			}
			fmt.Fprintln(out, text)
			continue
		}

		answer, err := turns.HandleTurn(ctx, conversationID, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			var upstream *chat.UpstreamError
			if errors.As(err, &upstream) {
				fmt.Fprintf(out, "Error (%s): %v\n", upstream.Collaborator, upstream.Err)
			} else {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", answer)
	}
}
