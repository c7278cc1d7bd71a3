package logging

import (
	"context"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// New builds a logger writing to out with the given level and format
// ("text" or "json").
func New(level, format string, out io.Writer) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(out)

	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying entry.
func NewContext(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// WithConversation tags the context logger with a conversation id.
func WithConversation(ctx context.Context, conversationID string) context.Context {
	return NewContext(ctx, FromContext(ctx).WithField("conversation_id", conversationID))
}

// FromContext returns the logger stored in ctx, or one backed by the
// standard logger.
func FromContext(ctx context.Context) *log.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*log.Entry); ok && entry != nil {
			return entry
		}
	}
	return log.NewEntry(log.StandardLogger())
}
