package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"ragchat/internal/domain"
	"ragchat/internal/logging"
)

// EvictionKind selects how the registry bounds its session map.
type EvictionKind string

const (
	// EvictNone keeps every session for the life of the registry.
	EvictNone EvictionKind = "none"
	// EvictLRU drops the least recently used idle session past Capacity.
	EvictLRU EvictionKind = "lru"
	// EvictTTL also drops sessions unused for TTL.
	EvictTTL EvictionKind = "ttl"
)

// EvictionPolicy bounds the number and lifetime of idle sessions.
// Capacity applies to lru and ttl; TTL applies to ttl only.
type EvictionPolicy struct {
	Kind     EvictionKind
	Capacity int
	TTL      time.Duration
}

// Config is handed to every Session the registry creates.
type Config struct {
	Model              string
	Temperature        float64
	TopK               int
	DomainName         string
	SummaryInstruction string
	SystemPrompt       string
	Eviction           EvictionPolicy
}

// DefaultConfig returns the stock prompts and generation settings.
func DefaultConfig() Config {
	return Config{
		Model:              "gpt-4o",
		Temperature:        0.0,
		TopK:               5,
		DomainName:         DefaultDomain,
		SummaryInstruction: DefaultSummaryInstruction,
		SystemPrompt:       DefaultSystemPrompt,
		Eviction:           EvictionPolicy{Kind: EvictNone},
	}
}

type sessionCache interface {
	Get(id string) (*Session, bool)
	Add(id string, s *Session)
	Len() int
}

type mapCache map[string]*Session

func (c mapCache) Get(id string) (*Session, bool) {
	s, ok := c[id]
	return s, ok
}

func (c mapCache) Add(id string, s *Session) { c[id] = s }
func (c mapCache) Len() int                  { return len(c) }

type lruCache struct{ *lru.Cache[string, *Session] }

func (c lruCache) Add(id string, s *Session) { c.Cache.Add(id, s) }

type ttlCache struct{ *expirable.LRU[string, *Session] }

// Get renews the entry so the ttl counts from the last use.
func (c ttlCache) Get(id string) (*Session, bool) {
	s, ok := c.LRU.Get(id)
	if ok {
		c.LRU.Add(id, s)
	}
	return s, ok
}

func (c ttlCache) Add(id string, s *Session) { c.LRU.Add(id, s) }

// Registry maps conversation ids to sessions, creating them on first use.
// Sessions with a running or queued turn are pinned: the cache may drop them,
// but the same Session is handed out again until the last turn releases it.
type Registry struct {
	mu         sync.Mutex
	sessions   sessionCache
	pinned     map[string]*pin
	cfg        Config
	index      domain.Index
	completion domain.CompletionService
	logger     *log.Entry
}

type pin struct {
	session *Session
	turns   int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(entry *log.Entry) Option {
	return func(r *Registry) { r.logger = entry }
}

// NewRegistry builds a registry whose sessions share index, completion and
// cfg. It fails on missing collaborators or an invalid eviction policy.
func NewRegistry(index domain.Index, completion domain.CompletionService, cfg Config, opts ...Option) (*Registry, error) {
	if index == nil || completion == nil {
		return nil, fmt.Errorf("registry requires an index and a completion service")
	}
	r := &Registry{
		cfg:        cfg,
		index:      index,
		completion: completion,
		pinned:     make(map[string]*pin),
		logger:     log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}

	onEvict := func(id string, _ *Session) {
		r.logger.WithField("conversation_id", id).Debug("session evicted")
	}
	switch cfg.Eviction.Kind {
	case EvictNone, "":
		r.sessions = mapCache{}
	case EvictLRU:
		c, err := lru.NewWithEvict[string, *Session](cfg.Eviction.Capacity, onEvict)
		if err != nil {
			return nil, fmt.Errorf("lru session cache: %w", err)
		}
		r.sessions = lruCache{c}
	case EvictTTL:
		if cfg.Eviction.TTL <= 0 {
			return nil, fmt.Errorf("ttl eviction requires a positive ttl")
		}
		r.sessions = ttlCache{expirable.NewLRU[string, *Session](cfg.Eviction.Capacity, onEvict, cfg.Eviction.TTL)}
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", cfg.Eviction.Kind)
	}
	return r, nil
}

// GetOrCreate returns the session for id, creating it if needed. At most one
// session exists per id at a time.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(id)
}

func (r *Registry) getOrCreateLocked(id string) *Session {
	if s, ok := r.sessions.Get(id); ok {
		return s
	}
	if p, ok := r.pinned[id]; ok {
		r.sessions.Add(id, p.session)
		r.logger.WithField("conversation_id", id).Debug("busy session restored")
		return p.session
	}
	s := newSession(id, r.cfg, r.index, r.completion)
	r.sessions.Add(id, s)
	r.logger.WithField("conversation_id", id).Debug("session created")
	return s
}

// Lookup returns the session for id without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Get(id)
}

// HandleTurn validates input, resolves the session and runs one turn.
func (r *Registry) HandleTurn(ctx context.Context, conversationID, userMessage string) (string, error) {
	if conversationID == "" {
		return "", &ValidationError{Field: "conversation_id"}
	}
	if userMessage == "" {
		return "", &ValidationError{Field: "user_message"}
	}
	ctx = logging.WithConversation(logging.NewContext(ctx, r.logger), conversationID)
	s := r.acquire(conversationID)
	defer r.release(conversationID)
	return s.HandleTurn(ctx, userMessage)
}

// acquire resolves the session for id and pins it for one turn.
func (r *Registry) acquire(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreateLocked(id)
	p, ok := r.pinned[id]
	if !ok {
		p = &pin{session: s}
		r.pinned[id] = p
	}
	p.turns++
	return s
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pinned[id]
	if !ok {
		return
	}
	p.turns--
	if p.turns == 0 {
		delete(r.pinned, id)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Len()
}
