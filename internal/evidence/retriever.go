package evidence

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/cache"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
)

// Retriever fetches advisory evidence for a claim. Suggestions never
// influence consensus; reviewers decide whether to use them.
type Retriever interface {
	Name() string
	Suggest(ctx context.Context, claim model.Claim) ([]model.Suggestion, error)
}

// Static returns a fixed suggestion list for every claim
type Static struct {
	Suggestions []model.Suggestion
}

// Name returns the retriever name
func (s *Static) Name() string {
	return "static"
}

// Suggest returns a copy of the fixed list
func (s *Static) Suggest(ctx context.Context, _ model.Claim) ([]model.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.Suggestions), nil
}

// Store is the cache backend a Cached retriever writes through
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// Cached memoizes another retriever by claim content
type Cached struct {
	next  Retriever
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

// NewCached wraps next with a cache; ttl 0 uses the store default
func NewCached(next Retriever, store Store, ttl time.Duration, log *slog.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, log: logger.OrDefault(log)}
}

// Name returns the wrapped retriever's name
func (c *Cached) Name() string {
	return c.next.Name()
}

// Suggest serves from cache when possible. Cache failures are logged and
// never fail the lookup.
func (c *Cached) Suggest(ctx context.Context, claim model.Claim) ([]model.Suggestion, error) {
	key := cache.Key("retrieval", c.next.Name(), string(claim.Type), strings.TrimSpace(claim.Content))

	if data, ok := c.store.Get(key); ok {
		var cached []model.Suggestion
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		c.log.Warn("discarding unreadable cached suggestions", "claim_id", claim.ID)
	}

	suggestions, err := c.next.Suggest(ctx, claim)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(suggestions)
	if err == nil {
		err = c.store.Set(key, data, c.ttl)
	}
	if err != nil {
		c.log.Warn("caching suggestions failed", "claim_id", claim.ID, "error", err)
	}
	return suggestions, nil
}

// NewRetriever builds the configured retriever, or nil when retrieval is off
func NewRetriever(cfg model.RetrievalConfig, store Store, cacheTTL time.Duration, log *slog.Logger) (Retriever, error) {
	var r Retriever
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "openai":
		o, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		r = o
	case "ollama":
		o, err := NewOllama(cfg)
		if err != nil {
			return nil, err
		}
		r = o
	default:
		return nil, apperrors.Newf(apperrors.CodeRetrievalUnavailable, "unsupported retrieval provider %q", cfg.Provider)
	}

	if store != nil {
		r = NewCached(r, store, cacheTTL, log)
	}
	return r, nil
}
