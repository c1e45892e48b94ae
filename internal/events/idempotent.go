package events

import (
	"time"

	"github.com/ppiankov/aletheia/internal/cache"
	"github.com/ppiankov/aletheia/internal/model"
)

// Seen records event ids that were already handled
type Seen interface {
	SetIfAbsent(key string, value []byte, ttl time.Duration) bool
}

// Idempotent wraps h so that an event id is handled at most once within ttl
func Idempotent(h Handler, seen Seen, ttl time.Duration) Handler {
	return func(evt model.Event) {
		if !seen.SetIfAbsent(cache.Key("event", evt.ID), []byte{1}, ttl) {
			return
		}
		h(evt)
	}
}

// NewSeen returns an in-memory dedup set for Idempotent
func NewSeen(ttl time.Duration) *cache.MemoryCache {
	return cache.NewMemoryCache(ttl, ttl)
}
