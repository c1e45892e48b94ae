// Package events delivers workflow notifications to registered listeners.
//
// Delivery is fire-and-forget: a listener that panics is logged and skipped,
// and the emitting operation never fails because of a listener. Listeners
// must tolerate duplicate delivery; wrap them with Idempotent to drop replays.
package events

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
)

// Handler receives one event
type Handler func(model.Event)

type subscription struct {
	subscriber string
	handler    Handler
}

// Bus is a registry of listeners keyed by (subscriber, topic)
type Bus struct {
	mu        sync.RWMutex
	listeners map[model.Topic]map[string]Handler
	log       *slog.Logger
	now       func() time.Time
}

// NewBus creates an empty bus
func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		listeners: make(map[model.Topic]map[string]Handler),
		log:       logger.OrDefault(log),
		now:       time.Now,
	}
}

// AddEventListener registers fn for topic under subscriber, replacing any
// previous registration for the same pair. model.TopicAll receives everything.
func (b *Bus) AddEventListener(subscriber string, topic model.Topic, fn Handler) error {
	subscriber = strings.TrimSpace(subscriber)
	if subscriber == "" {
		return apperrors.New(apperrors.CodeInvalidSubscription, "subscriber is required")
	}
	if topic == "" {
		return apperrors.New(apperrors.CodeInvalidSubscription, "topic is required")
	}
	if fn == nil {
		return apperrors.New(apperrors.CodeInvalidSubscription, "handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.listeners[topic]
	if !ok {
		subs = make(map[string]Handler)
		b.listeners[topic] = subs
	}
	subs[subscriber] = fn
	return nil
}

// RemoveEventListener unregisters the (subscriber, topic) pair.
// Reports whether a listener was removed.
func (b *Bus) RemoveEventListener(subscriber string, topic model.Topic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.listeners[topic]
	if !ok {
		return false
	}
	if _, ok := subs[subscriber]; !ok {
		return false
	}
	delete(subs, subscriber)
	if len(subs) == 0 {
		delete(b.listeners, topic)
	}
	return true
}

// Listeners returns the number of registrations for a topic
func (b *Bus) Listeners(topic model.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}

// NewEvent stamps an event with a fresh id and the bus clock
func (b *Bus) NewEvent(topic model.Topic, claimID string) model.Event {
	return model.Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		ClaimID:    claimID,
		OccurredAt: b.now().UTC(),
	}
}

// Publish delivers events in order. Callers must not hold locks that a
// listener could need.
func (b *Bus) Publish(events ...model.Event) {
	for _, evt := range events {
		for _, sub := range b.snapshot(evt.Topic) {
			b.deliver(sub, evt)
		}
	}
}

// snapshot copies the listeners for a topic so delivery happens unlocked.
// Subscribers are ordered by name for deterministic delivery.
func (b *Bus) snapshot(topic model.Topic) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var subs []subscription
	for name, h := range b.listeners[topic] {
		subs = append(subs, subscription{subscriber: name, handler: h})
	}
	if topic != model.TopicAll {
		for name, h := range b.listeners[model.TopicAll] {
			subs = append(subs, subscription{subscriber: name, handler: h})
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].subscriber < subs[j].subscriber })
	return subs
}

func (b *Bus) deliver(sub subscription, evt model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked",
				"subscriber", sub.subscriber,
				"topic", evt.Topic,
				"event_id", evt.ID,
				"panic", fmt.Sprint(r))
		}
	}()
	sub.handler(evt)
}
