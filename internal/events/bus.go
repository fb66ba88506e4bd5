// Package events provides typed publish/subscribe buses owned by the composition root.
package events

import (
	"context"
	"sort"
	"sync"
)

// Handler receives published values.
type Handler[T any] func(ctx context.Context, value T)

// Bus delivers values of type T to its subscribers. Publish runs handlers
// synchronously in subscription order. The zero value is ready to use.
type Bus[T any] struct {
	handlers map[uint64]Handler[T]
	next     uint64
	mu       sync.RWMutex
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Unsubscribe stops delivery to the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Subscribe registers h and returns its handle.
func (b *Bus[T]) Subscribe(h Handler[T]) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers == nil {
		b.handlers = make(map[uint64]Handler[T])
	}
	id := b.next
	b.next++
	b.handlers[id] = h

	return &Subscription{cancel: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}}
}

// Publish delivers value to every current subscriber. Handlers may subscribe
// or unsubscribe while being called.
func (b *Bus[T]) Publish(ctx context.Context, value T) {
	for _, h := range b.snapshot() {
		h(ctx, value)
	}
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *Bus[T]) snapshot() []Handler[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Handler[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, b.handlers[id])
	}
	return out
}
