package bus

import (
	"context"
	"sync"
)

// LocalBus fans events out to subscribers within one process. It backs
// development and tests, and serves as the delivery registry inside
// RedisBus.
type LocalBus struct {
	mu     sync.RWMutex
	groups map[string]map[string]Subscriber
}

// NewLocalBus creates an in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{groups: make(map[string]map[string]Subscriber)}
}

// Subscribe adds a subscriber to a group. Subscribing twice is a no-op.
func (b *LocalBus) Subscribe(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.groups[group]
	if !ok {
		subs = make(map[string]Subscriber)
		b.groups[group] = subs
	}
	subs[sub.ID()] = sub
}

// Unsubscribe removes a subscriber from a group. Unknown memberships are
// ignored.
func (b *LocalBus) Unsubscribe(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.groups[group]
	if !ok {
		return
	}
	delete(subs, sub.ID())
	if len(subs) == 0 {
		delete(b.groups, group)
	}
}

// Publish delivers an event to every current subscriber of the group.
func (b *LocalBus) Publish(ctx context.Context, group string, ev *Event) error {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.groups[group]))
	for _, sub := range b.groups[group] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.Deliver(ev)
	}
	return nil
}

// Close is a no-op for the local bus.
func (b *LocalBus) Close() error {
	return nil
}

// subscriberCount reports the current size of a group, for tests.
func (b *LocalBus) subscriberCount(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[group])
}
