package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSub records delivered events for assertions.
type captureSub struct {
	id string

	mu     sync.Mutex
	events []*Event
}

func newCaptureSub(id string) *captureSub {
	return &captureSub{id: id}
}

func (c *captureSub) ID() string { return c.id }

func (c *captureSub) Deliver(ev *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSub) snapshot() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Event(nil), c.events...)
}

func (c *captureSub) waitFor(t *testing.T, n int) []*Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := c.snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(c.snapshot()))
	return nil
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("session-1", "chat_message", map[string]int{"x": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "session-1", ev.Origin)
	assert.Equal(t, "chat_message", ev.Type)
	assert.JSONEq(t, `{"x":1}`, string(ev.Payload))
}

func TestLocalPublishFIFO(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBus()
	sub := newCaptureSub("s1")
	b.Subscribe("nurse_ward_1", sub)

	for i := 0; i < 10; i++ {
		ev, err := NewEvent("origin", fmt.Sprintf("type_%d", i), nil)
		require.NoError(t, err)
		require.NoError(t, b.Publish(ctx, "nurse_ward_1", ev))
	}

	events := sub.snapshot()
	require.Len(t, events, 10)
	for i, ev := range events {
		assert.Equal(t, fmt.Sprintf("type_%d", i), ev.Type)
	}
}

func TestLocalPublishNoSubscribers(t *testing.T) {
	b := NewLocalBus()
	ev, err := NewEvent("origin", "chat_message", nil)
	require.NoError(t, err)
	assert.NoError(t, b.Publish(context.Background(), "empty_group", ev))
}

func TestLocalSubscribeIdempotent(t *testing.T) {
	b := NewLocalBus()
	sub := newCaptureSub("s1")

	b.Subscribe("g", sub)
	b.Subscribe("g", sub)
	assert.Equal(t, 1, b.subscriberCount("g"))

	ev, err := NewEvent("origin", "t", nil)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "g", ev))
	assert.Len(t, sub.snapshot(), 1)
}

func TestLocalUnsubscribe(t *testing.T) {
	b := NewLocalBus()
	sub := newCaptureSub("s1")

	b.Subscribe("g", sub)
	b.Unsubscribe("g", sub)
	// Unsubscribing twice, or from a group never joined, is a no-op.
	b.Unsubscribe("g", sub)
	b.Unsubscribe("other", sub)

	ev, err := NewEvent("origin", "t", nil)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "g", ev))
	assert.Empty(t, sub.snapshot())
}

func TestLocalDeliversOnlyToGroup(t *testing.T) {
	b := NewLocalBus()
	nurse := newCaptureSub("nurse")
	surgeon := newCaptureSub("surgeon")
	b.Subscribe("nurse_ward_1", nurse)
	b.Subscribe("surgeon_ward_1", surgeon)

	ev, err := NewEvent("origin", "chat_message", nil)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "nurse_ward_1", ev))

	assert.Len(t, nurse.snapshot(), 1)
	assert.Empty(t, surgeon.snapshot())
}

func newRedisBus(t *testing.T, mr *miniredis.Miniredis) *RedisBus {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	b, err := NewRedisBus(context.Background(), client, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRedisBusDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	b := newRedisBus(t, mr)

	sub := newCaptureSub("s1")
	b.Subscribe("nurse_ward_1", sub)

	ev, err := NewEvent("origin", "chat_message", map[string]string{"hello": "ward"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "nurse_ward_1", ev))

	events := sub.waitFor(t, 1)
	assert.Equal(t, "chat_message", events[0].Type)
	assert.Equal(t, ev.ID, events[0].ID)
}

func TestRedisBusCrossInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	publisher := newRedisBus(t, mr)
	receiver := newRedisBus(t, mr)

	sub := newCaptureSub("s1")
	receiver.Subscribe("surgeon_ward_2", sub)

	ev, err := NewEvent("origin", "chat_message", nil)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), "surgeon_ward_2", ev))

	events := sub.waitFor(t, 1)
	assert.Equal(t, ev.ID, events[0].ID)
}

func TestRedisBusUnsubscribeStopsDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	b := newRedisBus(t, mr)

	sub := newCaptureSub("s1")
	b.Subscribe("g", sub)
	b.Unsubscribe("g", sub)

	ev, err := NewEvent("origin", "t", nil)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "g", ev))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sub.snapshot())
}
