package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// channelPrefix namespaces bus traffic on the shared Redis server.
const channelPrefix = "comms:"

// RedisBus carries events over Redis pub/sub so subscribers in one
// server instance receive events published from another. Local delivery
// also goes through Redis: the publishing instance receives its own
// publish via its subscription, which keeps single- and multi-instance
// behavior identical.
type RedisBus struct {
	client *redis.Client
	local  *LocalBus
	pubsub *redis.PubSub
	logger zerolog.Logger

	// mu serializes membership changes so the Redis subscription set
	// stays in step with the local registry.
	mu sync.Mutex
}

// NewRedisBus creates a bus backed by an existing Redis client and
// starts its receive loop.
func NewRedisBus(ctx context.Context, client *redis.Client, logger zerolog.Logger) (*RedisBus, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	b := &RedisBus{
		client: client,
		local:  NewLocalBus(),
		pubsub: client.Subscribe(ctx),
		logger: logger,
	}
	go b.receive()
	return b, nil
}

// Subscribe adds a subscriber to a group, opening the Redis subscription
// on the group's first local member.
func (b *RedisBus) Subscribe(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.local.subscriberCount(group)
	b.local.Subscribe(group, sub)
	if before == 0 {
		if err := b.pubsub.Subscribe(context.Background(), channelPrefix+group); err != nil {
			b.logger.Error().Err(err).Str("group", group).Msg("redis subscribe failed")
		}
	}
}

// Unsubscribe removes a subscriber, closing the Redis subscription when
// the group's last local member leaves.
func (b *RedisBus) Unsubscribe(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.local.subscriberCount(group)
	b.local.Unsubscribe(group, sub)
	if before > 0 && b.local.subscriberCount(group) == 0 {
		if err := b.pubsub.Unsubscribe(context.Background(), channelPrefix+group); err != nil {
			b.logger.Error().Err(err).Str("group", group).Msg("redis unsubscribe failed")
		}
	}
}

// Publish sends an event to the group's Redis channel. Delivery to local
// subscribers happens in the receive loop.
func (b *RedisBus) Publish(ctx context.Context, group string, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+group, data).Err()
}

// Close stops the receive loop.
func (b *RedisBus) Close() error {
	return b.pubsub.Close()
}

func (b *RedisBus) receive() {
	for msg := range b.pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed bus event")
			continue
		}
		group := strings.TrimPrefix(msg.Channel, channelPrefix)
		_ = b.local.Publish(context.Background(), group, &ev)
	}
}
