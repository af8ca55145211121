package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// decrementScript decrements a count without letting it go below zero.
// The clamp has to happen server-side so concurrent decrements of the
// same key stay atomic.
var decrementScript = redis.NewScript(`
	local value = redis.call('DECR', KEYS[1])
	if value < 0 then
		redis.call('SET', KEYS[1], 0)
		value = 0
	end
	redis.call('EXPIRE', KEYS[1], ARGV[1])
	return value
`)

// RedisStore keeps presence counts in Redis so every server instance
// sees the same numbers.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a presence store backed by an existing Redis client.
func NewRedisStore(ctx context.Context, client *redis.Client, logger zerolog.Logger) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Increment atomically increments a group's count and refreshes its TTL.
func (s *RedisStore) Increment(ctx context.Context, group string) (int64, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, Key(group))
	pipe.Expire(ctx, Key(group), TTLSeconds*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Decrement atomically decrements a group's count, clamped at zero, and
// refreshes its TTL.
func (s *RedisStore) Decrement(ctx context.Context, group string) (int64, error) {
	return decrementScript.Run(ctx, s.client, []string{Key(group)}, TTLSeconds).Int64()
}

// Get returns the current count, or zero if the key is absent or expired.
func (s *RedisStore) Get(ctx context.Context, group string) (int64, error) {
	count, err := s.client.Get(ctx, Key(group)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Reset deletes every presence count. SCAN is preferred; if the server
// rejects it, fall back to KEYS plus a bulk delete.
func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.resetWithScan(ctx); err == nil {
		s.logger.Info().Msg("cleared presence counts using key scan")
		return nil
	}

	keys, err := s.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	s.logger.Info().Int("keys", len(keys)).Msg("cleared presence counts using bulk delete")
	return nil
}

func (s *RedisStore) resetWithScan(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
