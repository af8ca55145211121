package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	count, err := s.Increment(ctx, "nurse_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.Increment(ctx, "nurse_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = s.Decrement(ctx, "nurse_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Counts for other groups are independent.
	count, err = s.Get(ctx, "surgeon_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLocalDecrementClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	// Decrementing a group that was never counted must not go negative.
	count, err := s.Decrement(ctx, "nurse_ward_9")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = s.Increment(ctx, "nurse_ward_9")
	require.NoError(t, err)
	_, err = s.Decrement(ctx, "nurse_ward_9")
	require.NoError(t, err)

	// Double disconnect.
	count, err = s.Decrement(ctx, "nurse_ward_9")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLocalExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Increment(ctx, "nurse_ward_1")
	require.NoError(t, err)

	now = now.Add(TTLSeconds*time.Second + time.Minute)

	count, err := s.Get(ctx, "nurse_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLocalReset(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	_, err := s.Increment(ctx, "nurse_ward_1")
	require.NoError(t, err)
	_, err = s.Increment(ctx, "surgeon_ward_2")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	count, err := s.Get(ctx, "nurse_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	count, err = s.Get(ctx, "surgeon_ward_2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s, err := NewRedisStore(context.Background(), client, zerolog.Nop())
	require.NoError(t, err)
	return s, mr, client
}

func TestRedisIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newRedisStore(t)

	count, err := s.Increment(ctx, "nurse_ward_5")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.Increment(ctx, "nurse_ward_5")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = s.Decrement(ctx, "nurse_ward_5")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// TTL is refreshed on every write.
	assert.Greater(t, mr.TTL(Key("nurse_ward_5")), time.Duration(0))
}

func TestRedisDecrementClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newRedisStore(t)

	count, err := s.Decrement(ctx, "surgeon_ward_2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = s.Get(ctx, "surgeon_ward_2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRedisGetAbsent(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newRedisStore(t)

	count, err := s.Get(ctx, "nurse_ward_404")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newRedisStore(t)

	_, err := s.Increment(ctx, "nurse_ward_1")
	require.NoError(t, err)

	mr.FastForward(TTLSeconds*time.Second + time.Minute)

	count, err := s.Get(ctx, "nurse_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRedisReset(t *testing.T) {
	ctx := context.Background()
	s, mr, client := newRedisStore(t)

	_, err := s.Increment(ctx, "nurse_ward_1")
	require.NoError(t, err)
	_, err = s.Increment(ctx, "surgeon_ward_1")
	require.NoError(t, err)

	// Keys outside the presence namespace survive the reset.
	require.NoError(t, client.Set(ctx, "unrelated", "1", 0).Err())

	require.NoError(t, s.Reset(ctx))

	count, err := s.Get(ctx, "nurse_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	count, err = s.Get(ctx, "surgeon_ward_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	assert.True(t, mr.Exists("unrelated"))
}
