// Package presence tracks how many sessions are connected per
// (role, location) group. Counts are shared mutable state touched by
// every connect and disconnect, so every mutation goes through the
// atomic Increment/Decrement contract; callers never read-then-write.
package presence

import "context"

// TTLSeconds bounds the lifetime of a count after its last write. Counts
// only describe live connections, so a stale entry is worthless after an
// hour.
const TTLSeconds = 3600

// keyPrefix namespaces presence counts in the shared key-value store.
const keyPrefix = "user_count:"

// Key returns the storage key for a group's connected-session count.
func Key(group string) string {
	return keyPrefix + group
}

// Store is the presence counter contract. Increment and Decrement are
// atomic under arbitrary concurrent calls for the same group; Decrement
// clamps at zero so a double disconnect can never corrupt the count.
type Store interface {
	Increment(ctx context.Context, group string) (int64, error)
	Decrement(ctx context.Context, group string) (int64, error)
	Get(ctx context.Context, group string) (int64, error)
	// Reset removes every presence count. Called once at startup:
	// counts from a previous process generation describe sessions that
	// no longer exist.
	Reset(ctx context.Context) error
	Close() error
}
