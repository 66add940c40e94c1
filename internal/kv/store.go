// Package kv defines the typed key-value operation set the rest of the
// watcher depends on (spec §4.1): cursored scan, hash get-all/set, string
// get/set with optional TTL, existence, expire-refresh, delete, and JSON
// convenience wrappers. All operations are single-key atomic.
package kv

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zano-fusd/deposit-watcher/internal/domainerr"
)

// Store is the interface every higher-level package depends on. The Redis
// client in redis.go and the in-memory fake in memstore.go both satisfy it.
type Store interface {
	// Scan returns the next cursor and the batch of matched keys. Callers
	// loop until the returned cursor is "0".
	Scan(ctx context.Context, cursor string, pattern string, batchSize int64) (nextCursor string, keys []string, err error)

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error

	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Close() error
}

// GetJSON reads key and unmarshals it into v. A missing key returns
// (false, nil). A malformed payload returns (false, nil) as well — parse
// errors surface as absent, never as a panic or a propagated error, per
// spec §4.1's "parse errors surface as null" rule.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON marshals v and writes it as a string value with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return domainerr.Wrap(err, "marshal json for kv set")
	}
	return s.Set(ctx, key, string(raw), ttl)
}
