package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zano-fusd/deposit-watcher/internal/domainerr"
)

// RedisConfig configures the Redis-backed Store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore dials a Redis-backed Store. Grounded on the cache.RedisClient
// construction pattern, generalized from go-redis/v8's KEYS-based listing to
// go-redis/v9's cursor-native SCAN/HSCAN.
func NewRedisStore(cfg RedisConfig) *redisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisStore{client: client}
}

func (r *redisStore) Scan(ctx context.Context, cursor string, pattern string, batchSize int64) (string, []string, error) {
	var c uint64
	if cursor != "" && cursor != "0" {
		var err error
		c, err = parseCursor(cursor)
		if err != nil {
			return "0", nil, domainerr.Wrap(err, "parse scan cursor")
		}
	}
	keys, next, err := r.client.Scan(ctx, c, pattern, batchSize).Result()
	if err != nil {
		return "0", nil, domainerr.RpcError(0, "kv scan failed: "+err.Error())
	}
	return formatCursor(next), keys, nil
}

func (r *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, domainerr.RpcError(0, "kv hgetall failed: "+err.Error())
	}
	return m, nil
}

func (r *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := r.client.HSet(ctx, key, args...).Err(); err != nil {
		return domainerr.RpcError(0, "kv hset failed: "+err.Error())
	}
	return nil
}

func (r *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, domainerr.RpcError(0, "kv get failed: "+err.Error())
	}
	return v, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return domainerr.RpcError(0, "kv set failed: "+err.Error())
	}
	return nil
}

func (r *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, domainerr.RpcError(0, "kv exists failed: "+err.Error())
	}
	return n > 0, nil
}

func (r *redisStore) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return domainerr.RpcError(0, "kv del failed: "+err.Error())
	}
	return nil
}

func (r *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return domainerr.RpcError(0, "kv expire failed: "+err.Error())
	}
	return nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func (r *redisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func parseCursor(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func formatCursor(n uint64) string {
	return strconv.FormatUint(n, 10)
}
