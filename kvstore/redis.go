package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentcache/gateway/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a real Redis deployment, built by
// parsing the configured URL and constructing a client from it.
type RedisStore struct {
	c *redis.Client
}

// NewRedisStore creates a Store from the configured Redis URL.
func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &RedisStore{c: redis.NewClient(opt)}, nil
}

// Ping verifies connectivity to Redis.
func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.c.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.c.Set(ctx, key, value, 0).Err()
}

func (r *RedisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return r.c.Del(ctx, keys...).Result()
}

func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.c.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.c.TTL(ctx, key).Result()
}

func (r *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.c.Expire(ctx, key, ttl).Err()
}

func (r *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return r.c.HSet(ctx, key, args...).Err()
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.c.HGetAll(ctx, key).Result()
}

func (r *RedisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return r.c.HIncrBy(ctx, key, field, delta).Result()
}

func (r *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.c.SAdd(ctx, key, args...).Err()
}

func (r *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.c.SMembers(ctx, key).Result()
}

func (r *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return r.c.Incr(ctx, key).Result()
}

func (r *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return r.c.IncrBy(ctx, key, delta).Result()
}

func (r *RedisStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := r.c.Scan(ctx, cursor, pattern, count).Result()
	return keys, next, err
}

func (r *RedisStore) Batch() Batch {
	return &redisBatch{pipe: r.c.Pipeline()}
}

// redisBatch records each queued command's keys so Exec can report which
// writes landed before a mid-pipeline failure.
type redisBatch struct {
	pipe redis.Pipeliner
	keys []string
}

func (b *redisBatch) SetEx(key, value string, ttl time.Duration) {
	b.pipe.Set(context.Background(), key, value, ttl)
	b.keys = append(b.keys, key)
}

func (b *redisBatch) HSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	b.pipe.HSet(context.Background(), key, args...)
	b.keys = append(b.keys, key)
}

func (b *redisBatch) Expire(key string, ttl time.Duration) {
	b.pipe.Expire(context.Background(), key, ttl)
	// Expire doesn't introduce a new key to compensate for; the key it
	// targets was already recorded by the command that created it.
	b.keys = append(b.keys, "")
}

func (b *redisBatch) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	b.pipe.SAdd(context.Background(), key, args...)
	b.keys = append(b.keys, key)
}

func (b *redisBatch) Incr(key string) {
	b.pipe.Incr(context.Background(), key)
	b.keys = append(b.keys, key)
}

func (b *redisBatch) IncrBy(key string, delta int64) {
	b.pipe.IncrBy(context.Background(), key, delta)
	b.keys = append(b.keys, key)
}

func (b *redisBatch) HIncrBy(key, field string, delta int64) {
	b.pipe.HIncrBy(context.Background(), key, field, delta)
	b.keys = append(b.keys, key)
}

// Exec dispatches the pipeline and walks individual command results so it
// can report exactly which keys were acknowledged before the first error —
// the caller uses this to issue compensating DELs.
func (b *redisBatch) Exec(ctx context.Context) ([]string, error) {
	cmds, err := b.pipe.Exec(ctx)
	if err == nil {
		return b.keys, nil
	}

	var written []string
	seen := make(map[string]bool)
	for i, cmd := range cmds {
		if i >= len(b.keys) || b.keys[i] == "" {
			continue
		}
		if cmd.Err() == nil && !seen[b.keys[i]] {
			written = append(written, b.keys[i])
			seen[b.keys[i]] = true
		}
	}
	return written, err
}
