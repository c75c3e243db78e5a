// Package kvstore abstracts the external key-value store the gateway
// depends on: GET/SET/SETEX/DEL/EXISTS/TTL, hash ops, set ops,
// INCR/INCRBY/EXPIRE, cursor SCAN, and pipelined multi-command batches
// backend.
package kvstore

import (
	"context"
	"time"
)

// Store is the KV driver contract consumed by auth, ratelimit, tiercache,
// and invalidate. A Redis-backed implementation is provided in redis.go;
// a fake in-memory implementation backs unit tests.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Scan returns a page of keys matching pattern starting at cursor,
	// and the cursor to resume from (0 once exhausted).
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) (keys []string, nextCursor uint64, err error)

	// Batch starts a new pipelined multi-command batch.
	Batch() Batch
}

// Batch accumulates commands for a single pipelined round trip. Exec
// reports which keys were successfully written before any error, so the
// caller can issue compensating DELs for a partially-applied batch
// and propagate it as a storage error.
type Batch interface {
	SetEx(key, value string, ttl time.Duration)
	HSet(key string, fields map[string]string)
	Expire(key string, ttl time.Duration)
	SAdd(key string, members ...string)
	Incr(key string)
	IncrBy(key string, delta int64)
	HIncrBy(key, field string, delta int64)

	// Exec runs the batch. writtenKeys lists every key that was
	// successfully acknowledged, in command order, even when err != nil.
	Exec(ctx context.Context) (writtenKeys []string, err error)
}
