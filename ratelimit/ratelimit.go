// Package ratelimit implements the sliding-window rate limiter and
// monthly quota counter.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentcache/gateway/gwerrors"
	"github.com/agentcache/gateway/kvstore"
	"github.com/rs/zerolog"
)

const (
	bucketTTL = 120 * time.Second
	quotaTTL  = 35 * 24 * time.Hour
)

// Limiter enforces per-minute request limits and monthly quotas against
// the KV store's atomic INCR, followed by a separate EXPIRE when a
// counter is first created.
type Limiter struct {
	store  kvstore.Store
	logger zerolog.Logger
}

// New builds a Limiter.
func New(store kvstore.Store, logger zerolog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger.With().Str("component", "ratelimit").Logger()}
}

// Allow increments the sliding 1-minute bucket for limiterKey and reports
// whether the request is within rpm. On storage failure, demo keys fail
// open (availability over strict enforcement for an anonymous, low-trust
// tier); live keys fail closed, since a blanket fail-open would let a
// storage outage erase paid-tier rate limits entirely.
func (l *Limiter) Allow(ctx context.Context, limiterKey string, rpm int, failClosed bool) (allowed bool, retryAfterSeconds int, err error) {
	minute := time.Now().Unix() / 60
	key := fmt.Sprintf("rl:%s:%d", limiterKey, minute)

	count, incrErr := l.store.Incr(ctx, key)
	if incrErr != nil {
		if failClosed {
			l.logger.Warn().Err(incrErr).Str("key", limiterKey).Msg("rate limit counter unavailable, failing closed for live key")
			return false, int(bucketTTL.Seconds()), nil
		}
		l.logger.Warn().Err(incrErr).Str("key", limiterKey).Msg("rate limit counter unavailable, failing open")
		return true, 0, nil
	}
	if count == 1 {
		if expErr := l.store.Expire(ctx, key, bucketTTL); expErr != nil {
			l.logger.Warn().Err(expErr).Str("key", limiterKey).Msg("failed to set rate limit bucket ttl")
		}
	}

	if int(count) > rpm {
		retryAfterSeconds = int(60 - time.Now().Unix()%60)
		return false, retryAfterSeconds, nil
	}
	return true, 0, nil
}

// CheckQuota reports whether digest's current monthly usage is below
// limit, without incrementing it. Called before the tier engine runs.
func (l *Limiter) CheckQuota(ctx context.Context, digest string, limit int) (bool, error) {
	key := quotaKey(digest)
	v, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return false, gwerrors.Wrap(gwerrors.KindStorageError, err, "quota lookup failed")
	}
	if !ok {
		return true, nil
	}
	count, _ := strconv.Atoi(v)
	return count < limit, nil
}

// IncrementQuota bumps digest's monthly usage counter. Called after a
// successful store/get so failed lookups don't consume quota.
func (l *Limiter) IncrementQuota(ctx context.Context, digest string) error {
	key := quotaKey(digest)
	n, err := l.store.Incr(ctx, key)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindStorageError, err, "quota increment failed")
	}
	if n == 1 {
		if expErr := l.store.Expire(ctx, key, quotaTTL); expErr != nil {
			l.logger.Warn().Err(expErr).Str("digest", digest).Msg("failed to set quota counter ttl")
		}
	}
	return nil
}

func quotaKey(digest string) string {
	return fmt.Sprintf("quota:%s:m:%s", digest, time.Now().Format("2006-01"))
}
