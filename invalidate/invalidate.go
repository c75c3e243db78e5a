// Package invalidate implements targeted cache invalidation: exact key,
// pattern sweep, tag-set resolution, and schema-version sets, bounded by
// key-count and iteration caps.
package invalidate

import (
	"context"
	"strings"
	"time"

	"github.com/agentcache/gateway/config"
	"github.com/agentcache/gateway/fingerprint"
	"github.com/agentcache/gateway/gwerrors"
	"github.com/agentcache/gateway/kvstore"
	"github.com/rs/zerolog"
)

// Request describes one invalidation call. Exactly one primary mode
// (Key, Pattern, Tags, or InvalidateSchema/InvalidateNamespace) should be
// set; Engine.Invalidate rejects ambiguous or empty requests.
type Request struct {
	Namespace string

	Key     string // exact-key mode
	Pattern string // pattern-sweep mode, scoped by caller (e.g. kind prefix)

	Tags []string // tag-union mode

	InvalidateSchema bool // schema-version mode
	DBName           string
	SchemaVersion    string

	InvalidateNamespace bool // namespace-wide sweep; requires Confirm
	Confirm             bool

	OlderThan time.Duration // modifier: skip entries newer than this age
	URL       string        // modifier: skip entries whose source_url differs
}

// Result reports the outcome of an invalidation run.
type Result struct {
	InvalidatedCount int
	ScopeDescriptor  string
	ElapsedMs        int64
}

// Engine runs invalidation requests against a Store.
type Engine struct {
	store  kvstore.Store
	cfg    *config.Config
	logger zerolog.Logger
}

// New builds an invalidation Engine.
func New(store kvstore.Store, cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{store: store, cfg: cfg, logger: logger.With().Str("component", "invalidate").Logger()}
}

type modifiers struct {
	olderThan time.Duration
	url       string
}

// Invalidate dispatches to the mode implied by the populated Request
// fields and returns the bounded work performed.
func (e *Engine) Invalidate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	mod := modifiers{olderThan: req.OlderThan, url: req.URL}

	modes := 0
	for _, set := range []bool{req.Key != "", req.InvalidateNamespace, req.Pattern != "", len(req.Tags) > 0, req.InvalidateSchema} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return Result{}, gwerrors.New(gwerrors.KindInvalidScope, "exactly one invalidation mode may be supplied")
	}

	switch {
	case req.Key != "":
		return e.invalidateExact(ctx, req.Key, start)
	case req.InvalidateNamespace:
		if !req.Confirm {
			return Result{}, gwerrors.New(gwerrors.KindScopeTooBroad, "namespace-wide invalidation requires confirm=true")
		}
		pattern := "*" + req.Namespace + "*"
		return e.invalidatePattern(ctx, pattern, e.cfg.ScanMaxNamespaceKeys, "namespace:"+req.Namespace, mod, start)
	case req.Pattern != "":
		return e.invalidatePattern(ctx, req.Pattern, e.cfg.ScanMaxKeys, "pattern:"+req.Pattern, mod, start)
	case len(req.Tags) > 0:
		return e.invalidateTags(ctx, req, mod, start)
	case req.InvalidateSchema:
		return e.invalidateSchema(ctx, req, mod, start)
	default:
		return Result{}, gwerrors.New(gwerrors.KindInvalidScope, "no invalidation mode supplied")
	}
}

func (e *Engine) invalidateExact(ctx context.Context, key string, start time.Time) (Result, error) {
	n, err := e.store.Del(ctx, key)
	if err != nil {
		return Result{}, gwerrors.Wrap(gwerrors.KindStorageError, err, "exact delete failed")
	}
	if _, err := e.store.Del(ctx, fingerprint.MetaKey(key)); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("metadata delete failed")
	}
	e.recordInvalidation(ctx, int(n))
	return Result{InvalidatedCount: int(n), ScopeDescriptor: "key:" + key, ElapsedMs: elapsedMs(start)}, nil
}

func (e *Engine) invalidatePattern(ctx context.Context, pattern string, keyCap int, scopeDesc string, mod modifiers, start time.Time) (Result, error) {
	var cursor uint64
	var matched []string

	for iter := 0; iter < e.cfg.ScanIterCap; iter++ {
		keys, next, err := e.store.Scan(ctx, cursor, pattern, 100)
		if err != nil {
			return Result{}, gwerrors.Wrap(gwerrors.KindStorageError, err, "scan failed")
		}
		matched = append(matched, keys...)
		cursor = next
		if len(matched) >= keyCap || cursor == 0 {
			break
		}
	}
	if len(matched) > keyCap {
		matched = matched[:keyCap]
	}

	filtered := e.applyModifiers(ctx, matched, mod)
	count := e.deleteBatched(ctx, filtered)
	e.recordInvalidation(ctx, count)
	return Result{InvalidatedCount: count, ScopeDescriptor: scopeDesc, ElapsedMs: elapsedMs(start)}, nil
}

func (e *Engine) invalidateTags(ctx context.Context, req Request, mod modifiers, start time.Time) (Result, error) {
	memberSet := make(map[string]struct{})
	tagKeys := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		tagKey := fingerprint.TagKey(req.Namespace, tag)
		tagKeys = append(tagKeys, tagKey)
		members, err := e.store.SMembers(ctx, tagKey)
		if err != nil {
			return Result{}, gwerrors.Wrap(gwerrors.KindStorageError, err, "tag resolution failed")
		}
		for _, m := range members {
			memberSet[m] = struct{}{}
		}
	}

	keys := make([]string, 0, len(memberSet))
	for k := range memberSet {
		keys = append(keys, k)
	}
	keys = e.applyModifiers(ctx, keys, mod)

	count := e.deleteBatched(ctx, keys)
	if _, err := e.store.Del(ctx, tagKeys...); err != nil {
		e.logger.Warn().Err(err).Msg("tag set cleanup failed")
	}
	e.recordInvalidation(ctx, count)
	return Result{InvalidatedCount: count, ScopeDescriptor: "tags:" + strings.Join(req.Tags, ","), ElapsedMs: elapsedMs(start)}, nil
}

func (e *Engine) invalidateSchema(ctx context.Context, req Request, mod modifiers, start time.Time) (Result, error) {
	if req.DBName == "" || req.SchemaVersion == "" {
		return Result{}, gwerrors.New(gwerrors.KindInvalidInput, "schema invalidation requires db_name and schema_version")
	}
	schemaKey := fingerprint.SchemaKey(req.Namespace, req.DBName, req.SchemaVersion)
	members, err := e.store.SMembers(ctx, schemaKey)
	if err != nil {
		return Result{}, gwerrors.Wrap(gwerrors.KindStorageError, err, "schema set resolution failed")
	}
	members = e.applyModifiers(ctx, members, mod)

	count := e.deleteBatched(ctx, members)
	if _, err := e.store.Del(ctx, schemaKey); err != nil {
		e.logger.Warn().Err(err).Msg("schema set cleanup failed")
	}
	e.recordInvalidation(ctx, count)
	desc := "schema:" + req.Namespace + ":" + req.DBName + ":" + req.SchemaVersion
	return Result{InvalidatedCount: count, ScopeDescriptor: desc, ElapsedMs: elapsedMs(start)}, nil
}

// applyModifiers filters candidates by olderThan/url against their
// metadata hash; entries whose metadata can't be fetched are kept
// (best-effort — a failed read shouldn't silently protect an entry).
func (e *Engine) applyModifiers(ctx context.Context, keys []string, mod modifiers) []string {
	if mod.olderThan <= 0 && mod.url == "" {
		return keys
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		meta, err := e.store.HGetAll(ctx, fingerprint.MetaKey(k))
		if err != nil {
			out = append(out, k)
			continue
		}
		if mod.olderThan > 0 {
			cachedAt, parseErr := time.Parse(time.RFC3339, meta["cached_at"])
			if parseErr == nil && time.Since(cachedAt) < mod.olderThan {
				continue
			}
		}
		if mod.url != "" && meta["source_url"] != mod.url {
			continue
		}
		out = append(out, k)
	}
	return out
}

// deleteBatched removes keys (and their metadata siblings) in pipeline
// batches of cfg.DeleteBatchSize to bound worst-case work per call.
func (e *Engine) deleteBatched(ctx context.Context, keys []string) int {
	batchSize := e.cfg.DeleteBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	count := 0
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]
		delKeys := make([]string, 0, len(chunk)*2)
		for _, k := range chunk {
			delKeys = append(delKeys, k, fingerprint.MetaKey(k))
		}
		if _, err := e.store.Del(ctx, delKeys...); err != nil {
			e.logger.Warn().Err(err).Msg("batch delete failed")
			continue
		}
		count += len(chunk)
	}
	return count
}

func (e *Engine) recordInvalidation(ctx context.Context, count int) {
	if count == 0 {
		return
	}
	date := time.Now().Format("2006-01-02")
	if _, err := e.store.IncrBy(ctx, fingerprint.DailyInvalidationKey(date), int64(count)); err != nil {
		e.logger.Debug().Err(err).Msg("invalidation counter increment failed")
	}
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
