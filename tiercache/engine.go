// Package tiercache orchestrates the three-tier cache hierarchy: L1
// in-process, L2 exact-KV, and L3 semantic-vector.
package tiercache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentcache/gateway/config"
	"github.com/agentcache/gateway/fingerprint"
	"github.com/agentcache/gateway/gwerrors"
	"github.com/agentcache/gateway/kvstore"
	"github.com/agentcache/gateway/vectorstore"
	"github.com/rs/zerolog"
)

// Tier identifies which cache level served a hit.
type Tier string

const (
	TierL1   Tier = "L1"
	TierL2   Tier = "L2"
	TierL3   Tier = "L3"
	TierNone Tier = ""
)

// GetInput is a tier-agnostic lookup request.
type GetInput struct {
	Kind      fingerprint.Kind
	Namespace string

	LLM  *fingerprint.LLMInputs
	Tool *fingerprint.ToolInputs
	DB   *fingerprint.DBInputs

	// DBName is part of the structured key but not of the db fingerprint's
	// canonical field order (query, params, schema_version).
	DBName string

	L3Enabled           bool
	SimilarityThreshold float64 // 0 => config default
	EmbeddingText       string  // override; default concatenates LLM messages
}

// GetResult is the outcome of a tier lookup.
type GetResult struct {
	Hit              bool
	Tier             Tier
	Payload          string
	Similarity       float64
	CacheKeyFragment string
	Metadata         map[string]string
}

// SetInput is a tier-agnostic store request.
type SetInput struct {
	Kind      fingerprint.Kind
	Namespace string

	LLM  *fingerprint.LLMInputs
	Tool *fingerprint.ToolInputs
	DB   *fingerprint.DBInputs
	DBName string

	Payload       string
	TTL           time.Duration // 0 => kind default
	Tags          []string
	SchemaVersion string
	RowCount      int
	SourceURL     string
	L3Enabled     bool

	// KeyDigest, when non-empty, attributes the write to a live tenant's
	// per-tenant usage counter. Usage counters are a policy knob; this
	// gateway increments them for live keys only.
	KeyDigest string
}

// SetResult is the outcome of a tier write.
type SetResult struct {
	Key string
	TTL time.Duration
}

// Engine orchestrates lookups and writes across the L1/L2/L3 tiers.
type Engine struct {
	store   kvstore.Store
	vectors vectorstore.Store
	embed   vectorstore.EmbeddingFunc
	l1      *l1Cache
	tasks   *taskQueue
	cfg     *config.Config
	logger  zerolog.Logger
}

// NewEngine builds a tier Engine. embed may be nil when L3 is never used.
func NewEngine(cfg *config.Config, store kvstore.Store, vectors vectorstore.Store, embed vectorstore.EmbeddingFunc, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		vectors: vectors,
		embed:   embed,
		l1:      newL1Cache(10000),
		tasks:   newTaskQueue(logger, 1000, cfg.RequestDeadline),
		cfg:     cfg,
		logger:  logger.With().Str("component", "tiercache").Logger(),
	}
}

// Close drains the fire-and-forget metadata task queue.
func (e *Engine) Close() {
	e.tasks.close()
}

// Get runs the GET flow: L1 → L2 → L3(llm only), falling
// through on a miss at each tier.
func (e *Engine) Get(ctx context.Context, in GetInput) (GetResult, error) {
	key, digest, err := e.structuredKey(in.Kind, in.Namespace, in.LLM, in.Tool, in.DB, in.DBName)
	if err != nil {
		return GetResult{}, err
	}

	if payload, ok := e.l1.get(key); ok {
		return GetResult{Hit: true, Tier: TierL1, Payload: payload, CacheKeyFragment: fragment(key)}, nil
	}

	payload, found, err := e.store.Get(ctx, key)
	if err != nil {
		// KV read failure during GET is treated as a miss for this tier;
		// the gateway continues to the next tier rather than failing the
		// whole request.
		e.logger.Warn().Err(err).Str("key", key).Msg("L2 read failed, treating as miss")
	}
	if found {
		metaKey := fingerprint.MetaKey(key)
		meta, metaErr := e.store.HGetAll(ctx, metaKey)
		if metaErr != nil {
			e.logger.Debug().Err(metaErr).Str("key", key).Msg("metadata fetch failed, serving hit with defaults")
			meta = map[string]string{}
		}

		e.queueL2HitAccounting(metaKey, in.Kind)

		return GetResult{Hit: true, Tier: TierL2, Payload: payload, CacheKeyFragment: fragment(key), Metadata: meta}, nil
	}

	if in.Kind == fingerprint.KindLLM && in.L3Enabled && e.vectors != nil && e.embed != nil {
		result, ok := e.tryL3(ctx, in, digest)
		if ok {
			return result, nil
		}
	}

	e.queueMiss()
	return GetResult{Hit: false, CacheKeyFragment: fragment(key)}, nil
}

func (e *Engine) tryL3(ctx context.Context, in GetInput, digest string) (GetResult, bool) {
	threshold := in.SimilarityThreshold
	if threshold <= 0 {
		threshold = e.cfg.SemanticThresholdDefault
	}

	text := in.EmbeddingText
	if text == "" {
		text = concatMessages(in.LLM.Messages)
	}

	embedding, err := e.embed(ctx, text)
	if err != nil {
		e.logger.Debug().Err(err).Msg("embedding computation failed, L3 lookup skipped")
		return GetResult{}, false
	}

	matches, err := e.vectors.Query(ctx, embedding, 1, vectorstore.Filter{
		Namespace: in.Namespace,
		Provider:  in.LLM.Provider,
		Model:     in.LLM.Model,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("vector index query failed")
		return GetResult{}, false
	}
	if len(matches) == 0 || matches[0].Score < threshold {
		return GetResult{}, false
	}

	best := matches[0]
	e.queueL3HitAccounting()

	return GetResult{
		Hit:              true,
		Tier:             TierL3,
		Payload:          best.Record.Response,
		Similarity:       best.Score,
		CacheKeyFragment: fragment(digest),
	}, true
}

// Set runs the SET flow: a single pipelined batch writing
// the entry, its metadata, and index memberships, with an async L3 upsert
// for llm entries.
func (e *Engine) Set(ctx context.Context, in SetInput) (SetResult, error) {
	key, digest, err := e.structuredKey(in.Kind, in.Namespace, in.LLM, in.Tool, in.DB, in.DBName)
	if err != nil {
		return SetResult{}, err
	}
	if in.TTL < 0 {
		return SetResult{}, gwerrors.New(gwerrors.KindInvalidInput, "ttl must be non-negative")
	}

	ttl := in.TTL
	if ttl == 0 {
		ttl = e.defaultTTL(in.Kind)
	}

	metaKey := fingerprint.MetaKey(key)
	now := time.Now()

	batch := e.store.Batch()
	batch.SetEx(key, in.Payload, ttl)

	fields := map[string]string{
		"cached_at":     now.Format(time.RFC3339),
		"ttl":           strconv.FormatInt(int64(ttl.Seconds()), 10),
		"access_count":  "1",
		"schema_version": in.SchemaVersion,
	}
	if in.Kind == fingerprint.KindDB {
		fields["row_count"] = strconv.Itoa(in.RowCount)
	}
	if in.SourceURL != "" {
		fields["source_url"] = in.SourceURL
	}
	batch.HSet(metaKey, fields)
	batch.Expire(metaKey, ttl)

	grace := ttl + e.cfg.IndexGrace
	for _, tag := range in.Tags {
		tagKey := fingerprint.TagKey(in.Namespace, tag)
		batch.SAdd(tagKey, key)
		batch.Expire(tagKey, grace)
	}
	if in.Kind == fingerprint.KindDB && in.SchemaVersion != "" {
		schemaKey := fingerprint.SchemaKey(in.Namespace, in.DBName, in.SchemaVersion)
		batch.SAdd(schemaKey, key)
		batch.Expire(schemaKey, grace)
	}

	date := now.Format("2006-01-02")
	batch.Incr(fingerprint.DailySetKey(in.Kind, date))
	if in.KeyDigest != "" {
		batch.HIncrBy(fingerprint.UsageKey(in.KeyDigest, in.Kind), "sets", 1)
	}

	written, err := batch.Exec(ctx)
	if err != nil {
		if _, delErr := e.store.Del(context.Background(), written...); delErr != nil {
			e.logger.Error().Err(delErr).Msg("compensating delete failed after partial SET")
		}
		return SetResult{}, gwerrors.Wrap(gwerrors.KindStorageError, err, "set batch failed")
	}

	l1TTL := ttl
	if e.cfg.L1TTLDefault < l1TTL {
		l1TTL = e.cfg.L1TTLDefault
	}
	e.l1.set(key, in.Payload, l1TTL)

	if in.Kind == fingerprint.KindLLM && in.L3Enabled && e.vectors != nil && e.embed != nil {
		e.queueL3Upsert(in, key, ttl, now)
	}

	return SetResult{Key: key, TTL: ttl}, nil
}

func (e *Engine) queueL3Upsert(in SetInput, key string, ttl time.Duration, now time.Time) {
	llm := *in.LLM
	namespace := in.Namespace
	payload := in.Payload
	e.tasks.submit(func(ctx context.Context) {
		text := concatMessages(llm.Messages)
		embedding, err := e.embed(ctx, text)
		if err != nil {
			e.logger.Debug().Err(err).Msg("async L3 embedding failed")
			return
		}
		err = e.vectors.Upsert(ctx, vectorstore.Record{
			ID:        key,
			Embedding: embedding,
			Namespace: namespace,
			Provider:  llm.Provider,
			Model:     llm.Model,
			Response:  payload,
			CachedAt:  now,
			ExpiresAt: now.Add(ttl),
		})
		if err != nil {
			e.logger.Warn().Err(err).Msg("async L3 upsert failed")
		}
	})
}

func (e *Engine) queueL2HitAccounting(metaKey string, kind fingerprint.Kind) {
	date := time.Now().Format("2006-01-02")
	e.tasks.submit(func(ctx context.Context) {
		if _, err := e.store.HIncrBy(ctx, metaKey, "access_count", 1); err != nil {
			e.logger.Debug().Err(err).Msg("access_count increment failed")
		}
		if err := e.store.HSet(ctx, metaKey, map[string]string{"last_accessed": time.Now().Format(time.RFC3339)}); err != nil {
			e.logger.Debug().Err(err).Msg("last_accessed update failed")
		}
		if _, err := e.store.Incr(ctx, fingerprint.DailyHitKey("L2", date)); err != nil {
			e.logger.Debug().Err(err).Msg("daily hit counter increment failed")
		}
		if kind == fingerprint.KindTool || kind == fingerprint.KindDB {
			if _, err := e.store.Incr(ctx, fingerprint.DailyKindHitKey(kind, date)); err != nil {
				e.logger.Debug().Err(err).Msg("per-kind hit counter increment failed")
			}
		}
	})
}

func (e *Engine) queueL3HitAccounting() {
	date := time.Now().Format("2006-01-02")
	e.tasks.submit(func(ctx context.Context) {
		if _, err := e.store.Incr(ctx, fingerprint.DailyHitKey("L3", date)); err != nil {
			e.logger.Debug().Err(err).Msg("daily hit counter increment failed")
		}
	})
}

func (e *Engine) queueMiss() {
	date := time.Now().Format("2006-01-02")
	e.tasks.submit(func(ctx context.Context) {
		if _, err := e.store.Incr(ctx, fingerprint.DailyMissKey(date)); err != nil {
			e.logger.Debug().Err(err).Msg("daily miss counter increment failed")
		}
	})
}

func (e *Engine) defaultTTL(kind fingerprint.Kind) time.Duration {
	switch kind {
	case fingerprint.KindLLM:
		return e.cfg.LLMTTLDefault
	case fingerprint.KindTool:
		return e.cfg.ToolTTLDefault
	case fingerprint.KindDB:
		return e.cfg.DBTTLDefault
	default:
		return e.cfg.LLMTTLDefault
	}
}

func (e *Engine) structuredKey(kind fingerprint.Kind, namespace string, llm *fingerprint.LLMInputs, tool *fingerprint.ToolInputs, db *fingerprint.DBInputs, dbName string) (key string, digest string, err error) {
	switch kind {
	case fingerprint.KindLLM:
		if llm == nil {
			return "", "", gwerrors.New(gwerrors.KindInvalidInput, "llm inputs required")
		}
		r, err := fingerprint.FingerprintLLM(*llm)
		if err != nil {
			return "", "", err
		}
		return fingerprint.StructuredKey(fingerprint.KindLLM, "l2", namespace, llm.Provider, llm.Model, r.Digest), r.Digest, nil
	case fingerprint.KindTool:
		if tool == nil {
			return "", "", gwerrors.New(gwerrors.KindInvalidInput, "tool inputs required")
		}
		r, err := fingerprint.FingerprintTool(*tool)
		if err != nil {
			return "", "", err
		}
		version := tool.Version
		if version == "" {
			version = "v1"
		}
		return fingerprint.ToolKey(version, namespace, tool.ToolName, r.Digest), r.Digest, nil
	case fingerprint.KindDB:
		if db == nil {
			return "", "", gwerrors.New(gwerrors.KindInvalidInput, "db inputs required")
		}
		if dbName == "" {
			return "", "", gwerrors.New(gwerrors.KindInvalidInput, "db_name is required")
		}
		r, err := fingerprint.FingerprintDB(*db)
		if err != nil {
			return "", "", err
		}
		return fingerprint.DBKey(namespace, dbName, r.Digest), r.Digest, nil
	default:
		return "", "", gwerrors.New(gwerrors.KindInvalidInput, "unknown kind %q", kind)
	}
}

func concatMessages(messages []fingerprint.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, fmt.Sprintf("%v", m.Content))
	}
	return strings.Join(parts, "\n")
}

func fragment(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[len(key)-12:]
}
