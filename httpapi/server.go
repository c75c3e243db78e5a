// Package httpapi implements the gateway's REST surface: GET/SET for each
// request kind, invalidation, and analytics.
package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/agentcache/gateway/analytics"
	"github.com/agentcache/gateway/auth"
	"github.com/agentcache/gateway/config"
	"github.com/agentcache/gateway/gwerrors"
	"github.com/agentcache/gateway/invalidate"
	"github.com/agentcache/gateway/observability"
	"github.com/agentcache/gateway/ratelimit"
	"github.com/agentcache/gateway/tiercache"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server wires auth, rate limiting, the tier engine, invalidation, and
// analytics into HTTP handlers.
type Server struct {
	authr       *auth.Authenticator
	limiter     *ratelimit.Limiter
	engine      *tiercache.Engine
	invalidator *invalidate.Engine
	aggregator  *analytics.Aggregator
	metrics     *observability.Metrics
	cfg         *config.Config
	logger      zerolog.Logger
}

// New builds a Server. metrics may be nil when Prometheus export is disabled.
func New(authr *auth.Authenticator, limiter *ratelimit.Limiter, engine *tiercache.Engine, invalidator *invalidate.Engine, aggregator *analytics.Aggregator, metrics *observability.Metrics, cfg *config.Config, logger zerolog.Logger) *Server {
	return &Server{
		authr:       authr,
		limiter:     limiter,
		engine:      engine,
		invalidator: invalidator,
		aggregator:  aggregator,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger.With().Str("component", "httpapi").Logger(),
	}
}

// Routes mounts every handler onto r (typically a chi sub-router at /v1).
func (s *Server) Routes(r chi.Router) {
	r.Post("/llm/get", s.handleLLMGet)
	r.Post("/llm/set", s.handleLLMSet)
	r.Post("/tool/get", s.handleToolGet)
	r.Post("/tool/set", s.handleToolSet)
	r.Post("/db/get", s.handleDBGet)
	r.Post("/db/set", s.handleDBSet)
	r.Post("/invalidate", s.handleInvalidate)
	r.Get("/analytics", s.handleAnalytics)
}

// authContext is what every handler needs after the shared gate passes.
type authContext struct {
	principal auth.Principal
	namespace string
}

// gate enforces rate-limit, then auth, then quota in that order: the
// rate-limit bucket is keyed off the raw API key so a request can be
// throttled before the (costlier) live-key digest lookup runs.
func (s *Server) gate(ctx context.Context, r *http.Request, requireQuota bool) (authContext, error) {
	apiKey := auth.ExtractAPIKey(r.Header, s.cfg.APIKeyHeader)
	if apiKey == "" {
		return authContext{}, gwerrors.New(gwerrors.KindMissingKey, "no API key supplied")
	}

	isDemo := strings.HasPrefix(apiKey, "ac_demo_")
	rpm := s.cfg.RateLimitLiveRPM
	if isDemo {
		rpm = s.cfg.RateLimitDemoRPM
	}
	allowed, retryAfter, err := s.limiter.Allow(ctx, rateLimitKey(apiKey), rpm, !isDemo)
	if err != nil {
		return authContext{}, gwerrors.Wrap(gwerrors.KindStorageError, err, "rate limit check failed")
	}
	if !allowed {
		return authContext{}, gwerrors.RateLimited(retryAfter)
	}

	principal, err := s.authr.Authenticate(ctx, apiKey)
	if err != nil {
		return authContext{}, err
	}
	namespace := s.authr.ResolveNamespace(r.Header, principal)

	if requireQuota && principal.Kind == auth.KindLive {
		ok, err := s.limiter.CheckQuota(ctx, principal.Digest, principal.MonthlyQuota)
		if err != nil {
			return authContext{}, err
		}
		if !ok {
			return authContext{}, gwerrors.New(gwerrors.KindQuotaExceeded, "monthly quota exceeded")
		}
	}

	return authContext{principal: principal, namespace: namespace}, nil
}

// accrue increments the live-tenant monthly quota after a successful
// store/get, so failed lookups don't consume quota.
func (s *Server) accrue(ctx context.Context, ac authContext) {
	if ac.principal.Kind != auth.KindLive {
		return
	}
	if err := s.limiter.IncrementQuota(ctx, ac.principal.Digest); err != nil {
		s.logger.Warn().Err(err).Msg("quota increment failed")
	}
}

// keyDigestFor returns the digest to attribute a SET's per-tenant usage
// counter to — live tenants only.
func keyDigestFor(ac authContext) string {
	if ac.principal.Kind == auth.KindLive {
		return ac.principal.Digest
	}
	return ""
}

func rateLimitKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

func (s *Server) trackRequest(kind, op, status string, latencyMs float64) {
	if s.metrics == nil {
		return
	}
	s.metrics.TrackRequest(kind, op, status, latencyMs)
}

func (s *Server) trackHit(tier string) {
	if s.metrics == nil {
		return
	}
	s.metrics.TrackHit(tier)
}

func (s *Server) trackMiss() {
	if s.metrics == nil {
		return
	}
	s.metrics.TrackMiss()
}

func (s *Server) trackInvalidations(count int) {
	if s.metrics == nil {
		return
	}
	s.metrics.TrackInvalidations(count)
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.RequestDeadline <= 0 {
		return 5 * time.Second
	}
	return cfg.RequestDeadline
}
