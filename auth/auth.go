// Package auth implements API key authentication and namespace
// resolution.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agentcache/gateway/gwerrors"
	"github.com/agentcache/gateway/kvstore"
	"github.com/rs/zerolog"
)

const (
	demoPrefix = "ac_demo_"
	livePrefix = "ac_live_"
)

// Kind distinguishes a demo key (no digest, no quota) from a live key.
type Kind string

const (
	KindDemo Kind = "demo"
	KindLive Kind = "live"
)

// Tier is the billing tier attached to a live key.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Principal is the authenticated identity of a request.
type Principal struct {
	Kind         Kind
	Digest       string // empty for demo principals
	Tier         Tier
	MonthlyQuota int
	Owner        string
}

type cachedPrincipal struct {
	principal Principal
	expiresAt time.Time
}

// Authenticator validates API keys against the KV store's key-metadata
// hashes, with a TTL'd in-memory validation cache — the same sync.Map
// pattern the gateway's original Bearer-token middleware used, reused
// here for live-key digest lookups instead of a downstream call.
type Authenticator struct {
	store           kvstore.Store
	logger          zerolog.Logger
	cache           sync.Map // digest -> *cachedPrincipal
	cacheTTL        time.Duration
	namespaceHeader string
}

// New builds an Authenticator.
func New(store kvstore.Store, logger zerolog.Logger, namespaceHeader string) *Authenticator {
	if namespaceHeader == "" {
		namespaceHeader = "X-Cache-Namespace"
	}
	return &Authenticator{
		store:           store,
		logger:          logger.With().Str("component", "auth").Logger(),
		cacheTTL:        5 * time.Minute,
		namespaceHeader: namespaceHeader,
	}
}

// Authenticate resolves an API key to a Principal.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (Principal, error) {
	if apiKey == "" {
		return Principal{}, gwerrors.New(gwerrors.KindMissingKey, "no API key supplied")
	}

	switch {
	case strings.HasPrefix(apiKey, demoPrefix):
		return Principal{Kind: KindDemo, Tier: TierFree}, nil
	case strings.HasPrefix(apiKey, livePrefix):
		return a.authenticateLive(ctx, apiKey)
	default:
		return Principal{}, gwerrors.New(gwerrors.KindBadKeyFormat, "unrecognized key prefix")
	}
}

func (a *Authenticator) authenticateLive(ctx context.Context, apiKey string) (Principal, error) {
	digest := digestKey(apiKey)

	if cached, ok := a.cache.Load(digest); ok {
		cp := cached.(*cachedPrincipal)
		if time.Now().Before(cp.expiresAt) {
			return cp.principal, nil
		}
		a.cache.Delete(digest)
	}

	fields, err := a.store.HGetAll(ctx, "apikey:"+digest)
	if err != nil {
		return Principal{}, gwerrors.Wrap(gwerrors.KindStorageError, err, "api key lookup failed")
	}
	owner := fields["owner"]
	if owner == "" {
		return Principal{}, gwerrors.New(gwerrors.KindUnknownKey, "api key not found")
	}

	quota, _ := strconv.Atoi(fields["monthly_quota"])
	principal := Principal{
		Kind:         KindLive,
		Digest:       digest,
		Tier:         Tier(fields["tier"]),
		MonthlyQuota: quota,
		Owner:        owner,
	}

	a.cache.Store(digest, &cachedPrincipal{principal: principal, expiresAt: time.Now().Add(a.cacheTTL)})
	return principal, nil
}

// ResolveNamespace derives the cache namespace for an authenticated request.
func (a *Authenticator) ResolveNamespace(headers http.Header, principal Principal) string {
	if ns := headers.Get(a.namespaceHeader); ns != "" {
		return ns
	}
	return "default"
}

// ExtractAPIKey pulls the key from X-API-Key or an Authorization: Bearer header.
func ExtractAPIKey(headers http.Header, apiKeyHeader string) string {
	if v := headers.Get(apiKeyHeader); v != "" {
		return v
	}
	if auth := headers.Get("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return auth[7:]
		}
	}
	return ""
}

func digestKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}
