package httpapi

import "github.com/agentcache/gateway/fingerprint"

// llmGetRequest is the body for POST /v1/llm/get.
type llmGetRequest struct {
	Provider            string                    `json:"provider"`
	Model               string                    `json:"model"`
	Messages            []fingerprint.ChatMessage `json:"messages"`
	Temperature         *float64                  `json:"temperature,omitempty"`
	L3Enabled           bool                      `json:"l3_enabled,omitempty"`
	SimilarityThreshold float64                   `json:"similarity_threshold,omitempty"`
}

// llmSetRequest is the body for POST /v1/llm/set.
type llmSetRequest struct {
	Provider    string                    `json:"provider"`
	Model       string                    `json:"model"`
	Messages    []fingerprint.ChatMessage `json:"messages"`
	Temperature *float64                  `json:"temperature,omitempty"`
	Response    string                    `json:"response"`
	TTLSeconds  int                       `json:"ttl_seconds,omitempty"`
	Tags        []string                  `json:"tags,omitempty"`
	L3Enabled   bool                      `json:"l3_enabled,omitempty"`
}

// toolGetRequest is the body for POST /v1/tool/get.
type toolGetRequest struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	Version    string                 `json:"version,omitempty"`
}

// toolSetRequest is the body for POST /v1/tool/set.
type toolSetRequest struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	Version    string                 `json:"version,omitempty"`
	Result     interface{}            `json:"result"`
	TTLSeconds int                    `json:"ttl_seconds,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
}

// dbGetRequest is the body for POST /v1/db/get.
type dbGetRequest struct {
	DBName        string                 `json:"db_name"`
	Query         string                 `json:"query"`
	Params        map[string]interface{} `json:"params,omitempty"`
	SchemaVersion string                 `json:"schema_version,omitempty"`
}

// dbSetRequest is the body for POST /v1/db/set.
type dbSetRequest struct {
	DBName        string                 `json:"db_name"`
	Query         string                 `json:"query"`
	Params        map[string]interface{} `json:"params,omitempty"`
	SchemaVersion string                 `json:"schema_version,omitempty"`
	Rows          interface{}            `json:"rows"`
	SourceURL     string                 `json:"source_url,omitempty"`
	TTLSeconds    int                    `json:"ttl_seconds,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
}

// cacheGetResponse is the response shape for every GET endpoint: tier,
// latency, and a trailing fragment of the cache key.
type cacheGetResponse struct {
	Hit              bool    `json:"hit"`
	Tier             string  `json:"tier,omitempty"`
	Payload          string  `json:"payload,omitempty"`
	Similarity       float64 `json:"similarity,omitempty"`
	CacheKeyFragment string  `json:"cache_key_fragment,omitempty"`
	LatencyMs        int64   `json:"latency_ms"`
}

// cacheSetResponse is the response shape for every SET endpoint.
type cacheSetResponse struct {
	CacheKeyFragment string `json:"cache_key_fragment"`
	TTLSeconds       int64  `json:"ttl_seconds"`
	LatencyMs        int64  `json:"latency_ms"`
}

// invalidateRequest is the body for POST /v1/invalidate.
type invalidateRequest struct {
	Key                 string   `json:"key,omitempty"`
	Pattern             string   `json:"pattern,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	InvalidateNamespace bool     `json:"invalidate_namespace,omitempty"`
	Confirm             bool     `json:"confirm,omitempty"`
	InvalidateSchema    bool     `json:"invalidate_schema,omitempty"`
	DBName              string   `json:"db_name,omitempty"`
	SchemaVersion       string   `json:"schema_version,omitempty"`
	OlderThanSeconds    int      `json:"older_than_seconds,omitempty"`
	URL                 string   `json:"url,omitempty"`
}

// invalidateResponseBody is the response shape for POST /v1/invalidate.
type invalidateResponseBody struct {
	InvalidatedCount int    `json:"invalidated_count"`
	ScopeDescriptor  string `json:"scope_descriptor"`
	ElapsedMs        int64  `json:"elapsed_ms"`
}

// analyticsResponseBody is the response shape for GET /v1/analytics.
type analyticsResponseBody struct {
	Period            string           `json:"period"`
	TierHits          map[string]int64 `json:"tier_hits"`
	KindHits          map[string]int64 `json:"kind_hits"`
	Misses            int64            `json:"misses"`
	Invalidations     int64            `json:"invalidations"`
	HitRate           float64          `json:"hit_rate"`
	WeightedLatencyMs float64          `json:"weighted_latency_ms"`
	CostSavedUSD      float64          `json:"cost_saved_usd"`
}

// errorResponseBody is the response shape for every error: an error kind
// string plus human-readable details.
type errorResponseBody struct {
	Error      string `json:"error"`
	Details    string `json:"details"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
