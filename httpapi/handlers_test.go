package httpapi_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/agentcache/gateway/analytics"
	"github.com/agentcache/gateway/auth"
	"github.com/agentcache/gateway/config"
	"github.com/agentcache/gateway/httpapi"
	"github.com/agentcache/gateway/invalidate"
	"github.com/agentcache/gateway/kvstore"
	"github.com/agentcache/gateway/ratelimit"
	"github.com/agentcache/gateway/tiercache"
	"github.com/agentcache/gateway/vectorstore"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func testConfig() *config.Config {
	return &config.Config{
		APIKeyHeader:     "X-API-Key",
		NamespaceHeader:  "X-Cache-Namespace",
		RateLimitDemoRPM: 100,
		RateLimitLiveRPM: 500,
		QuotaDemoLimit:   10000,
		QuotaLiveLimit:   1000000,
		ScanMaxKeys:          1000,
		ScanMaxNamespaceKeys: 10000,
		ScanIterCap:          100,
		DeleteBatchSize:      100,
	}
}

func testServer(t *testing.T) (*httptest.Server, kvstore.Store) {
	t.Helper()
	store := kvstore.NewFakeStore()
	cfg := testConfig()
	logger := zerolog.Nop()

	authr := auth.New(store, logger, cfg.NamespaceHeader)
	limiter := ratelimit.New(store, logger)
	engine := tiercache.NewEngine(cfg, store, vectorstore.NewInMemoryStore(), nil, logger)
	invalidator := invalidate.New(store, cfg, logger)
	aggregator := analytics.New(store, analytics.DefaultCostModel(), logger)

	srv := httpapi.New(authr, limiter, engine, invalidator, aggregator, nil, cfg, logger)

	r := chi.NewRouter()
	r.Route("/v1", srv.Routes)

	return httptest.NewServer(r), store
}

func seedLiveKey(t *testing.T, store kvstore.Store, apiKey, tier string, quota int) {
	t.Helper()
	h := sha256.Sum256([]byte(apiKey))
	digest := hex.EncodeToString(h[:])
	if err := store.HSet(context.Background(), "apikey:"+digest, map[string]string{
		"owner":         "acme",
		"tier":          tier,
		"monthly_quota": strconv.Itoa(quota),
	}); err != nil {
		t.Fatalf("seed key failed: %v", err)
	}
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, apiKey string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestLLMSetThenGetRoundTrip(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	setBody := map[string]interface{}{
		"provider": "openai",
		"model":    "gpt-4",
		"messages": []map[string]interface{}{{"role": "user", "content": "hi"}},
		"response": "hello there",
	}
	resp, out := doJSON(t, ts, "POST", "/v1/llm/set", "ac_demo_abc", setBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %+v", resp.StatusCode, out)
	}

	getBody := map[string]interface{}{
		"provider": "openai",
		"model":    "gpt-4",
		"messages": []map[string]interface{}{{"role": "user", "content": "hi"}},
	}
	resp, out = doJSON(t, ts, "POST", "/v1/llm/get", "ac_demo_abc", getBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %+v", resp.StatusCode, out)
	}
	if out["hit"] != true {
		t.Fatalf("expected cache hit, got %+v", out)
	}
	if out["payload"] != "hello there" {
		t.Fatalf("expected payload to round-trip, got %+v", out)
	}
}

func TestLLMSetMissingFieldsIsInvalidInput(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	resp, out := doJSON(t, ts, "POST", "/v1/llm/set", "ac_demo_abc", map[string]interface{}{
		"provider": "openai",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %+v", resp.StatusCode, out)
	}
	if out["error"] != "invalid_input" {
		t.Fatalf("expected invalid_input, got %+v", out)
	}
}

func TestMissingAPIKeyReturns401(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	resp, out := doJSON(t, ts, "POST", "/v1/llm/get", "", map[string]interface{}{
		"provider": "openai", "model": "gpt-4",
		"messages": []map[string]interface{}{{"role": "user", "content": "hi"}},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %+v", resp.StatusCode, out)
	}
	if out["error"] != "missing_key" {
		t.Fatalf("expected missing_key, got %+v", out)
	}
}

func TestUnrecognizedKeyPrefixReturns401(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	resp, out := doJSON(t, ts, "POST", "/v1/llm/get", "totally-bogus-key", map[string]interface{}{
		"provider": "openai", "model": "gpt-4",
		"messages": []map[string]interface{}{{"role": "user", "content": "hi"}},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %+v", resp.StatusCode, out)
	}
}

func TestRateLimitExceededReturns429(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	cfg := testConfig()
	body := map[string]interface{}{
		"tool_name":  "search",
		"parameters": map[string]interface{}{"q": "golang"},
		"result":     map[string]interface{}{"ok": true},
	}
	var last *http.Response
	for i := 0; i < cfg.RateLimitDemoRPM+1; i++ {
		resp, _ := doJSON(t, ts, "POST", "/v1/tool/set", "ac_demo_ratelimited", body)
		last = resp
	}
	if last.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding rpm, got %d", last.StatusCode)
	}
}

func TestQuotaExceededReturns402(t *testing.T) {
	ts, store := testServer(t)
	defer ts.Close()

	apiKey := "ac_live_lowquota"
	seedLiveKey(t, store, apiKey, "paid", 1)

	body := map[string]interface{}{
		"tool_name":  "search",
		"parameters": map[string]interface{}{"q": "golang"},
		"result":     map[string]interface{}{"ok": true},
	}
	resp, out := doJSON(t, ts, "POST", "/v1/tool/set", apiKey, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected first set to succeed, got %d: %+v", resp.StatusCode, out)
	}

	resp, out = doJSON(t, ts, "POST", "/v1/tool/set", apiKey, body)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 quota exceeded, got %d: %+v", resp.StatusCode, out)
	}
	if out["error"] != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded, got %+v", out)
	}
}

func TestInvalidateExactKey(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	setBody := map[string]interface{}{
		"db_name": "orders",
		"query":   "select * from orders where id = ?",
		"rows":    []map[string]interface{}{{"id": 1}},
	}
	resp, out := doJSON(t, ts, "POST", "/v1/db/set", "ac_demo_abc", setBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %+v", resp.StatusCode, out)
	}
	key, _ := out["cache_key_fragment"].(string)
	if key == "" {
		t.Fatalf("expected a cache key fragment, got %+v", out)
	}

	resp, out = doJSON(t, ts, "POST", "/v1/invalidate", "ac_demo_abc", map[string]interface{}{
		"key": "agentcache:db:v1:default:orders:" + key,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %+v", resp.StatusCode, out)
	}
	if out["invalidated_count"].(float64) < 1 {
		t.Fatalf("expected at least one key invalidated, got %+v", out)
	}
}

func TestInvalidateWithNoModeIsInvalidScope(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	resp, out := doJSON(t, ts, "POST", "/v1/invalidate", "ac_demo_abc", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %+v", resp.StatusCode, out)
	}
	if out["error"] != "invalid_scope" {
		t.Fatalf("expected invalid_scope, got %+v", out)
	}
}

func TestAnalyticsEndpointReturnsSummary(t *testing.T) {
	ts, _ := testServer(t)
	defer ts.Close()

	setBody := map[string]interface{}{
		"tool_name":  "search",
		"parameters": map[string]interface{}{"q": "golang"},
		"result":     map[string]interface{}{"ok": true},
	}
	if resp, out := doJSON(t, ts, "POST", "/v1/tool/set", "ac_demo_abc", setBody); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %+v", resp.StatusCode, out)
	}
	if resp, out := doJSON(t, ts, "POST", "/v1/tool/get", "ac_demo_abc", map[string]interface{}{
		"tool_name": "search", "parameters": map[string]interface{}{"q": "golang"},
	}); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %+v", resp.StatusCode, out)
	}

	resp, out := doJSON(t, ts, "GET", "/v1/analytics?period=1d", "ac_demo_abc", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %+v", resp.StatusCode, out)
	}
	if out["period"] != "1d" {
		t.Fatalf("expected period 1d, got %+v", out)
	}
}
