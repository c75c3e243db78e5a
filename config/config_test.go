package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/agentcache/gateway/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("ENV", "test")
	os.Setenv("RATE_LIMIT_DEMO_RPM", "42")
	defer func() {
		os.Unsetenv("REDIS_URL")
		os.Unsetenv("ENV")
		os.Unsetenv("RATE_LIMIT_DEMO_RPM")
	}()

	cfg := config.Load()
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Fatalf("expected REDIS_URL to be loaded, got %s", cfg.RedisURL)
	}
	if cfg.Env != "test" {
		t.Fatalf("expected ENV=test, got %s", cfg.Env)
	}
	if cfg.RateLimitDemoRPM != 42 {
		t.Fatalf("expected RATE_LIMIT_DEMO_RPM=42, got %d", cfg.RateLimitDemoRPM)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("RATE_LIMIT_DEMO_RPM")
	os.Unsetenv("RATE_LIMIT_LIVE_RPM")
	os.Unsetenv("SEMANTIC_THRESHOLD_DEFAULT")
	os.Unsetenv("LLM_TTL_DEFAULT_SEC")

	cfg := config.Load()
	if cfg.RateLimitDemoRPM != 100 {
		t.Fatalf("expected default demo rpm 100, got %d", cfg.RateLimitDemoRPM)
	}
	if cfg.RateLimitLiveRPM != 500 {
		t.Fatalf("expected default live rpm 500, got %d", cfg.RateLimitLiveRPM)
	}
	if cfg.SemanticThresholdDefault != 0.85 {
		t.Fatalf("expected default semantic threshold 0.85, got %v", cfg.SemanticThresholdDefault)
	}
	if cfg.LLMTTLDefault != 604800*time.Second {
		t.Fatalf("expected default llm ttl 604800s, got %v", cfg.LLMTTLDefault)
	}
	if cfg.ScanMaxKeys != 1000 {
		t.Fatalf("expected default scan_max_keys 1000, got %d", cfg.ScanMaxKeys)
	}
}
