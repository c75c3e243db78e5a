package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every operational parameter of the gateway.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration
	RequestDeadline time.Duration

	// Redis
	RedisURL string

	// Auth
	APIKeyHeader    string
	NamespaceHeader string

	// Rate limiting & quota
	RateLimitDemoRPM int
	RateLimitLiveRPM int
	QuotaDemoLimit   int
	QuotaLiveLimit   int

	// Invalidation engine
	ScanMaxKeys          int
	ScanMaxNamespaceKeys int
	ScanIterCap          int
	DeleteBatchSize      int

	// Tier engine
	SemanticThresholdDefault float64
	LLMTTLDefault            time.Duration
	ToolTTLDefault           time.Duration
	DBTTLDefault             time.Duration
	L1TTLDefault             time.Duration
	IndexGrace               time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:            getEnv("GATEWAY_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: getEnvSeconds("GATEWAY_GRACEFUL_TIMEOUT_SEC", 15),
		RequestDeadline: getEnvSeconds("GATEWAY_REQUEST_DEADLINE_SEC", 5),

		RedisURL: getEnv("REDIS_URL", "redis://redis:6379"),

		APIKeyHeader:    getEnv("API_KEY_HEADER", "X-API-Key"),
		NamespaceHeader: getEnv("CACHE_NAMESPACE_HEADER", "X-Cache-Namespace"),

		RateLimitDemoRPM: getEnvInt("RATE_LIMIT_DEMO_RPM", 100),
		RateLimitLiveRPM: getEnvInt("RATE_LIMIT_LIVE_RPM", 500),
		QuotaDemoLimit:   getEnvInt("QUOTA_DEMO_LIMIT", 10000),
		QuotaLiveLimit:   getEnvInt("QUOTA_LIVE_LIMIT", 1000000),

		ScanMaxKeys:          getEnvInt("SCAN_MAX_KEYS", 1000),
		ScanMaxNamespaceKeys: getEnvInt("SCAN_MAX_NAMESPACE_KEYS", 10000),
		ScanIterCap:          getEnvInt("SCAN_ITER_CAP", 100),
		DeleteBatchSize:      getEnvInt("DELETE_BATCH_SIZE", 100),

		SemanticThresholdDefault: getEnvFloat("SEMANTIC_THRESHOLD_DEFAULT", 0.85),
		LLMTTLDefault:            getEnvSeconds("LLM_TTL_DEFAULT_SEC", 604800),
		ToolTTLDefault:           getEnvSeconds("TOOL_TTL_DEFAULT_SEC", 3600),
		DBTTLDefault:             getEnvSeconds("DB_TTL_DEFAULT_SEC", 300),
		L1TTLDefault:             getEnvSeconds("L1_TTL_DEFAULT_SEC", 60),
		IndexGrace:               getEnvSeconds("INDEX_GRACE_SEC", 3600),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	secs := getEnvInt(key, fallbackSeconds)
	return time.Duration(secs) * time.Second
}
