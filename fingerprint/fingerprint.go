// Package fingerprint canonicalizes request descriptors into a stable
// 256-bit digest and a structured cache key.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agentcache/gateway/gwerrors"
)

// Kind is the closed set of fingerprintable request shapes.
type Kind string

const (
	KindLLM  Kind = "llm"
	KindTool Kind = "tool"
	KindDB   Kind = "db"
)

// LLMInputs is the canonical input shape for kind=llm.
type LLMInputs struct {
	Provider    string
	Model       string
	Messages    []ChatMessage
	Temperature *float64
}

// ChatMessage is a single canonicalized chat turn.
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ToolInputs is the canonical input shape for kind=tool.
type ToolInputs struct {
	ToolName   string
	Parameters map[string]interface{}
	Version    string
}

// DBInputs is the canonical input shape for kind=db.
type DBInputs struct {
	Query         string
	Params        map[string]interface{}
	SchemaVersion string
}

// Result is the output of the Fingerprint* functions: the 64-char hex
// digest used for exact-tier keys. Structured keys are built from it by
// StructuredKey, ToolKey and DBKey.
type Result struct {
	Digest string
}

// FingerprintLLM canonicalizes an LLM request: provider, model, messages,
// temperature, in that fixed order.
func FingerprintLLM(in LLMInputs) (Result, error) {
	if in.Provider == "" {
		return Result{}, gwerrors.New(gwerrors.KindInvalidInput, "llm fingerprint requires provider")
	}
	if in.Model == "" {
		return Result{}, gwerrors.New(gwerrors.KindInvalidInput, "llm fingerprint requires model")
	}
	if len(in.Messages) == 0 {
		return Result{}, gwerrors.New(gwerrors.KindInvalidInput, "llm fingerprint requires at least one message")
	}

	msgJSON, err := canonicalJSON(in.Messages)
	if err != nil {
		return Result{}, gwerrors.Wrap(gwerrors.KindInvalidInput, err, "failed to canonicalize messages")
	}

	temp := "null"
	if in.Temperature != nil {
		temp = normalizeFloat(*in.Temperature)
	}

	return Result{Digest: digest(in.Provider, in.Model, msgJSON, temp)}, nil
}

// FingerprintTool canonicalizes a tool-call request: tool_name,
// parameters, version, in that fixed order.
func FingerprintTool(in ToolInputs) (Result, error) {
	if in.ToolName == "" {
		return Result{}, gwerrors.New(gwerrors.KindInvalidInput, "tool fingerprint requires tool_name")
	}
	if in.Parameters == nil {
		return Result{}, gwerrors.New(gwerrors.KindInvalidInput, "tool fingerprint requires parameters")
	}

	paramJSON, err := canonicalJSON(in.Parameters)
	if err != nil {
		return Result{}, gwerrors.Wrap(gwerrors.KindInvalidInput, err, "failed to canonicalize parameters")
	}

	return Result{Digest: digest(in.ToolName, paramJSON, in.Version)}, nil
}

// FingerprintDB canonicalizes a db-query request: query, params,
// schema_version, in that fixed order.
func FingerprintDB(in DBInputs) (Result, error) {
	if in.Query == "" {
		return Result{}, gwerrors.New(gwerrors.KindInvalidInput, "db fingerprint requires query")
	}

	paramJSON, err := canonicalJSON(in.Params)
	if err != nil {
		return Result{}, gwerrors.Wrap(gwerrors.KindInvalidInput, err, "failed to canonicalize params")
	}

	return Result{Digest: digest(in.Query, paramJSON, in.SchemaVersion)}, nil
}

// digest concatenates fields with ':' separators and returns the lowercase
// hex SHA-256 of the result — determinism is the correctness contract
// callers rely on.
func digest(fields ...string) string {
	h := sha256.Sum256([]byte(strings.Join(fields, ":")))
	return hex.EncodeToString(h[:])
}

// normalizeFloat fixes numeric precision so that e.g. 0.70 and 0.7 produce
// the same canonical field.
func normalizeFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// canonicalJSON serializes v with deterministic key ordering and no
// insignificant whitespace. Go's encoding/json already sorts map keys and
// emits compact output, so this re-marshals through a sorted-map pass to
// guarantee ordering survives arbitrary interface{} nesting.
func canonicalJSON(v interface{}) (string, error) {
	normalized, err := normalize(v)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalize(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return sortedValue(generic), nil
}

// sortedValue walks the decoded tree so every map becomes a
// map[string]interface{} with deterministic key order on marshal.
func sortedValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(t))
		for _, k := range keys {
			out[k] = sortedValue(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortedValue(e)
		}
		return out
	default:
		return t
	}
}

// StructuredKey builds the structured key for a given kind/tier.
func StructuredKey(kind Kind, tier string, namespace, provider, model, digest string) string {
	switch kind {
	case KindLLM:
		if tier == "l3" {
			return fmt.Sprintf("ns:%s:semantic:v1:%s:%s:%s", namespace, provider, model, digest)
		}
		return fmt.Sprintf("agentcache:v1:%s:%s:%s:%s", namespace, provider, model, digest)
	}
	return ""
}

// ToolKey builds the structured key for kind=tool.
func ToolKey(version, namespace, toolName, digest string) string {
	return fmt.Sprintf("agentcache:tool:%s:%s:%s:%s", version, namespace, toolName, digest)
}

// DBKey builds the structured key for kind=db.
func DBKey(namespace, dbName, digest string) string {
	return fmt.Sprintf("agentcache:db:v1:%s:%s:%s", namespace, dbName, digest)
}

// MetaKey builds the metadata hash key sibling to an entry key.
func MetaKey(entryKey string) string {
	return entryKey + ":meta"
}

// TagKey builds a tag-set index key.
func TagKey(namespace, tag string) string {
	return fmt.Sprintf("tag:%s:%s", namespace, tag)
}

// SchemaKey builds a schema-version-set index key.
func SchemaKey(namespace, dbName, schemaVersion string) string {
	return fmt.Sprintf("schema:%s:%s:%s", namespace, dbName, schemaVersion)
}

// DailyHitKey builds the per-tier daily hit counter key.
func DailyHitKey(tier, date string) string {
	return fmt.Sprintf("stats:global:hits:%s:d:%s", tier, date)
}

// DailyMissKey builds the daily miss counter key.
func DailyMissKey(date string) string {
	return fmt.Sprintf("stats:global:misses:d:%s", date)
}

// DailyKindHitKey builds the per-kind (tool/db) daily hit counter key.
func DailyKindHitKey(kind Kind, date string) string {
	return fmt.Sprintf("stats:%s:hits:d:%s", kind, date)
}

// DailySetKey builds the per-kind daily set counter key.
func DailySetKey(kind Kind, date string) string {
	return fmt.Sprintf("stats:%s:sets:d:%s", kind, date)
}

// DailyInvalidationKey builds the daily invalidation counter key.
func DailyInvalidationKey(date string) string {
	return fmt.Sprintf("stats:invalidations:d:%s", date)
}

// UsageKey builds a per-tenant usage hash key.
func UsageKey(digest string, kind Kind) string {
	return fmt.Sprintf("usage:%s:%s", digest, kind)
}
