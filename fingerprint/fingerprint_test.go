package fingerprint_test

import (
	"testing"

	"github.com/agentcache/gateway/fingerprint"
	"github.com/agentcache/gateway/gwerrors"
)

func temp(f float64) *float64 { return &f }

func TestFingerprintLLM_Deterministic(t *testing.T) {
	in := fingerprint.LLMInputs{
		Provider:    "openai",
		Model:       "gpt-4",
		Messages:    []fingerprint.ChatMessage{{Role: "user", Content: "hi"}},
		Temperature: temp(0.7),
	}
	r1, err := fingerprint.FingerprintLLM(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := fingerprint.FingerprintLLM(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.Digest != r2.Digest {
		t.Fatalf("expected deterministic digest, got %s != %s", r1.Digest, r2.Digest)
	}
	if len(r1.Digest) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(r1.Digest))
	}
}

func TestFingerprintLLM_TemperatureDrift(t *testing.T) {
	base := fingerprint.LLMInputs{
		Provider:    "openai",
		Model:       "gpt-4",
		Messages:    []fingerprint.ChatMessage{{Role: "user", Content: "hi"}},
		Temperature: temp(0.7),
	}
	drifted := base
	drifted.Temperature = temp(0.8)

	r1, _ := fingerprint.FingerprintLLM(base)
	r2, _ := fingerprint.FingerprintLLM(drifted)
	if r1.Digest == r2.Digest {
		t.Fatalf("expected different digests for differing temperature")
	}
}

func TestFingerprintLLM_MissingFields(t *testing.T) {
	cases := []fingerprint.LLMInputs{
		{Model: "gpt-4", Messages: []fingerprint.ChatMessage{{Role: "user", Content: "hi"}}},
		{Provider: "openai", Messages: []fingerprint.ChatMessage{{Role: "user", Content: "hi"}}},
		{Provider: "openai", Model: "gpt-4"},
	}
	for i, c := range cases {
		_, err := fingerprint.FingerprintLLM(c)
		if !gwerrors.Is(err, gwerrors.KindInvalidInput) {
			t.Fatalf("case %d: expected InvalidInput, got %v", i, err)
		}
	}
}

func TestFingerprintTool_KeyOrderIndependence(t *testing.T) {
	a := fingerprint.ToolInputs{
		ToolName:   "weather",
		Parameters: map[string]interface{}{"city": "SFO", "units": "imperial"},
		Version:    "v1",
	}
	b := fingerprint.ToolInputs{
		ToolName:   "weather",
		Parameters: map[string]interface{}{"units": "imperial", "city": "SFO"},
		Version:    "v1",
	}
	ra, err := fingerprint.FingerprintTool(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rb, err := fingerprint.FingerprintTool(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ra.Digest != rb.Digest {
		t.Fatalf("expected map key order to not affect digest")
	}
}

func TestFingerprintDB_RequiresQuery(t *testing.T) {
	_, err := fingerprint.FingerprintDB(fingerprint.DBInputs{SchemaVersion: "1"})
	if !gwerrors.Is(err, gwerrors.KindInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestStructuredKey_LLM(t *testing.T) {
	key := fingerprint.StructuredKey(fingerprint.KindLLM, "l2", "default", "openai", "gpt-4", "abc123")
	want := "agentcache:v1:default:openai:gpt-4:abc123"
	if key != want {
		t.Fatalf("expected %s, got %s", want, key)
	}
}

func TestToolKey(t *testing.T) {
	key := fingerprint.ToolKey("v1", "acme", "weather", "abc123")
	want := "agentcache:tool:v1:acme:weather:abc123"
	if key != want {
		t.Fatalf("expected %s, got %s", want, key)
	}
}

func TestDBKey(t *testing.T) {
	key := fingerprint.DBKey("acme", "orders", "abc123")
	want := "agentcache:db:v1:acme:orders:abc123"
	if key != want {
		t.Fatalf("expected %s, got %s", want, key)
	}
}

func TestMetaKey(t *testing.T) {
	if got := fingerprint.MetaKey("foo"); got != "foo:meta" {
		t.Fatalf("expected foo:meta, got %s", got)
	}
}
