package httpapi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/agentcache/gateway/invalidate"
)

// marshalResult serializes an arbitrary JSON-decoded value (tool result or
// db rows) back into the string payload the tier engine stores.
func marshalResult(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// rowCount reports len(rows) when rows decoded as a JSON array, else 1 for
// any other non-nil shape (a single row object).
func rowCount(rows interface{}) int {
	if arr, ok := rows.([]interface{}); ok {
		return len(arr)
	}
	return 1
}

// fragment returns the trailing segment of a structured cache key for
// client-side correlation, without leaking the full key.
func fragment(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) == 0 {
		return key
	}
	return parts[len(parts)-1]
}

// invalidateRequestFrom maps the wire body onto an invalidate.Request,
// scoped to the caller's resolved namespace.
func invalidateRequestFrom(req invalidateRequest, namespace string) invalidate.Request {
	return invalidate.Request{
		Namespace:           namespace,
		Key:                 req.Key,
		Pattern:             req.Pattern,
		Tags:                req.Tags,
		InvalidateSchema:    req.InvalidateSchema,
		DBName:              req.DBName,
		SchemaVersion:       req.SchemaVersion,
		InvalidateNamespace: req.InvalidateNamespace,
		Confirm:             req.Confirm,
		OlderThan:           time.Duration(req.OlderThanSeconds) * time.Second,
		URL:                 req.URL,
	}
}

// parsePeriod parses a query period like "1d"/"7d"/"30d" into a day count,
// defaulting to 1 when absent or malformed.
func parsePeriod(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	raw = strings.TrimSuffix(raw, "d")
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 1
	}
	return days
}
