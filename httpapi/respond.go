package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/agentcache/gateway/gwerrors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a gwerrors.Error onto its conventional HTTP status and
// the standard error body shape. Non-gateway errors are treated as internal.
func writeError(w http.ResponseWriter, err error) {
	ge, ok := err.(*gwerrors.Error)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponseBody{
			Error: string(gwerrors.KindInternal), Details: err.Error(),
		})
		return
	}
	writeJSON(w, ge.Kind.StatusCode(), errorResponseBody{
		Error:      string(ge.Kind),
		Details:    ge.Details,
		RetryAfter: ge.RetryAfter,
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return gwerrors.Wrap(gwerrors.KindInvalidInput, err, "malformed request body")
	}
	return nil
}
