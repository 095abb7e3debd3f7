package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/costpilot/gateway/internal/gateway/apierr"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeError renders any error as the taxonomy's JSON envelope, attaching a
// Retry-After header for rate-limit style rejections.
func writeError(w http.ResponseWriter, err error) {
	ae := apierr.From(err)
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(ae.RetryAfter))
	}
	writeJSON(w, ae.Status, errorBody{Error: ae.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
