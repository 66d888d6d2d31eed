package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "corebank/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler produces the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": dErrors.MessageOf(err),
	})
}
