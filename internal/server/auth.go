package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// APIKeyHeader is the request header carrying the shared secret.
const APIKeyHeader = "X-API-Key"

type authErrorResponse struct {
	Error string `json:"error"`
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authErrorResponse{Error: message})
}

// requireAPIKey guards a handler with shared-secret authentication.
// The three failure cases are distinguishable by status: 500 when the
// server has no key configured, 401 when the header is absent, 403
// when the presented key does not match. Comparison is constant-time.
func requireAPIKey(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			writeAuthError(w, http.StatusInternalServerError, "API key authentication is not configured on the server.")
			return
		}

		presented := r.Header.Get(APIKeyHeader)
		if presented == "" {
			writeAuthError(w, http.StatusUnauthorized, "Missing API key.")
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			writeAuthError(w, http.StatusForbidden, "Invalid API key.")
			return
		}

		next.ServeHTTP(w, r)
	})
}
