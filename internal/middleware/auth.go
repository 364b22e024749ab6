package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// writeJSONError writes a JSON error response with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// Auth returns middleware that validates the shared bearer token against a
// bcrypt hash. The WebSocket upgrade path accepts the token via the ?token=
// query parameter since browsers cannot set an Authorization header on the
// handshake request; every other path requires an Authorization: Bearer
// header.
func Auth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			var candidate string
			if r.URL.Path == "/ws" {
				candidate = r.URL.Query().Get("token")
				if candidate == "" {
					writeJSONError(w, http.StatusUnauthorized, "authorization required")
					return
				}
			} else {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					writeJSONError(w, http.StatusUnauthorized, "authorization required")
					return
				}
				candidate = strings.TrimPrefix(authHeader, "Bearer ")
				if candidate == authHeader {
					writeJSONError(w, http.StatusUnauthorized, "invalid authorization header")
					return
				}
			}

			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(candidate)); err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
