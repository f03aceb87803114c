package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey rejects requests whose X-Admin-Key does not match key. An empty key
// disables the check.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "UNAUTHORIZED",
					"message": "missing or invalid admin key",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
