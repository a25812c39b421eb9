package httpmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// EmitKey guards the emit endpoints with a static bearer key shared with the
// backend services. An empty key disables the check.
func EmitKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"missing bearer token"}}`))
				return
			}
			got := strings.TrimSpace(auth[len("Bearer "):])
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":{"message":"invalid emit key"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
