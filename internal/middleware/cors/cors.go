// Package cors implements the origin allowlist for the frontend. The
// backend sets credentialed cookies, so wildcard origins are not
// supported.
package cors

import (
	"net/http"
	"slices"
)

type Middleware struct {
	allowedOrigins   []string
	allowCredentials bool
}

func New(allowedOrigins []string, allowCredentials bool) *Middleware {
	return &Middleware{
		allowedOrigins:   allowedOrigins,
		allowCredentials: allowCredentials,
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && slices.Contains(m.allowedOrigins, origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if m.allowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
