package cors_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kerliix/oauth-backend/internal/middleware/cors"
)

func TestHandler(t *testing.T) {
	tests := []struct {
		name             string
		allowedOrigins   []string
		allowCredentials bool
		method           string
		origin           string
		wantStatus       int
		wantAllowOrigin  string
		wantCredentials  string
		wantNextCalled   bool
	}{
		{
			name:             "Allowed origin",
			allowedOrigins:   []string{"http://localhost:5176"},
			allowCredentials: true,
			method:           http.MethodGet,
			origin:           "http://localhost:5176",
			wantStatus:       http.StatusOK,
			wantAllowOrigin:  "http://localhost:5176",
			wantCredentials:  "true",
			wantNextCalled:   true,
		},
		{
			name:           "Unknown origin gets no CORS headers",
			allowedOrigins: []string{"http://localhost:5176"},
			method:         http.MethodGet,
			origin:         "http://evil.example.com",
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:           "No origin header",
			allowedOrigins: []string{"http://localhost:5176"},
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:             "Preflight short-circuits",
			allowedOrigins:   []string{"http://localhost:5176"},
			allowCredentials: true,
			method:           http.MethodOptions,
			origin:           "http://localhost:5176",
			wantStatus:       http.StatusNoContent,
			wantAllowOrigin:  "http://localhost:5176",
			wantCredentials:  "true",
			wantNextCalled:   false,
		},
		{
			name:           "Credentials disabled",
			allowedOrigins: []string{"http://localhost:5176"},
			method:         http.MethodGet,
			origin:         "http://localhost:5176",
			wantStatus:     http.StatusOK,
			wantAllowOrigin: "http://localhost:5176",
			wantNextCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			handler := cors.New(tt.allowedOrigins, tt.allowCredentials).Handler(next)

			req := httptest.NewRequest(tt.method, "/me", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, "Unexpected status code")
			assert.Equal(t, tt.wantAllowOrigin, rec.Header().Get("Access-Control-Allow-Origin"), "Unexpected allow origin")
			assert.Equal(t, tt.wantCredentials, rec.Header().Get("Access-Control-Allow-Credentials"), "Unexpected allow credentials")
			assert.Equal(t, tt.wantNextCalled, nextCalled, "Unexpected next handler invocation")
		})
	}
}
