package session_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/kerliix/oauth-backend/internal/config"
	"github.com/kerliix/oauth-backend/internal/kerliix"
)

const testCSRFSecret = "12345678901234567890123456789012"

// providerBehavior steers the fake identity provider per test case.
// exchangeError overrides the error code the token endpoint rejects with.
type providerBehavior struct {
	failExchange  bool
	exchangeError string
	failRevoke    bool
	userinfo      map[string]any
}

// startProvider runs a minimal identity provider on a httptest server and
// returns a relying-party client discovered against it.
func startProvider(t *testing.T, behavior providerBehavior) (*httptest.Server, *kerliix.Client) {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"issuer":                 server.URL,
				"authorization_endpoint": server.URL + "/oauth/authorize",
				"token_endpoint":         server.URL + "/oauth/token",
				"userinfo_endpoint":      server.URL + "/oauth/userinfo",
				"revocation_endpoint":    server.URL + "/oauth/revoke",
				"jwks_uri":               server.URL + "/oauth/keys",
			})
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")

			if behavior.failExchange || behavior.exchangeError != "" {
				errorCode := behavior.exchangeError
				if errorCode == "" {
					errorCode = "invalid_grant"
				}

				w.WriteHeader(http.StatusBadRequest)
				_, _ = fmt.Fprintf(w, `{"error": %q, "error_description": "code exchange failed"}`, errorCode)
				return
			}

			if r.FormValue("code_verifier") == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error": "invalid_request", "error_description": "missing code verifier"}`))
				return
			}

			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-token",
				"refresh_token": "refresh-token",
				"id_token":      "id-token",
				"token_type":    "Bearer",
				"scope":         "openid profile email",
				"expires_in":    3600,
			})
		case "/oauth/userinfo":
			if r.Header.Get("Authorization") != "Bearer access-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(behavior.userinfo)
		case "/oauth/revoke":
			if behavior.failRevoke {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}

			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client, err := kerliix.NewClient(t.Context(), &config.OAuth{
		BaseURL:     server.URL,
		RedirectURI: "http://localhost:5175/callback",
		ClientID:    commoncfg.SourceRef{Source: "embedded", Value: "test-client-id"},
		Scopes:      []string{"openid", "profile", "email"},
	}, server.Client())
	require.NoError(t, err, "discovering the fake provider")

	return server, client
}

// testSessionConfig returns a session configuration suitable for tests.
func testSessionConfig() *config.Session {
	return &config.Session{
		Duration:        time.Hour,
		StateDuration:   10 * time.Minute,
		IdleTimeout:     time.Hour,
		CleanupInterval: time.Minute,
		FrontendURL:     "http://localhost:5176",
		CSRFSecret:      commoncfg.SourceRef{Source: "embedded", Value: testCSRFSecret},
		SessionCookieTemplate: config.CookieTemplate{
			Name:     "session_id",
			Path:     "/",
			HTTPOnly: true,
			SameSite: config.CookieSameSiteLax,
		},
		CSRFCookieTemplate: config.CookieTemplate{
			Name:     "csrf_token",
			Path:     "/",
			SameSite: config.CookieSameSiteLax,
		},
	}
}

func kerliixTokens(accessToken string) kerliix.TokenSet {
	return kerliix.TokenSet{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
}

func validTokens() kerliix.TokenSet {
	return kerliixTokens("access-token")
}

func startAuditServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success": true}`))
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)

	return server
}
