package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/kerliix/oauth-backend/internal/serviceerr"
	"github.com/kerliix/oauth-backend/internal/session"
	"github.com/kerliix/oauth-backend/pkg/fingerprint"
)

// errorModel is the JSON error body, shaped like an RFC 6749 error response.
type errorModel struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type apiServer struct {
	manager *session.Manager

	sessionCookieName,
	csrfCookieName string
}

func newAPIServer(manager *session.Manager, sessionCookieName, csrfCookieName string) *apiServer {
	return &apiServer{
		manager:           manager,
		sessionCookieName: sessionCookieName,
		csrfCookieName:    csrfCookieName,
	}
}

// Root confirms the backend is up. Handy for the frontend dev loop.
func (s *apiServer) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Kerliix OAuth backend running",
	})
}

// Login starts the authorization code flow and redirects the user agent
// to the provider. An optional space-separated `scopes` query parameter
// overrides the configured scopes.
func (s *apiServer) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogctx.Debug(ctx, "Login() called")
	defer slogctx.Debug(ctx, "Login() completed")

	currentFingerprint, err := fingerprint.ExtractFingerprint(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		s.writeError(w, serviceerr.ErrUnknown)
		return
	}

	scopes := strings.Fields(r.URL.Query().Get("scopes"))

	authURL, err := s.manager.StartLogin(ctx, scopes, currentFingerprint)
	if err != nil {
		slogctx.Error(ctx, "Failed to build auth URL", "error", err)
		s.writeError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback finishes the flow: consumes the state, exchanges the code and
// sets the session cookies before bouncing back to the frontend.
func (s *apiServer) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogctx.Debug(ctx, "Callback() called", "state", r.URL.Query().Get("state"))
	defer slogctx.Debug(ctx, "Callback() completed")

	q := r.URL.Query()

	// The provider reports user-facing failures (denied consent etc.) as
	// query parameters; propagate them as-is.
	if errCode := q.Get("error"); errCode != "" {
		writeJSON(w, http.StatusBadRequest, errorModel{
			Error:            errCode,
			ErrorDescription: q.Get("error_description"),
		})
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		s.writeError(w, &serviceerr.Error{
			Err:         serviceerr.CodeInvalidRequest,
			Description: "missing code or state in callback",
		})
		return
	}

	currentFingerprint, err := fingerprint.ExtractFingerprint(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		s.writeError(w, serviceerr.ErrUnknown)
		return
	}

	result, err := s.manager.CompleteLogin(ctx, state, code, currentFingerprint)
	if err != nil {
		slogctx.Error(ctx, "Failed to complete login", "error", err)

		// return generic Unauthorized for 403 Forbidden to avoid leaking
		// information on fingerprint mismatch in the original error body
		if model, status := toErrorModel(err); status == http.StatusForbidden {
			s.writeError(w, serviceerr.ErrUnauthorized)
		} else {
			writeJSON(w, status, model)
		}
		return
	}

	sessionCookie, err := s.manager.MakeSessionCookie(ctx, result.SessionID)
	if err != nil {
		slogctx.Error(ctx, "Failed to create session cookie", "error", err)
		s.writeError(w, serviceerr.ErrUnknown)
		return
	}

	csrfCookie, err := s.manager.MakeCSRFCookie(ctx, result.CSRFToken)
	if err != nil {
		slogctx.Error(ctx, "Failed to create CSRF cookie", "error", err)
		s.writeError(w, serviceerr.ErrUnknown)
		return
	}

	http.SetCookie(w, sessionCookie)
	http.SetCookie(w, csrfCookie)

	slogctx.Debug(ctx, "Redirecting user", "to", result.RedirectURI)
	http.Redirect(w, r, result.RedirectURI, http.StatusFound)
}

// Me returns the provider's userinfo claims for the current session.
func (s *apiServer) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogctx.Debug(ctx, "Me() called")
	defer slogctx.Debug(ctx, "Me() completed")

	info, err := s.manager.Userinfo(ctx, s.sessionID(r))
	if err != nil {
		slogctx.Error(ctx, "Failed to fetch user info", "error", err)
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Tokens returns stored token metadata for the current session.
// Debug endpoint, not meant for production deployments.
func (s *apiServer) Tokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogctx.Debug(ctx, "Tokens() called")
	defer slogctx.Debug(ctx, "Tokens() completed")

	tokens, err := s.manager.Tokens(ctx, s.sessionID(r))
	if err != nil {
		slogctx.Error(ctx, "Failed to load tokens", "error", err)
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// Revoke invalidates the access token at the provider and drops the local
// session. The session and cookies are cleared even when the provider
// refuses the revocation; the body reports which of the two happened.
func (s *apiServer) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogctx.Debug(ctx, "Revoke() called")
	defer slogctx.Debug(ctx, "Revoke() completed")

	sessionID := s.sessionID(r)
	if sessionID == "" {
		s.writeError(w, serviceerr.ErrUnauthorized)
		return
	}

	if !s.manager.ValidateCSRFToken(r.Header.Get("X-CSRF-Token"), sessionID) {
		slogctx.Warn(ctx, "received invalid csrf token value")
		s.writeError(w, serviceerr.ErrInvalidCSRFToken)
		return
	}

	revokeErr := s.manager.Revoke(ctx, sessionID)

	var serviceErr *serviceerr.Error
	if errors.As(revokeErr, &serviceErr) {
		// the session was never touched (no session, nothing to revoke)
		s.writeError(w, revokeErr)
		return
	}

	s.clearCookies(w, r)

	if revokeErr != nil {
		slogctx.Error(ctx, "Provider revocation failed; local session cleared", "error", revokeErr)
		writeJSON(w, http.StatusOK, map[string]any{
			"revoked": false,
			"message": revokeErr.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
}

func (s *apiServer) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(s.sessionCookieName)
	if err != nil {
		return ""
	}

	return cookie.Value
}

func (s *apiServer) clearCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{s.sessionCookieName, s.csrfCookieName} {
		cookie, err := r.Cookie(name)
		if err != nil {
			continue
		}

		cookie.Value = ""
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	model, status := toErrorModel(err)
	writeJSON(w, status, model)
}

func toErrorModel(err error) (errorModel, int) {
	var serviceErr *serviceerr.Error
	if !errors.As(err, &serviceErr) {
		serviceErr = serviceerr.ErrUnknown
	}

	return errorModel{
		Error:            string(serviceErr.Err),
		ErrorDescription: serviceErr.Description,
	}, serviceErr.HTTPStatus()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
