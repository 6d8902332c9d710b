package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/csrf"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"

	"github.com/kerliix/oauth-backend/internal/config"
	"github.com/kerliix/oauth-backend/internal/kerliix"
	"github.com/kerliix/oauth-backend/internal/pkce"
	"github.com/kerliix/oauth-backend/internal/serviceerr"
)

type Manager struct {
	provider *kerliix.Client
	sessions Repository
	pkce     pkce.Source
	audit    *otlpaudit.AuditLogger

	sessionDuration time.Duration
	stateDuration   time.Duration
	frontendURL     *url.URL

	sessionCookieTemplate config.CookieTemplate
	csrfCookieTemplate    config.CookieTemplate

	csrfSecret []byte
}

func NewManager(
	cfg *config.Session,
	provider *kerliix.Client,
	sessions Repository,
	auditLogger *otlpaudit.AuditLogger,
) (*Manager, error) {
	csrfSecret, err := commoncfg.LoadValueFromSourceRef(cfg.CSRFSecret)
	if err != nil {
		return nil, fmt.Errorf("loading csrf secret from source ref: %w", err)
	}
	if len(csrfSecret) < 32 {
		return nil, errors.New("CSRF secret must be at least 32 bytes")
	}

	frontendURL, err := url.Parse(cfg.FrontendURL)
	if err != nil {
		return nil, fmt.Errorf("parsing frontend URL: %w", err)
	}

	return &Manager{
		provider:              provider,
		sessions:              sessions,
		audit:                 auditLogger,
		sessionDuration:       cfg.Duration,
		stateDuration:         cfg.StateDuration,
		frontendURL:           frontendURL,
		sessionCookieTemplate: cfg.SessionCookieTemplate,
		csrfCookieTemplate:    cfg.CSRFCookieTemplate,
		csrfSecret:            csrfSecret,
	}, nil
}

// StartLogin generates the state and PKCE material for a login attempt,
// stores them and returns the authorization URL to redirect the user
// agent to. A non-empty scopes slice overrides the configured scopes.
func (m *Manager) StartLogin(ctx context.Context, scopes []string, fingerprint string) (string, error) {
	stateID := m.pkce.State()
	p := m.pkce.PKCE()

	state := State{
		ID:           stateID,
		Fingerprint:  fingerprint,
		PKCEVerifier: p.Verifier,
		Scopes:       scopes,
		Expiry:       time.Now().Add(m.stateDuration),
	}

	if err := m.sessions.StoreState(ctx, state); err != nil {
		return "", fmt.Errorf("storing login state: %w", err)
	}

	slogctx.Debug(ctx, "Stored login state", "scopes", strings.Join(scopes, " "))

	return m.provider.AuthURL(stateID, p.Challenge, scopes), nil
}

// LoginResult is what the callback handler needs to finish a login.
type LoginResult struct {
	SessionID   string
	CSRFToken   string
	RedirectURI string
}

// CompleteLogin consumes the stored state, exchanges the authorization
// code for tokens and creates the local session. The state entry is
// deleted before the exchange so a replayed callback can never reuse the
// PKCE verifier.
func (m *Manager) CompleteLogin(ctx context.Context, stateID, code, fingerprint string) (LoginResult, error) {
	state, err := m.sessions.LoadState(ctx, stateID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return LoginResult{}, &serviceerr.Error{
				Err:         serviceerr.CodeInvalidRequest,
				Description: "unknown or already used state",
			}
		}

		return LoginResult{}, fmt.Errorf("loading login state: %w", err)
	}

	if err := m.sessions.DeleteState(ctx, stateID); err != nil {
		return LoginResult{}, fmt.Errorf("consuming login state: %w", err)
	}

	// audit log metadata
	correlationID := uuid.NewString()
	metadata, err := otlpaudit.NewEventMetadata("oauth-backend", "local", correlationID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("creating audit metadata: %w", err)
	}

	if time.Now().After(state.Expiry) {
		m.sendUserLoginFailureAudit(ctx, metadata, stateID, "state expired")
		return LoginResult{}, serviceerr.ErrStateExpired
	}

	if state.Fingerprint != fingerprint {
		m.sendUserLoginFailureAudit(ctx, metadata, stateID, "fingerprint mismatch")
		return LoginResult{}, serviceerr.ErrFingerprintMismatch
	}

	tokens, err := m.provider.Exchange(ctx, code, state.PKCEVerifier)
	if err != nil {
		m.sendUserLoginFailureAudit(ctx, metadata, stateID, "failed to exchange code for tokens")

		// the provider's structured rejection already carries the right
		// code and description; anything else becomes a plain invalid_grant
		var serviceErr *serviceerr.Error
		if errors.As(err, &serviceErr) {
			return LoginResult{}, err
		}

		return LoginResult{}, errors.Join(serviceerr.ErrInvalidGrant, err)
	}

	slogctx.Info(ctx, "Exchanged the auth code for tokens")

	sessionID := m.pkce.SessionID()
	csrfToken := csrf.NewToken(sessionID, m.csrfSecret)

	session := Session{
		ID:          sessionID,
		Fingerprint: fingerprint,
		CSRFToken:   csrfToken,
		Tokens:      tokens,
		Expiry:      time.Now().Add(m.sessionDuration),
		LastVisited: time.Now(),
	}

	if err := m.sessions.StoreSession(ctx, session); err != nil {
		m.sendUserLoginFailureAudit(ctx, metadata, stateID, "failed to store session")
		return LoginResult{}, fmt.Errorf("storing session: %w", err)
	}

	// audit userLoginSuccess
	if m.audit != nil {
		event, err := otlpaudit.NewUserLoginSuccessEvent(metadata, sessionID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.MFATYPE_NONE, otlpaudit.USERTYPE_BUSINESS, sessionID)
		if err != nil {
			return LoginResult{}, fmt.Errorf("creating audit log: %w", err)
		}
		if err := m.audit.SendEvent(ctx, event); err != nil {
			slogctx.Error(ctx, "Failed to send audit log for user login success", "error", err)
		}
	}

	redirect := *m.frontendURL
	q := redirect.Query()
	q.Set("logged_in", "1")
	redirect.RawQuery = q.Encode()

	return LoginResult{
		SessionID:   sessionID,
		CSRFToken:   csrfToken,
		RedirectURI: redirect.String(),
	}, nil
}

// Userinfo resolves the session and fetches the provider's userinfo
// document with the stored access token.
func (m *Manager) Userinfo(ctx context.Context, sessionID string) (map[string]any, error) {
	sess, err := m.loadValidSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	info, err := m.provider.Userinfo(ctx, sess.Tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}

	m.touch(ctx, sess)

	return info, nil
}

// Tokens returns the stored token metadata for the session. Debug use only.
func (m *Manager) Tokens(ctx context.Context, sessionID string) (kerliix.TokenSet, error) {
	sess, err := m.loadValidSession(ctx, sessionID)
	if err != nil {
		return kerliix.TokenSet{}, err
	}

	if sess.Tokens.AccessToken == "" {
		return kerliix.TokenSet{}, serviceerr.ErrNotFound
	}

	m.touch(ctx, sess)

	return sess.Tokens, nil
}

// Revoke invalidates the access token at the provider and deletes the
// local session. The session is removed even when remote revocation
// fails; the returned error reports the provider's answer.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	sess, err := m.loadValidSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.Tokens.AccessToken == "" {
		return &serviceerr.Error{
			Err:         serviceerr.CodeInvalidRequest,
			Description: "no token to revoke",
		}
	}

	revokeErr := m.provider.Revoke(ctx, sess.Tokens.AccessToken)

	if err := m.sessions.DeleteSession(ctx, sess); err != nil {
		slogctx.Warn(ctx, "Could not delete session after revocation", "error", err)
	}

	if revokeErr != nil {
		return fmt.Errorf("revoking token at provider: %w", revokeErr)
	}

	return nil
}

func (m *Manager) loadValidSession(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, serviceerr.ErrUnauthorized
	}

	sess, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return Session{}, serviceerr.ErrUnauthorized
		}

		return Session{}, fmt.Errorf("loading session: %w", err)
	}

	if time.Now().After(sess.Expiry) {
		if err := m.sessions.DeleteSession(ctx, sess); err != nil {
			slogctx.Warn(ctx, "Could not delete expired session", "error", err)
		}

		return Session{}, serviceerr.ErrUnauthorized
	}

	return sess, nil
}

// touch records session activity for the idle-session housekeeper.
func (m *Manager) touch(ctx context.Context, sess Session) {
	if err := m.sessions.DeleteSession(ctx, sess); err != nil {
		slogctx.Warn(ctx, "Could not refresh session activity", "error", err)
		return
	}

	sess.LastVisited = time.Now()
	if err := m.sessions.StoreSession(ctx, sess); err != nil {
		slogctx.Warn(ctx, "Could not store session activity", "error", err)
	}
}

func (m *Manager) MakeSessionCookie(ctx context.Context, value string) (*http.Cookie, error) {
	sessionCookie := m.sessionCookieTemplate.ToCookie(value)

	if err := sessionCookie.Valid(); err != nil {
		return nil, fmt.Errorf("invalid session cookie: %w", err)
	}

	if !sessionCookie.HttpOnly {
		slogctx.Warn(ctx, "Session cookie is not marked as HttpOnly; this is not recommended outside local development")
	}
	if !sessionCookie.Secure {
		slogctx.Warn(ctx, "Session cookie is not marked as Secure; this is not recommended outside local development")
	}

	return sessionCookie, nil
}

func (m *Manager) MakeCSRFCookie(ctx context.Context, value string) (*http.Cookie, error) {
	csrfCookie := m.csrfCookieTemplate.ToCookie(value)

	if err := csrfCookie.Valid(); err != nil {
		return nil, fmt.Errorf("invalid CSRF cookie: %w", err)
	}

	if csrfCookie.HttpOnly {
		slogctx.Warn(ctx, "CSRF cookie is marked as HttpOnly; the CSRF token needs to be accessible from JavaScript")
	}

	return csrfCookie, nil
}

func (m *Manager) ValidateCSRFToken(token, sessionID string) bool {
	return csrf.Validate(token, sessionID, m.csrfSecret)
}

// sendUserLoginFailureAudit creates the user-login-failure audit event and sends it.
// The function logs any errors encountered while creating or sending the event but
// does not propagate them to the caller.
func (m *Manager) sendUserLoginFailureAudit(ctx context.Context, metadata otlpaudit.EventMetadata, objectID, reason string) {
	if m.audit == nil {
		slogctx.Warn(ctx, "audit logger is nil; skipping user login failure event")
		return
	}

	event, err := otlpaudit.NewUserLoginFailureEvent(metadata, objectID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.FailReason(reason), objectID)
	if err != nil {
		slogctx.Error(ctx, "creating audit log", "error", err)
		return
	}

	if err := m.audit.SendEvent(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to send audit log for user login failure", "error", err)
	}
}
