package session

import (
	"time"

	"github.com/kerliix/oauth-backend/internal/kerliix"
)

type Session struct {
	ID          string
	Fingerprint string
	CSRFToken   string
	Tokens      kerliix.TokenSet
	Expiry      time.Time
	LastVisited time.Time
}

// State is the record of an outstanding login attempt, keyed by the
// anti-CSRF state value. It is consumed exactly once at the callback.
type State struct {
	ID           string
	Fingerprint  string
	PKCEVerifier string
	Scopes       []string
	Expiry       time.Time
}
