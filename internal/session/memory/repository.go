// Package sessionmemory is the default session store: a process-wide TTL
// cache. Nothing survives a restart, which is the point for a local
// development backend.
package sessionmemory

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kerliix/oauth-backend/internal/serviceerr"
	"github.com/kerliix/oauth-backend/internal/session"
)

const (
	statePrefix   = "state:"
	sessionPrefix = "session:"
)

type Repository struct {
	cache *gocache.Cache

	// guards the check-then-delete pairs; the cache itself is already
	// safe for concurrent use.
	mu sync.Mutex
}

var _ = session.Repository(&Repository{})

func NewRepository(cleanupInterval time.Duration) *Repository {
	return &Repository{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (r *Repository) LoadState(_ context.Context, stateID string) (session.State, error) {
	v, ok := r.cache.Get(statePrefix + stateID)
	if !ok {
		return session.State{}, serviceerr.ErrNotFound
	}

	return v.(session.State), nil
}

func (r *Repository) StoreState(_ context.Context, state session.State) error {
	// go-cache treats a non-positive TTL as "never expires", so an
	// already-expired record must not reach the cache at all.
	ttl := time.Until(state.Expiry)
	if ttl <= 0 {
		return nil
	}

	if err := r.cache.Add(statePrefix+state.ID, state, ttl); err != nil {
		return serviceerr.ErrConflict
	}

	return nil
}

func (r *Repository) DeleteState(_ context.Context, stateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := statePrefix + stateID
	if _, ok := r.cache.Get(key); !ok {
		return serviceerr.ErrNotFound
	}
	r.cache.Delete(key)

	return nil
}

func (r *Repository) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	v, ok := r.cache.Get(sessionPrefix + sessionID)
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}

	return v.(session.Session), nil
}

func (r *Repository) StoreSession(_ context.Context, sess session.Session) error {
	ttl := time.Until(sess.Expiry)
	if ttl <= 0 {
		return nil
	}

	if err := r.cache.Add(sessionPrefix+sess.ID, sess, ttl); err != nil {
		return serviceerr.ErrConflict
	}

	return nil
}

func (r *Repository) ListSessions(_ context.Context) ([]session.Session, error) {
	items := r.cache.Items()

	sessions := make([]session.Session, 0, len(items))
	for key, item := range items {
		if !strings.HasPrefix(key, sessionPrefix) || item.Expired() {
			continue
		}
		sessions = append(sessions, item.Object.(session.Session))
	}

	return sessions, nil
}

func (r *Repository) DeleteSession(_ context.Context, sess session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionPrefix + sess.ID
	if _, ok := r.cache.Get(key); !ok {
		return serviceerr.ErrNotFound
	}
	r.cache.Delete(key)

	return nil
}
