package session

import (
	"context"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// CleanupIdleSessions deletes sessions that have been idle for longer than
// the given timeout. Expired entries are evicted by the store itself; this
// catches sessions that are still live but abandoned.
func (m *Manager) CleanupIdleSessions(ctx context.Context, timeout time.Duration) error {
	sessions, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		if time.Since(s.LastVisited) < timeout {
			continue
		}
		if err := m.sessions.DeleteSession(ctx, s); err != nil {
			slogctx.Warn(ctx, "Could not delete idle session", "error", err)
			continue
		}
		slogctx.Info(ctx, "Deleted idle session")
	}

	return nil
}
