// Package business wires the session manager, its in-memory store and
// the HTTP server together and runs them until the context is cancelled.
package business

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"

	"github.com/kerliix/oauth-backend/internal/business/server"
	"github.com/kerliix/oauth-backend/internal/config"
	"github.com/kerliix/oauth-backend/internal/kerliix"
	"github.com/kerliix/oauth-backend/internal/session"
	sessionmemory "github.com/kerliix/oauth-backend/internal/session/memory"
)

// Main starts the HTTP API server and the idle-session housekeeper.
func Main(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionManager, err := initSessionManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the session manager: %w", err)
	}

	// errChan is used to capture the first error and shutdown the servers.
	errChan := make(chan error, 1)

	// wg is used to wait for all servers to shutdown.
	var wg sync.WaitGroup

	// start public HTTP REST API server
	wg.Go(func() {
		errChan <- server.StartHTTPServer(ctx, cfg, sessionManager)
	})

	// start the idle-session housekeeper
	wg.Go(func() {
		errChan <- housekeeperMain(ctx, cfg, sessionManager)
	})

	// wait for any error to initiate the shutdown
	if err := <-errChan; err != nil {
		slogctx.Error(ctx, "Shutting down servers", "error", err)
	}
	cancel()

	// wait for all servers to shutdown
	wg.Wait()

	return nil
}

// housekeeperMain drops sessions that have been idle for too long. Both
// jobs share the session manager so they operate on the same store.
func housekeeperMain(ctx context.Context, cfg *config.Config, sessionManager *session.Manager) error {
	c := time.Tick(cfg.Session.CleanupInterval)
	for {
		if err := sessionManager.CleanupIdleSessions(ctx, cfg.Session.IdleTimeout); err != nil {
			slogctx.Error(ctx, "Error during session housekeeping", "error", err)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}

func initSessionManager(ctx context.Context, cfg *config.Config) (*session.Manager, error) {
	provider, err := kerliix.NewClient(ctx, &cfg.OAuth, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("creating the provider client: %w", err)
	}

	sessionRepo := sessionmemory.NewRepository(cfg.Session.CleanupInterval)

	auditLogger, err := otlpaudit.NewLogger(&cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}

	sessManager, err := session.NewManager(
		&cfg.Session,
		provider,
		sessionRepo,
		auditLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}

	return sessManager, nil
}
