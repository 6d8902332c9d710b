package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/kerliix/oauth-backend/internal/config"
	"github.com/kerliix/oauth-backend/internal/middleware/cors"
	"github.com/kerliix/oauth-backend/internal/session"
	"github.com/kerliix/oauth-backend/pkg/fingerprint"
)

// createHTTPServer creates the API http server using the given config.
func createHTTPServer(_ context.Context, cfg *config.Config, sManager *session.Manager) *http.Server {
	apiServer := newAPIServer(
		sManager,
		cfg.Session.SessionCookieTemplate.Name,
		cfg.Session.CSRFCookieTemplate.Name,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", newTraceHandler(cfg, "root", apiServer.Root))
	mux.HandleFunc("GET /login", newTraceHandler(cfg, "login", apiServer.Login))
	mux.HandleFunc("GET /callback", newTraceHandler(cfg, "callback", apiServer.Callback))
	mux.HandleFunc("GET /me", newTraceHandler(cfg, "me", apiServer.Me))
	mux.HandleFunc("GET /tokens", newTraceHandler(cfg, "tokens", apiServer.Tokens))
	mux.HandleFunc("POST /revoke", newTraceHandler(cfg, "revoke", apiServer.Revoke))

	handler := fingerprint.FingerprintCtxMiddleware(mux)
	handler = cors.New(cfg.CORS.AllowedOrigins, cfg.CORS.AllowCredentials).Handler(handler)

	return &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: handler,
	}
}

// StartHTTPServer starts the HTTP server using the given config.
func StartHTTPServer(ctx context.Context, cfg *config.Config, sManager *session.Manager) error {
	if err := initMeters(ctx, cfg); err != nil {
		return err
	}

	server := createHTTPServer(ctx, cfg, sManager)

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address is provided in the format of network://address.
	// Otherwise use tcp network by default. Some integration tests are easier to implement
	// by binding a listener to a unix socket rather than a TCP port,
	// since we don't need to look up for a free port or scan /proc/net on Linux or call sysctl on macOS
	// to discover which port the process is bound to.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	// ctx is already cancelled here; the drain timeout needs a fresh parent
	// or Shutdown gives up on in-flight requests immediately.
	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
