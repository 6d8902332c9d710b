package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerliix/oauth-backend/internal/session"
	sessionmock "github.com/kerliix/oauth-backend/internal/session/mock"
)

// blockingRepository holds the first LoadState call until release is
// closed, signalling entered so a test can cancel the server mid-request.
type blockingRepository struct {
	session.Repository
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepository) LoadState(ctx context.Context, stateID string) (session.State, error) {
	close(r.entered)
	<-r.release

	return r.Repository.LoadState(ctx, stateID)
}

func TestStartHTTPServer_ContextCancellation(t *testing.T) {
	t.Run("gracefully shuts down when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		cfg := testConfig()

		// Start the server in a goroutine
		errChan := make(chan error, 1)
		go func() {
			errChan <- StartHTTPServer(ctx, cfg, nil)
		}()

		// Give the server a moment to start
		time.Sleep(100 * time.Millisecond)

		// Cancel the context to trigger shutdown
		cancel()

		// Wait for shutdown to complete
		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Server did not shut down within timeout")
		}
	})

	t.Run("drains an in-flight request before shutting down", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		socketPath := t.TempDir() + "/http.sock"
		cfg := testConfig()
		cfg.HTTP.Address = "unix://" + socketPath
		cfg.HTTP.ShutdownTimeout = 5 * time.Second

		repo := &blockingRepository{
			Repository: sessionmock.NewInMemRepository(),
			entered:    make(chan struct{}),
			release:    make(chan struct{}),
		}

		manager, err := session.NewManager(&cfg.Session, nil, repo, nil)
		require.NoError(t, err)

		errChan := make(chan error, 1)
		go func() {
			errChan <- StartHTTPServer(ctx, cfg, manager)
		}()

		require.Eventually(t, func() bool {
			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				return false
			}
			_ = conn.Close()

			return true
		}, 2*time.Second, 10*time.Millisecond, "Server did not start listening")

		client := &http.Client{Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return new(net.Dialer).DialContext(ctx, "unix", socketPath)
			},
		}}

		respChan := make(chan *http.Response, 1)
		go func() {
			resp, err := client.Get("http://localhost/callback?code=auth-code&state=test-state")
			if err == nil {
				_ = resp.Body.Close()
				respChan <- resp
			}
		}()

		select {
		case <-repo.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("Request never reached the handler")
		}

		// Shutdown begins with the request still blocked in the handler.
		cancel()
		time.Sleep(100 * time.Millisecond)
		close(repo.release)

		select {
		case err := <-errChan:
			assert.NoError(t, err, "Shutdown should wait for the in-flight request")
		case <-time.After(5 * time.Second):
			t.Fatal("Server did not shut down within timeout")
		}

		select {
		case resp := <-respChan:
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "In-flight request should still be answered")
		case <-time.After(time.Second):
			t.Fatal("In-flight request was never answered")
		}
	})
}

func TestCreateHTTPServer(t *testing.T) {
	t.Run("creates HTTP server with the configured address", func(t *testing.T) {
		cfg := testConfig()
		cfg.HTTP.Address = "localhost:8080"

		require.NoError(t, initMeters(t.Context(), cfg))

		server := createHTTPServer(t.Context(), cfg, nil)

		assert.Equal(t, "localhost:8080", server.Addr)
		assert.NotNil(t, server.Handler)
	})
}
