// package server runs the loopback HTTP listener used by provider OAuth
// authorization flows. The listener serves exactly one callback and shuts
// down; it never exposes anything beyond the redirect endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// CallbackServer serves an OAuth redirect endpoint on a local address until
// one authorization completes or the context is cancelled.
type CallbackServer struct {
	addr    string
	handler *OAuthHandler
}

// NewCallbackServer creates a server for the given listen address, e.g.
// "localhost:8080", serving the handler's callback path.
func NewCallbackServer(addr string, handler *OAuthHandler) *CallbackServer {
	return &CallbackServer{addr: addr, handler: handler}
}

// ListenAndWait serves until the OAuth flow completes, then returns the
// exchanged token. The server is always shut down before returning.
func (s *CallbackServer) ListenAndWait(ctx context.Context) (*oauth2.Token, error) {
	mux := http.NewServeMux()
	mux.Handle(s.handler.Path(), s.handler)

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errChan:
		return nil, fmt.Errorf("callback server failed: %w", err)
	case result := <-s.handler.Result():
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Token, nil
	}
}
