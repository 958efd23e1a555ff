package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/target/txalert/config"
	"github.com/target/txalert/internal/adapters/oidc"
	httpx "github.com/target/txalert/internal/http"
	"golang.org/x/sync/errgroup"
)

// NewPushVerifier returns a token verifier for push requests, or nil when push
// authentication is disabled.
func NewPushVerifier(ctx context.Context, cfg config.PushAuthConfig, client *http.Client) (httpx.TokenVerifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	v, err := oidc.NewPushVerifier(ctx, oidc.PushVerifierConfig{
		Issuer:         cfg.Issuer,
		Audience:       cfg.Audience,
		ServiceAccount: cfg.ServiceAccount,
		HTTPClient:     client,
	})
	if err != nil {
		return nil, fmt.Errorf("init push verifier: %w", err)
	}
	return v, nil
}

// ServerConfig contains what Serve needs to run the HTTP server.
type ServerConfig struct {
	HTTP    config.HTTPConfig
	Handler http.Handler
	Logger  *slog.Logger
	// Listener overrides HTTP.Addr when set.
	Listener net.Listener
}

// Serve runs the HTTP server until ctx is done, then shuts it down gracefully
// within HTTP.ShutdownTimeout.
func Serve(ctx context.Context, cfg ServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := cfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	ln := cfg.Listener
	if ln == nil {
		var err error
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
	}

	server := &http.Server{
		Handler:           cfg.Handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		// The parent context is already done; give in-flight pushes their own budget.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})
	return g.Wait()
}
