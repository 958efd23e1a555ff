package main

import (
	"github.com/spf13/cobra"
	"github.com/target/txalert/internal/bootstrap"
	httpx "github.com/target/txalert/internal/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the Pub/Sub push endpoint",
		Long: "Starts an HTTP server that accepts Pub/Sub push deliveries on POST /pubsub/push\n" +
			"and relays each message as one alert. Stops gracefully on SIGINT or SIGTERM.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			logger := bootstrap.InitLogger(cfg.Observability.SlogLevel())
			logger.InfoContext(ctx, "starting txalert",
				"version", version,
				"addr", cfg.HTTP.Addr,
				"twitter_base_url", cfg.Twitter.BaseURL,
				"push_auth", cfg.PushAuth.Enabled,
				"metrics", cfg.Observability.Metrics.IsEnabled(),
			)

			r, err := bootstrap.NewRelay(cfg, bootstrap.RelayDeps{Logger: logger})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := r.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close metrics client failed", "error", cerr)
				}
			}()

			verifier, err := bootstrap.NewPushVerifier(ctx, cfg.PushAuth, nil)
			if err != nil {
				return err
			}

			return bootstrap.Serve(ctx, bootstrap.ServerConfig{
				HTTP: cfg.HTTP,
				Handler: httpx.NewRouter(httpx.RouterOptions{
					Relay:        r,
					Verifier:     verifier,
					MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
					Logger:       logger,
				}),
				Logger: logger,
			})
		},
	}
}
