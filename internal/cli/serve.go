package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mcpql/internal/api"
	"mcpql/internal/config"
)

// NewServeCommand runs the HTTP API server until interrupted.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr != "" {
				app.cfg.API.Addr = addr
			}
			if err := app.health.Start(app.cfg.Health.Schedule); err != nil {
				app.logger.Warn("health monitor failed to start", "error", err)
			}

			// pick up config edits without a restart
			watcher, err := config.Watch(opts.ConfigPath, app.logger, func(fresh *config.Config) {
				app.logger.Info("configuration changed; restart to apply backend changes")
			})
			if err != nil {
				app.logger.Warn("config watch unavailable", "error", err)
			} else {
				defer watcher.Close()
			}

			server := api.NewServer(app.query, app.cfg.API, app.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
