package cli

import (
	"github.com/spf13/cobra"

	mcpserver "mcpql/internal/mcp"
)

// NewMCPCommand serves the pipeline as MCP tools on stdin/stdout.
func NewMCPCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the query pipeline as MCP tools on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.health.Start(app.cfg.Health.Schedule); err != nil {
				app.logger.Warn("health monitor failed to start", "error", err)
			}

			return mcpserver.New(app.query, app.logger).ServeStdio()
		},
	}
}
