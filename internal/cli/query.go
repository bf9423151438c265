package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mcpql/internal/domain"
)

// NewQueryCommand runs one query end to end and prints the result.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	var (
		typeHint   string
		connection string
		database   string
		limit      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "query [query text]",
		Short: "Execute a query and print the tabular result",
		Long: "Executes a query through the pipeline. Reads the query from the arguments,\n" +
			"or from stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			app, cleanup, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.health.Start(app.cfg.Health.Schedule); err != nil {
				app.logger.Warn("health monitor failed to start", "error", err)
			}

			result := app.query.Execute(cmd.Context(), &domain.QueryRequest{
				Query:      text,
				SourceType: typeHint,
				Connection: connection,
				Database:   database,
				Limit:      limit,
			})

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else if result.Success {
				renderTable(cmd.OutOrStdout(), result)
			}

			if !result.Success {
				return fmt.Errorf("query failed: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeHint, "type", "t", "", "data source id to route to (sniffed when empty)")
	cmd.Flags().StringVarP(&connection, "connection", "c", "", "connection target (cluster URL, org URL, file path)")
	cmd.Flags().StringVarP(&database, "database", "d", "", "database or project")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "row limit (backend default when 0)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}
