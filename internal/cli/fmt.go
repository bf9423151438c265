package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewFmtCommand pretty-prints a query.
func NewFmtCommand(opts *RootOptions) *cobra.Command {
	var typeHint string

	cmd := &cobra.Command{
		Use:   "fmt <query text>",
		Short: "Pretty-print a query in its language's canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			formatted, err := app.query.Format(typeHint, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeHint, "type", "t", "", "data source id (sniffed when empty)")
	return cmd
}
