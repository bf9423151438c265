package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewValidateCommand checks a query's syntax without executing it.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	var typeHint string

	cmd := &cobra.Command{
		Use:   "validate <query text>",
		Short: "Check a query's syntax without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			errs := app.query.Validate(typeHint, strings.Join(args, " "))
			if len(errs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "query is valid")
				return nil
			}
			for _, e := range errs {
				fmt.Fprintln(cmd.OutOrStdout(), "error:", e)
			}
			return fmt.Errorf("%d validation error(s)", len(errs))
		},
	}

	cmd.Flags().StringVarP(&typeHint, "type", "t", "", "data source id (sniffed when empty)")
	return cmd
}
