package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewSourcesCommand lists the enabled data sources.
func NewSourcesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the enabled data sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tORDER")
			for _, d := range app.query.GetDataSources() {
				fmt.Fprintln(w, d.ID+"\t"+d.DisplayName+"\t"+d.QueryLanguage+"\t"+strconv.Itoa(d.SortOrder))
			}
			return w.Flush()
		},
	}
}
