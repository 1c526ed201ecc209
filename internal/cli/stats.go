package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show local mirror totals and last sync time",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := buildApp(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Products:        %d\n", stats.TotalProducts)
			fmt.Fprintf(out, "Secondary codes: %d\n", stats.TotalAliases)
			if stats.LastSync != nil {
				fmt.Fprintf(out, "Last sync:       %s\n", stats.LastSync.Local().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Last sync:       never")
			}
			return nil
		},
	}
}
