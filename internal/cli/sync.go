package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/labelreader/labelreader/internal/syncer"
	"github.com/labelreader/labelreader/pkg/types"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local mirror with the remote catalog",
		Long: `Compare the remote catalog fingerprint against the one last applied
locally and download both collections when they differ. With --force the
comparison is skipped and the catalog downloads unconditionally.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "download even when fingerprints match")
	return cmd
}

func runSync(cmd *cobra.Command, rootOpts *RootOptions, force bool) error {
	errOut := cmd.ErrOrStderr()

	progress := syncer.WithProgressSink(func(p syncer.Progress) {
		fmt.Fprintf(errOut, "\r%s: %d/%d", p.Phase, p.Loaded, p.Total)
		if p.Loaded >= p.Total {
			fmt.Fprintln(errOut)
		}
	})

	a, _, err := buildApp(rootOpts, progress)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Sync(cmd.Context(), force)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch result.Status {
	case types.SyncUpToDate:
		fmt.Fprintln(out, "Already up to date.")
	case types.SyncUpdated:
		fmt.Fprintf(out, "Updated: %d products, %d secondary codes.\n", result.Products, result.Aliases)
	case types.SyncFailed:
		// Degraded-continue: the mirror still serves, but say why the
		// refresh did not happen.
		fmt.Fprintf(out, "Sync failed, serving local catalog: %v\n", result.Cause)
	}
	return nil
}
