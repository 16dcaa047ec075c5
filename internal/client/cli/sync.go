package cli

import (
	"github.com/spf13/cobra"
)

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one upload, download and eviction pass",
		Long: `Run every worker once and wait for it. An upload failure stops the upload
pass so the oldest record is retried first next time; download failures only
skip the failing record. The resulting counts are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				syncErr := a.queue.RunOnce(cmd.Context())
				counts, err := a.queue.Stats(cmd.Context())
				if err != nil {
					return err
				}
				writeCounts(cmd.OutOrStdout(), counts)
				return syncErr
			})
		},
	}
}
