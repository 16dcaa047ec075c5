package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/attachsync/internal/client/inbox"
)

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var syncNow bool

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Queue local files for upload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				ctx := cmd.Context()
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					rec, err := a.queue.SaveFile(ctx, data, inbox.PartialFor(path))
					if err != nil {
						return fmt.Errorf("queue %s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s (%s)\n", path, rec.ID, rec.Filename)
				}

				if syncNow {
					return a.queue.RunOnce(ctx)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&syncNow, "sync", false, "run one sync pass after queuing")
	return cmd
}
