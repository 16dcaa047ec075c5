package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete records and their cached files",
		Long: `Delete the given records and their cached files. The remote object is
kept unless --purge-remote is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				ctx := cmd.Context()
				for _, id := range args {
					rec, err := a.repo.Get(ctx, id)
					if err != nil {
						return err
					}
					if err := a.queue.Delete(ctx, id); err != nil {
						return err
					}
					if purge {
						if err := a.storage.DeleteRemote(ctx, rec.Filename); err != nil {
							return fmt.Errorf("delete remote %s: %w", rec.Filename, err)
						}
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", id, rec.Filename)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&purge, "purge-remote", false, "also delete the object from the remote store")
	return cmd
}
