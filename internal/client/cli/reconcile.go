package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/attachsync/internal/client/services"
)

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [id]...",
		Short: "Mark ids for sync, inserting unknown ones",
		Long: `Mark every given id as QUEUED_SYNC. Ids not known locally are inserted
without a local file so the next sync downloads them. Without arguments the
ids file from the configuration is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				ids := args
				if len(ids) == 0 {
					if a.config.IDsFile == "" {
						return errors.New("no ids given and no ids file configured")
					}
					var err error
					ids, err = services.FileIDSource(a.config.IDsFile)(cmd.Context())
					if err != nil {
						return err
					}
				}

				if err := a.queue.Reconcile(cmd.Context(), ids); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d ids\n", len(ids))
				return nil
			})
		},
	}
}
