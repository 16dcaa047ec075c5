package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every queue record (cached files are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				if err := a.queue.ClearQueue(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "queue cleared")
				return nil
			})
		},
	}
}
