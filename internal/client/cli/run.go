package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/attachsync/internal/client/inbox"
)

const defaultShutdownTimeout = 30 * time.Second

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync queue until interrupted",
		Long: `Start the queue: reconcile the ids file, watch the record table, trigger
sync on the configured interval and, when an inbox is configured, import files
dropped into it. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				return runQueue(cmd.Context(), a, shutdownTimeout)
			})
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "how long to wait for running transfers on exit")
	return cmd
}

func runQueue(ctx context.Context, a *App, shutdownTimeout time.Duration) error {
	if err := a.queue.Init(ctx); err != nil {
		return err
	}

	var watcher *inbox.Watcher
	if a.config.InboxDir != "" {
		w, err := inbox.New(a.config.InboxDir, a.queue, 0, a.log)
		if err != nil {
			a.shutdownQueue(shutdownTimeout)
			return err
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			a.shutdownQueue(shutdownTimeout)
			return fmt.Errorf("start inbox: %w", err)
		}
		watcher = w
	}

	a.queue.Trigger()
	<-ctx.Done()
	a.log.Info(context.WithoutCancel(ctx), "shutting down")

	if watcher != nil && watcher.IsRunning() {
		if err := watcher.Stop(); err != nil {
			a.log.Warn(context.WithoutCancel(ctx), "failed to stop inbox watcher", "error", err)
		}
	}
	return a.shutdownQueue(shutdownTimeout)
}

func (a *App) shutdownQueue(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.queue.Shutdown(ctx)
}
