package cli

import (
	"context"
	goflag "flag"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/attachsync/internal/client/config"
)

// RootOptions holds global state shared by all commands.
type RootOptions struct {
	ConfigFile string

	// Config is loaded before any subcommand runs.
	Config *config.Config
}

// NewRootCommand creates the root command for the attachsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "attachsync",
		Short: "Offline-first attachment sync queue",
		Long: `attachsync keeps a local attachment cache and a remote blob store in sync.

Files are queued locally and uploaded when the remote is reachable; records
reported elsewhere are downloaded on demand. Synced files beyond the cache
limit are evicted locally but stay in the remote store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(changedFlags(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to a JSON config file")

	// Registered for parsing and help only; LoadConfig applies the values
	// after the JSON file and the environment.
	var shown config.Config
	shown.LoadDefaults()
	gfs := goflag.NewFlagSet("config", goflag.ContinueOnError)
	config.BindFlags(gfs, &shown)
	cmd.PersistentFlags().AddGoFlagSet(gfs)

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd
}

// changedFlags renders the flags set on the command line as --name=value.
func changedFlags(fs *pflag.FlagSet) []string {
	var args []string
	fs.Visit(func(f *pflag.Flag) {
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return args
}

// withApp builds the App for the loaded configuration and closes it when fn
// returns.
func withApp(ctx context.Context, opts *RootOptions, fn func(a *App) error) error {
	app, err := NewApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
