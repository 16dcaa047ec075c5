package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/disiqueira/gotree/v3"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
)

var allStates = []models.State{
	models.StateQueuedUpload,
	models.StateQueuedDownload,
	models.StateQueuedSync,
	models.StateSynced,
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts and cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				counts, err := a.queue.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				writeCounts(out, counts)
				return writeCacheUsage(out, a.queue.CacheDir())
			})
		},
	}
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		stateName   string
		checkRemote bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every record grouped by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var only *models.State
			if stateName != "" {
				s, err := models.ParseState(stateName)
				if err != nil {
					return err
				}
				only = &s
			}

			return withApp(cmd.Context(), rootOpts, func(a *App) error {
				recs, err := a.repo.List(cmd.Context())
				if err != nil {
					return err
				}

				var shown []*models.Attachment
				for _, rec := range recs {
					if only == nil || rec.State == *only {
						shown = append(shown, rec)
					}
				}

				var remote map[string]bool
				if checkRemote {
					remote = make(map[string]bool, len(shown))
					for _, rec := range shown {
						ok, err := a.storage.RemoteExists(cmd.Context(), rec.Filename)
						if err != nil {
							return fmt.Errorf("check remote %s: %w", rec.Filename, err)
						}
						remote[rec.ID] = ok
					}
				}

				fmt.Fprint(cmd.OutOrStdout(), recordTree(shown, remote).Print())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stateName, "state", "", "only list records in this state, e.g. QUEUED_UPLOAD")
	cmd.Flags().BoolVar(&checkRemote, "check-remote", false, "mark whether each record exists in the remote store")
	return cmd
}

func writeCounts(w io.Writer, counts map[models.State]int) {
	total := 0
	for _, s := range allStates {
		fmt.Fprintf(w, "%-16s %d\n", s.String(), counts[s])
		total += counts[s]
	}
	fmt.Fprintf(w, "%-16s %d\n", "TOTAL", total)
}

func writeCacheUsage(w io.Writer, dir string) error {
	files, size, err := dirUsage(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "cache %s: %d files, %d bytes\n", dir, files, size)

	if files == 0 {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("disk usage: %w", err)
	}
	fmt.Fprintf(w, "disk: %d of %d bytes free (%.1f%% used)\n", usage.Free, usage.Total, usage.UsedPercent)
	return nil
}

// dirUsage counts regular files under dir. A missing dir is empty.
func dirUsage(dir string) (files int, size int64, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		size += info.Size()
		return nil
	})
	return files, size, err
}

// recordTree renders recs grouped by state. remote, when non-nil, holds the
// remote presence of each record by id.
func recordTree(recs []*models.Attachment, remote map[string]bool) gotree.Tree {
	root := gotree.New("attachments")
	groups := make(map[models.State]gotree.Tree)
	for _, rec := range recs {
		g, ok := groups[rec.State]
		if !ok {
			g = root.Add(rec.State.String())
			groups[rec.State] = g
		}

		label := rec.ID + " " + rec.Filename
		if rec.Size != nil {
			label += fmt.Sprintf(" %dB", *rec.Size)
		}
		if rec.LocalURI == nil {
			label += " (remote only)"
		}
		if remote != nil {
			if remote[rec.ID] {
				label += " [in remote]"
			} else {
				label += " [not in remote]"
			}
		}
		label += " " + rec.Time().UTC().Format(time.RFC3339)
		g.Add(label)
	}
	return root
}
