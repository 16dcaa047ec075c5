// Package inbox imports files dropped into a directory into the attachment
// queue. Each imported file is removed from the inbox once it is queued.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/client/services"
	"github.com/dmitrijs2005/attachsync/internal/client/storage"
	"github.com/dmitrijs2005/attachsync/internal/logging"
)

// DefaultSettle is how long a file must stay quiet before it is imported.
const DefaultSettle = 250 * time.Millisecond

// Importer queues file contents. *services.Queue implements it.
type Importer interface {
	SaveFile(ctx context.Context, data []byte, p services.Partial) (*models.Attachment, error)
}

// Watcher imports files created in a single directory.
type Watcher struct {
	dir      string
	importer Importer
	log      logging.Logger
	settle   time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	pending map[string]*time.Timer
}

// New creates a watcher for dir. settle <= 0 selects DefaultSettle.
func New(dir string, importer Importer, settle time.Duration, logger logging.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Watcher{
		dir:      dir,
		importer: importer,
		log:      logger.With("component", "inbox", "dir", dir),
		settle:   settle,
		watcher:  w,
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start creates the directory if needed, imports files already present and
// begins watching for new ones.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("inbox watcher already running")
	}
	if err := os.MkdirAll(w.dir, 0o770); err != nil {
		return fmt.Errorf("failed to create inbox %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		_ = w.watcher.Remove(w.dir)
		return fmt.Errorf("failed to list inbox %s: %w", w.dir, err)
	}

	w.running = true
	ctx = context.WithoutCancel(ctx)
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}

	w.wg.Add(1)
	go w.processEvents(ctx)

	w.log.Info(ctx, "inbox watcher started", "existing", len(entries))
	return nil
}

// Stop ends watching. Imports already running are allowed to finish; files
// still settling stay in the inbox for the next start.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	for p, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, p)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.mu.Lock()
				if w.running {
					w.schedule(ctx, event.Name)
				}
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, "inbox watch error", "error", err)
		}
	}
}

// schedule (re)arms the settle timer for path. Callers hold w.mu.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if ignored(path) {
		return
	}
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			t.Reset(w.settle)
			return
		}
	}

	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		w.importFile(ctx, path)
	})
	w.pending[path] = t
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn(ctx, "failed to read inbox file", "path", path, "error", err)
		return
	}

	rec, err := w.importer.SaveFile(ctx, data, PartialFor(path))
	if err != nil {
		w.log.Warn(ctx, "failed to import inbox file", "path", path, "error", err)
		return
	}

	if err := os.Remove(path); err != nil {
		w.log.Warn(ctx, "failed to remove imported inbox file", "path", path, "error", err)
	}
	w.log.Info(ctx, "imported inbox file", "path", path, "attachment_id", rec.ID, "filename", rec.Filename)
}

// ignored skips hidden and editor temp files.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".part")
}

// PartialFor names a new attachment after a fresh id, keeping the lowercased
// extension of path, and guesses its media type.
func PartialFor(path string) services.Partial {
	id := uuid.NewString()
	p := services.Partial{ID: id, Filename: id + strings.ToLower(filepath.Ext(path))}
	if mt := storage.MediaTypeFor(path); mt != "" {
		p.MediaType = models.Ptr(mt)
	}
	return p
}
