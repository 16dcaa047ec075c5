package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/attachsync/internal/client/storage"
	"github.com/dmitrijs2005/attachsync/internal/common"
	"github.com/dmitrijs2005/attachsync/internal/logging"
)

type Options struct {
	// CacheDir holds the local copies. Made absolute by NewQueue.
	CacheDir string

	// SyncInterval is the period of the background trigger. Zero or negative
	// disables it; cron granularity is one second.
	SyncInterval time.Duration

	// CacheLimit is how many synced records keep their local copy.
	// Negative selects the default.
	CacheLimit int

	// DownloadBatchSize bounds a single download query. Zero or negative
	// selects the default.
	DownloadBatchSize int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions(cacheDir string) Options {
	return Options{
		CacheDir:          cacheDir,
		SyncInterval:      common.DefaultSyncInterval,
		CacheLimit:        common.DefaultCacheLimit,
		DownloadBatchSize: common.DefaultDownloadBatchSize,
	}
}

// Queue keeps the local cache and the remote store converging. It is safe for
// concurrent use. Several queues may share one repository and storage.
type Queue struct {
	repo    attachments.Repository
	storage storage.Storage
	kind    Kind
	opts    Options
	log     logging.Logger

	uploading   atomic.Bool
	downloading atomic.Bool
	expiring    atomic.Bool

	mu          sync.Mutex
	started     bool
	stopped     bool
	scheduler   *cron.Cron
	cancelWatch context.CancelFunc
	runCtx      context.Context
	cancelRun   context.CancelFunc
	wg          sync.WaitGroup
}

func NewQueue(repo attachments.Repository, st storage.Storage, kind Kind, opts Options, logger logging.Logger) *Queue {
	if opts.CacheLimit < 0 {
		opts.CacheLimit = common.DefaultCacheLimit
	}
	if opts.DownloadBatchSize <= 0 {
		opts.DownloadBatchSize = common.DefaultDownloadBatchSize
	}
	if abs, err := filepath.Abs(opts.CacheDir); err == nil {
		opts.CacheDir = abs
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Queue{
		repo:    repo,
		storage: st,
		kind:    kind,
		opts:    opts,
		log:     logger.With("component", "attachment_queue"),
	}
}

// Init creates the cache directory, then starts reconciliation, both watchers
// and the periodic trigger in the background. Only the directory failure is
// returned; background failures are logged.
func (q *Queue) Init(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return common.ErrAlreadyStarted
	}

	if err := q.storage.MakeDir(ctx, q.opts.CacheDir); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	base := context.WithoutCancel(ctx)
	q.runCtx, q.cancelRun = context.WithCancel(base)
	watchCtx, cancelWatch := context.WithCancel(base)
	q.cancelWatch = cancelWatch
	q.started = true

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.reconcileCandidates(q.runCtx)
	}()

	q.wg.Add(2)
	go q.watchLoop(watchCtx, "upload", q.repo.WatchUploadIDs(watchCtx))
	go q.watchLoop(watchCtx, "download", q.repo.WatchDownloadIDs(watchCtx))

	q.scheduler = cron.New()
	if q.opts.SyncInterval > 0 {
		q.scheduler.Schedule(cron.Every(q.opts.SyncInterval), cron.FuncJob(q.Trigger))
	}
	q.scheduler.Start()

	q.log.Info(ctx, "attachment queue started",
		"cache_dir", q.opts.CacheDir,
		"sync_interval", q.opts.SyncInterval.String(),
		"cache_limit", q.opts.CacheLimit,
	)
	return nil
}

func (q *Queue) reconcileCandidates(ctx context.Context) {
	ids, err := q.kind.CandidateIDs(ctx)
	if err != nil {
		q.log.Warn(ctx, "failed to load candidate ids", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := q.Reconcile(ctx, ids); err != nil {
		q.log.Warn(ctx, "failed to reconcile candidate ids", "count", len(ids), "error", err)
		return
	}
	q.log.Info(ctx, "reconciled candidate ids", "count", len(ids))
}

func (q *Queue) watchLoop(ctx context.Context, name string, ch <-chan attachments.Snapshot) {
	defer q.wg.Done()
	for s := range ch {
		if s.Err != nil {
			q.log.Warn(ctx, "watch query failed", "watch", name, "error", s.Err)
			continue
		}
		if len(s.IDs) > 0 {
			q.Trigger()
		}
	}
}

// Trigger starts the upload worker, the download worker and the evictor
// concurrently and returns at once. Workers already running are left alone.
// Trigger does nothing before Init or after Shutdown.
func (q *Queue) Trigger() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started || q.stopped {
		return
	}

	q.spawn("upload", &q.uploading, q.UploadRecords)
	q.spawn("download", &q.downloading, q.DownloadRecords)
	q.spawn("expire", &q.expiring, q.ExpireCache)
}

// spawn must be called with q.mu held.
func (q *Queue) spawn(name string, busy *atomic.Bool, fn func(context.Context) error) {
	if busy.Load() {
		return
	}
	ctx := q.runCtx
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			q.log.Warn(ctx, "worker pass failed", "worker", name, "error", err)
		}
	}()
}

// RunOnce runs one pass of every worker and waits for all of them. Unlike
// Trigger it does not require Init and reports the first worker error.
func (q *Queue) RunOnce(ctx context.Context) error {
	if err := q.storage.MakeDir(ctx, q.opts.CacheDir); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// no derived context: a failing worker must not cut the others short
	var g errgroup.Group
	g.Go(func() error { return q.UploadRecords(ctx) })
	g.Go(func() error { return q.DownloadRecords(ctx) })
	g.Go(func() error { return q.ExpireCache(ctx) })
	return g.Wait()
}

// Shutdown stops the timer and the watchers and waits for running passes to
// finish. If ctx ends first the passes are cancelled and ctx.Err is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return common.ErrNotStarted
	}
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	q.mu.Unlock()

	cronDone := q.scheduler.Stop()
	q.cancelWatch()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		q.wg.Wait()
		close(done)
	}()

	defer q.cancelRun()
	select {
	case <-done:
		q.log.Info(ctx, "attachment queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// ClearQueue deletes every record. Cached files are left in place.
func (q *Queue) ClearQueue(ctx context.Context) error {
	if err := q.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// LocalURI is where filename is cached.
func (q *Queue) LocalURI(filename string) string {
	return filepath.Join(q.opts.CacheDir, filename)
}

// Delete removes the record and then its cached file. A missing file is fine.
func (q *Queue) Delete(ctx context.Context, id string) error {
	var rec *models.Attachment
	err := q.repo.Transaction(ctx, func(ctx context.Context, tx attachments.Repository) error {
		var err error
		rec, err = tx.Get(ctx, id)
		if err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete attachment %s: %w", id, err)
	}

	if err := q.storage.DeleteFile(ctx, rec.Filename, q.localPath(rec)); err != nil {
		q.log.Warn(ctx, "failed to delete cached file",
			common.LogKeyAttachmentID, rec.ID, common.LogKeyFilename, rec.Filename, "error", err)
	}
	return nil
}

// checkFilename rejects names that would resolve outside the cache directory.
func checkFilename(name string) error {
	switch {
	case name == "":
		return common.ErrMissingFilename
	case name == "." || name == ".." || strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%q: %w", name, common.ErrInvalidFilename)
	}
	return nil
}

// SaveToQueue persists rec; the repository stamps its Timestamp.
func (q *Queue) SaveToQueue(ctx context.Context, rec *models.Attachment) error {
	if err := checkFilename(rec.Filename); err != nil {
		return err
	}
	if err := q.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("save attachment %s: %w", rec.ID, err)
	}
	return nil
}

// SaveFile writes data into the cache and queues a new record for upload.
func (q *Queue) SaveFile(ctx context.Context, data []byte, p Partial) (*models.Attachment, error) {
	rec := q.kind.NewRecord(p)
	if err := checkFilename(rec.Filename); err != nil {
		return nil, err
	}

	local := q.LocalURI(rec.Filename)
	if err := q.storage.MakeDir(ctx, filepath.Dir(local)); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := q.storage.WriteFile(ctx, local, data); err != nil {
		return nil, fmt.Errorf("write cached file: %w", err)
	}

	rec.LocalURI = models.Ptr(local)
	rec.Size = models.Ptr(int64(len(data)))

	if err := q.SaveToQueue(ctx, &rec); err != nil {
		if derr := q.storage.DeleteFile(ctx, rec.Filename, local); derr != nil {
			q.log.Warn(ctx, "failed to remove unqueued file",
				common.LogKeyAttachmentID, rec.ID, common.LogKeyFilename, rec.Filename, "error", derr)
		}
		return nil, err
	}
	q.log.Debug(ctx, "attachment queued",
		common.LogKeyAttachmentID, rec.ID, common.LogKeyFilename, rec.Filename, "size", len(data))
	return &rec, nil
}

// Reconcile marks every id as QUEUED_SYNC. Unknown ids get a fresh record
// with no local path; ids that do not make a plain file name are skipped.
// Safe to repeat.
func (q *Queue) Reconcile(ctx context.Context, ids []string) error {
	return q.repo.Transaction(ctx, func(ctx context.Context, tx attachments.Repository) error {
		for _, id := range ids {
			rec, err := tx.Get(ctx, id)
			switch {
			case errors.Is(err, common.ErrorNotFound):
				n := q.kind.NewRecord(Partial{ID: id})
				if err := checkFilename(n.Filename); err != nil {
					q.log.Warn(ctx, "skipping id with unusable filename", common.LogKeyAttachmentID, id, "error", err)
					continue
				}
				n.LocalURI = nil
				n.Size = nil
				n.State = models.StateQueuedSync
				if err := tx.Upsert(ctx, &n); err != nil {
					return fmt.Errorf("insert %s: %w", id, err)
				}
			case err != nil:
				return fmt.Errorf("get %s: %w", id, err)
			default:
				rec.State = models.StateQueuedSync
				if err := tx.Update(ctx, rec); err != nil {
					return fmt.Errorf("update %s: %w", id, err)
				}
			}
		}
		return nil
	})
}

// Stats returns the number of records per state.
func (q *Queue) Stats(ctx context.Context) (map[models.State]int, error) {
	return q.repo.CountByState(ctx)
}

// CacheDir returns the absolute cache directory.
func (q *Queue) CacheDir() string {
	return q.opts.CacheDir
}

func (q *Queue) localPath(rec *models.Attachment) string {
	if rec.LocalURI != nil {
		return *rec.LocalURI
	}
	return q.LocalURI(rec.Filename)
}
