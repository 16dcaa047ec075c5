package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/attachsync/internal/client/client"
	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/attachsync/internal/client/storage"
	"github.com/dmitrijs2005/attachsync/internal/common"
	"github.com/dmitrijs2005/attachsync/internal/logging"
	"github.com/stretchr/testify/require"
)

// fakeStorage keeps local files and remote objects in memory.
type fakeStorage struct {
	mu        sync.Mutex
	files     map[string][]byte
	remote    map[string]storage.Blob
	uploads   []string
	downloads []string

	makeDirErr  error
	readErr     error
	deleteErr   error
	uploadErr   func(filename string) error
	downloadErr func(filename string) error
	onUpload    func(ctx context.Context, filename string)
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		files:  map[string][]byte{},
		remote: map[string]storage.Blob{},
	}
}

func (f *fakeStorage) MakeDir(context.Context, string) error {
	return f.makeDirErr
}

func (f *fakeStorage) WriteFile(_ context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) ReadFile(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}
	return data, nil
}

func (f *fakeStorage) DeleteFile(_ context.Context, _ string, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.files, path)
	return nil
}

func (f *fakeStorage) FileExists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok, nil
}

func (f *fakeStorage) UploadFile(ctx context.Context, filename string, data []byte, opts storage.UploadOptions) error {
	if f.onUpload != nil {
		f.onUpload(ctx, filename)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	if f.uploadErr != nil {
		if err := f.uploadErr(filename); err != nil {
			return err
		}
	}
	if _, ok := f.remote[filename]; ok {
		return fmt.Errorf("put %s: %w", filename, storage.ErrDuplicate)
	}
	f.remote[filename] = storage.Blob{Data: append([]byte(nil), data...), MediaType: opts.MediaType}
	return nil
}

func (f *fakeStorage) DownloadFile(_ context.Context, filename string) (*storage.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, filename)
	if f.downloadErr != nil {
		if err := f.downloadErr(filename); err != nil {
			return nil, err
		}
	}
	b, ok := f.remote[filename]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", filename, common.ErrorNotFound)
	}
	return &storage.Blob{Data: append([]byte(nil), b.Data...), MediaType: b.MediaType}, nil
}

func (f *fakeStorage) hasFile(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

func (f *fakeStorage) uploadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *fakeStorage) downloadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.downloads...)
}

// tickClock returns strictly increasing times, one millisecond apart.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type testQueue struct {
	*Queue
	repo    *attachments.SQLiteRepository
	storage *fakeStorage
	dir     string
}

func newTestQueue(t *testing.T, kind Kind, mutate func(*Options)) *testQueue {
	t.Helper()
	ctx := context.Background()

	db, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &tickClock{t: time.UnixMilli(1_700_000_000_000)}
	repo := attachments.NewSQLiteRepository(db, attachments.WithClock(clock.Now))

	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.SyncInterval = 0
	if mutate != nil {
		mutate(&opts)
	}
	if kind == nil {
		kind = FileKind{Extension: ".jpg", MediaType: "image/jpeg"}
	}

	st := newFakeStorage()
	return &testQueue{
		Queue:   NewQueue(repo, st, kind, opts, logging.Discard()),
		repo:    repo,
		storage: st,
		dir:     dir,
	}
}

// put inserts a record and, when withFile is set, its cached bytes.
func (tq *testQueue) put(t *testing.T, id string, state models.State, withFile bool) *models.Attachment {
	t.Helper()
	rec := &models.Attachment{ID: id, Filename: id + ".jpg", State: state}
	if withFile {
		local := tq.LocalURI(rec.Filename)
		rec.LocalURI = models.Ptr(local)
		require.NoError(t, tq.storage.WriteFile(context.Background(), local, []byte("bytes-"+id)))
	}
	require.NoError(t, tq.repo.Upsert(context.Background(), rec))
	return rec
}

func (tq *testQueue) state(t *testing.T, id string) models.State {
	t.Helper()
	rec, err := tq.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return rec.State
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond, msg)
}
