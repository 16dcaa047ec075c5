package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/client/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imported struct {
	data []byte
	p    services.Partial
}

type fakeImporter struct {
	mu    sync.Mutex
	calls []imported
	err   error
}

func (f *fakeImporter) SaveFile(_ context.Context, data []byte, p services.Partial) (*models.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, imported{data: data, p: p})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Attachment{ID: p.ID, Filename: p.Filename, State: models.StateQueuedUpload}, nil
}

func (f *fakeImporter) snapshot() []imported {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imported(nil), f.calls...)
}

func startWatcher(t *testing.T, imp Importer) (*Watcher, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "inbox")
	w, err := New(dir, imp, 20*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w, dir
}

func TestWatcher_ImportsNewFileAndRemovesIt(t *testing.T) {
	imp := &fakeImporter{}
	_, dir := startWatcher(t, imp)

	path := filepath.Join(dir, "Photo.JPG")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0o600))

	require.Eventually(t, func() bool { return len(imp.snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 3*time.Second, 10*time.Millisecond)

	call := imp.snapshot()[0]
	assert.Equal(t, []byte("jpeg bytes"), call.data)
	assert.True(t, strings.HasSuffix(call.p.Filename, ".jpg"))
	assert.True(t, strings.HasPrefix(call.p.Filename, call.p.ID))
	assert.Equal(t, "image/jpeg", models.Deref(call.p.MediaType))
}

func TestWatcher_ImportsExistingFilesOnStart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0o600))

	imp := &fakeImporter{}
	w, err := New(dir, imp, 10*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool { return len(imp.snapshot()) == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresHiddenAndPartialFiles(t *testing.T) {
	imp := &fakeImporter{}
	_, dir := startWatcher(t, imp)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upload.part"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.jpg"), []byte("x"), 0o600))

	require.Eventually(t, func() bool { return len(imp.snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, imp.snapshot(), 1)

	_, err := os.Stat(filepath.Join(dir, ".hidden"))
	assert.NoError(t, err)
}

func TestWatcher_FailedImportKeepsFile(t *testing.T) {
	imp := &fakeImporter{err: errors.New("db locked")}
	_, dir := startWatcher(t, imp)

	path := filepath.Join(dir, "keep.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.Eventually(t, func() bool { return len(imp.snapshot()) >= 1 }, 3*time.Second, 10*time.Millisecond)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWatcher_StartStop(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "in"), &fakeImporter{}, 0, nil)
	require.NoError(t, err)
	assert.False(t, w.IsRunning())
	assert.Equal(t, DefaultSettle, w.settle)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(context.Background()), "already running")

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())
}

func TestPartialFor(t *testing.T) {
	p := PartialFor("/tmp/IMG_0001.PNG")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, p.ID+".png", p.Filename)
	assert.Equal(t, "image/png", models.Deref(p.MediaType))

	q := PartialFor("/tmp/notes")
	assert.Equal(t, q.ID, q.Filename)
	assert.Nil(t, q.MediaType)
	assert.NotEqual(t, p.ID, q.ID)
}
