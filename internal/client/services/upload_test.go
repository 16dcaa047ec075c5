package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/client/storage"
	"github.com/dmitrijs2005/attachsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadRecords_SuccessMarksSyncedAndKeepsFile(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	ctx := context.Background()
	rec := tq.put(t, "a", models.StateQueuedUpload, true)

	require.NoError(t, tq.UploadRecords(ctx))

	assert.Equal(t, models.StateSynced, tq.state(t, "a"))
	assert.Equal(t, []string{"a.jpg"}, tq.storage.uploadCalls())
	assert.True(t, tq.storage.hasFile(*rec.LocalURI), "file must stay on disk")
}

func TestUploadRecords_PassesMediaType(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	ctx := context.Background()

	rec := tq.put(t, "m", models.StateQueuedUpload, true)
	rec.MediaType = models.Ptr("image/png")
	require.NoError(t, tq.repo.Upsert(ctx, rec))

	require.NoError(t, tq.UploadRecords(ctx))
	assert.Equal(t, "image/png", tq.storage.remote["m.jpg"].MediaType)
}

func TestUploadRecords_DuplicateCountsAsSuccess(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	ctx := context.Background()
	tq.storage.remote["a.jpg"] = storage.Blob{Data: []byte("already there")}
	tq.put(t, "a", models.StateQueuedUpload, true)

	require.NoError(t, tq.UploadRecords(ctx))

	assert.Equal(t, models.StateSynced, tq.state(t, "a"))
	assert.Equal(t, []byte("already there"), tq.storage.remote["a.jpg"].Data)
}

func TestUploadRecords_FailureAbortsPassInOrder(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	ctx := context.Background()
	tq.put(t, "first", models.StateQueuedUpload, true)
	tq.put(t, "second", models.StateQueuedSync, true)

	netDown := errors.New("network down")
	tq.storage.uploadErr = func(string) error { return netDown }

	err := tq.UploadRecords(ctx)
	require.ErrorIs(t, err, netDown)
	assert.Equal(t, []string{"first.jpg"}, tq.storage.uploadCalls(), "second must not be attempted")
	assert.Equal(t, models.StateQueuedUpload, tq.state(t, "first"))
	assert.Equal(t, models.StateQueuedSync, tq.state(t, "second"))

	tq.storage.uploadErr = nil
	require.NoError(t, tq.UploadRecords(ctx))
	assert.Equal(t, []string{"first.jpg", "first.jpg", "second.jpg"}, tq.storage.uploadCalls())
	assert.Equal(t, models.StateSynced, tq.state(t, "first"))
	assert.Equal(t, models.StateSynced, tq.state(t, "second"))
}

func TestUploadRecords_ReadFailureAborts(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	tq.put(t, "a", models.StateQueuedUpload, true)
	tq.storage.readErr = errors.New("disk gone")

	require.Error(t, tq.UploadRecords(context.Background()))
	assert.Empty(t, tq.storage.uploadCalls())
	assert.Equal(t, models.StateQueuedUpload, tq.state(t, "a"))
}

func TestUploadRecords_SkipsRecordsWithoutLocalFile(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	tq.put(t, "remote-only", models.StateQueuedSync, false)

	require.NoError(t, tq.UploadRecords(context.Background()))
	assert.Empty(t, tq.storage.uploadCalls())
}

func TestUploadRecord_MissingLocalURIIsRaised(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	rec := &models.Attachment{ID: "x", Filename: "x.jpg", State: models.StateQueuedUpload}

	err := tq.uploadRecord(context.Background(), rec)
	require.ErrorIs(t, err, common.ErrMissingLocalURI)
	assert.Empty(t, tq.storage.uploadCalls())
}

func TestUploadRecords_SingleFlight(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	ctx := context.Background()
	tq.put(t, "a", models.StateQueuedUpload, true)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	tq.storage.onUpload = func(context.Context, string) {
		once.Do(func() { close(entered) })
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- tq.UploadRecords(ctx) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("upload never started")
	}

	// Second call while the first is blocked returns at once.
	require.NoError(t, tq.UploadRecords(ctx))
	assert.Empty(t, tq.storage.uploadCalls())

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"a.jpg"}, tq.storage.uploadCalls())
	assert.Equal(t, models.StateSynced, tq.state(t, "a"))
	assert.False(t, tq.uploading.Load(), "busy flag released")
}

func TestUploadRecords_BusyFlagReleasedOnError(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	tq.put(t, "a", models.StateQueuedUpload, true)
	tq.storage.uploadErr = func(string) error { return errors.New("boom") }

	require.Error(t, tq.UploadRecords(context.Background()))
	assert.False(t, tq.uploading.Load())
}

func TestUploadRecord_WrongStateIsRaised(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	rec := &models.Attachment{ID: "x", Filename: "x.jpg", LocalURI: models.Ptr(tq.LocalURI("x.jpg")), State: models.StateSynced}

	err := tq.uploadRecord(context.Background(), rec)
	require.ErrorIs(t, err, common.ErrNotEligible)
	assert.Empty(t, tq.storage.uploadCalls())
}

func TestUploadRecord_LeavesCandidateUntouched(t *testing.T) {
	tq := newTestQueue(t, nil, nil)
	rec := tq.put(t, "x", models.StateQueuedUpload, true)

	require.NoError(t, tq.uploadRecord(context.Background(), rec))
	assert.Equal(t, models.StateQueuedUpload, rec.State)
	assert.Equal(t, models.StateSynced, tq.state(t, "x"))
}
