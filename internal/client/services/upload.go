package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/client/storage"
	"github.com/dmitrijs2005/attachsync/internal/common"
)

// UploadRecords drains upload candidates oldest first. The first failure ends
// the pass so the queue head is retried on the next trigger instead of being
// overtaken by younger records.
func (q *Queue) UploadRecords(ctx context.Context) error {
	if !q.uploading.CompareAndSwap(false, true) {
		return nil
	}
	defer q.uploading.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		recs, err := q.repo.UploadCandidates(ctx, 1)
		if err != nil {
			return fmt.Errorf("load upload candidates: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}

		if err := q.uploadRecord(ctx, recs[0]); err != nil {
			return err
		}
	}
}

func (q *Queue) uploadRecord(ctx context.Context, rec *models.Attachment) error {
	log := q.log.With(common.LogKeyAttachmentID, rec.ID, common.LogKeyFilename, rec.Filename)

	if !rec.UploadEligible() {
		if rec.LocalURI == nil {
			log.Error(ctx, "upload candidate has no local uri")
			return fmt.Errorf("upload %s: %w", rec.ID, common.ErrMissingLocalURI)
		}
		log.Error(ctx, "upload candidate is not queued for upload", "state", rec.State.String())
		return fmt.Errorf("upload %s in state %s: %w", rec.ID, rec.State, common.ErrNotEligible)
	}

	data, err := q.storage.ReadFile(ctx, *rec.LocalURI)
	if err != nil {
		log.Warn(ctx, "failed to read attachment for upload", "error", err)
		return fmt.Errorf("read %s: %w", rec.ID, err)
	}

	opts := storage.UploadOptions{MediaType: models.Deref(rec.MediaType)}
	err = q.storage.UploadFile(ctx, rec.Filename, data, opts)
	switch {
	case err == nil:
		log.Debug(ctx, "attachment uploaded", "size", len(data))
	case errors.Is(err, storage.ErrDuplicate):
		log.Debug(ctx, "attachment already present remotely")
	default:
		log.Warn(ctx, "failed to upload attachment", "error", err)
		return fmt.Errorf("upload %s: %w", rec.ID, err)
	}

	synced := rec.Clone()
	synced.State = models.StateSynced
	if err := q.repo.Update(ctx, &synced); err != nil {
		return fmt.Errorf("mark %s synced: %w", rec.ID, err)
	}
	return nil
}
