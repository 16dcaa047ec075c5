package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/attachsync/internal/common"
)

// ExpireCache deletes every synced record beyond the CacheLimit most recently
// touched ones. Selection and row deletes share one transaction; files are
// removed after commit and a failed file delete is only logged.
func (q *Queue) ExpireCache(ctx context.Context) error {
	if !q.expiring.CompareAndSwap(false, true) {
		return nil
	}
	defer q.expiring.Store(false)

	var deleted []*models.Attachment
	err := q.repo.Transaction(ctx, func(ctx context.Context, tx attachments.Repository) error {
		deleted = deleted[:0]
		recs, err := tx.SyncedBeyondLimit(ctx, q.opts.CacheLimit)
		if err != nil {
			return fmt.Errorf("load expired records: %w", err)
		}
		for _, rec := range recs {
			// a record re-queued since the select keeps its row and file
			err := tx.DeleteSynced(ctx, rec.ID)
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("delete %s: %w", rec.ID, err)
			}
			deleted = append(deleted, rec)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("expire cache: %w", err)
	}
	if len(deleted) == 0 {
		return nil
	}

	for _, rec := range deleted {
		if err := q.storage.DeleteFile(ctx, rec.Filename, q.localPath(rec)); err != nil {
			q.log.Warn(ctx, "failed to delete expired file",
				common.LogKeyAttachmentID, rec.ID, common.LogKeyFilename, rec.Filename, "error", err)
		}
	}

	q.log.Debug(ctx, "cache expired", "count", len(deleted))
	return nil
}
