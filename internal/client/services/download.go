package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/common"
)

// DownloadRecords fetches download candidates in batches. A failing record is
// logged and left queued; the rest of the batch continues. Further batches
// are loaded while the previous one was full and held unseen records.
func (q *Queue) DownloadRecords(ctx context.Context) error {
	if !q.downloading.CompareAndSwap(false, true) {
		return nil
	}
	defer q.downloading.Store(false)

	seen := make(map[string]struct{})
	for {
		recs, err := q.repo.DownloadCandidates(ctx, q.opts.DownloadBatchSize)
		if err != nil {
			return fmt.Errorf("load download candidates: %w", err)
		}

		fresh := 0
		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			fresh++

			if err := q.downloadRecord(ctx, rec); err != nil {
				q.log.Warn(ctx, "failed to download attachment",
					common.LogKeyAttachmentID, rec.ID, common.LogKeyFilename, rec.Filename, "error", err)
			}
		}

		if fresh == 0 || len(recs) < q.opts.DownloadBatchSize {
			return nil
		}
	}
}

// downloadRecord makes the local copy of rec and marks it SYNCED. An existing
// local file short-circuits the network call.
func (q *Queue) downloadRecord(ctx context.Context, candidate *models.Attachment) error {
	if !candidate.DownloadEligible() {
		return fmt.Errorf("download in state %s: %w", candidate.State, common.ErrNotEligible)
	}

	rec := candidate.Clone()
	local := q.localPath(&rec)

	exists, err := q.storage.FileExists(ctx, local)
	if err != nil {
		return fmt.Errorf("check local file: %w", err)
	}

	if !exists {
		blob, err := q.storage.DownloadFile(ctx, rec.Filename)
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
		if err := q.storage.MakeDir(ctx, filepath.Dir(local)); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
		if err := q.storage.WriteFile(ctx, local, blob.Data); err != nil {
			return fmt.Errorf("write local file: %w", err)
		}
		rec.Size = models.Ptr(int64(len(blob.Data)))
		if blob.MediaType != "" {
			rec.MediaType = models.Ptr(blob.MediaType)
		}
		q.log.Debug(ctx, "attachment downloaded",
			common.LogKeyAttachmentID, rec.ID, common.LogKeyFilename, rec.Filename, "size", len(blob.Data))
	}

	rec.LocalURI = models.Ptr(local)
	rec.State = models.StateSynced
	if err := q.repo.Update(ctx, &rec); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}
