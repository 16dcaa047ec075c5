package attachments

import (
	"context"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
)

// Repository describes CRUD, queue and watch operations for attachment records.
type Repository interface {
	// Get returns the record by id or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Attachment, error)

	// Upsert inserts or replaces the record and stamps its Timestamp.
	Upsert(ctx context.Context, a *models.Attachment) error

	// Update rewrites the mutable fields of an existing record (used for state
	// transitions) and stamps its Timestamp. Returns common.ErrorNotFound when
	// no row has the record's id.
	Update(ctx context.Context, a *models.Attachment) error

	// Delete removes the row. Returns common.ErrorNotFound when absent.
	Delete(ctx context.Context, id string) error

	// DeleteSynced removes the row only while it is SYNCED. Returns
	// common.ErrorNotFound when the row is absent or was re-queued.
	DeleteSynced(ctx context.Context, id string) error

	// UploadCandidates returns records with a local uri in QUEUED_UPLOAD or
	// QUEUED_SYNC, oldest first with insertion order breaking ties.
	// limit <= 0 means no limit.
	UploadCandidates(ctx context.Context, limit int) ([]*models.Attachment, error)

	// DownloadCandidates returns records in QUEUED_DOWNLOAD or QUEUED_SYNC,
	// oldest first with insertion order breaking ties. limit <= 0 means no
	// limit.
	DownloadCandidates(ctx context.Context, limit int) ([]*models.Attachment, error)

	// SyncedBeyondLimit returns every SYNCED record except the limit most
	// recently touched ones, newest first.
	SyncedBeyondLimit(ctx context.Context, limit int) ([]*models.Attachment, error)

	// List returns every record grouped by state, oldest first within a state.
	List(ctx context.Context) ([]*models.Attachment, error)

	// Clear deletes every row in a single transaction.
	Clear(ctx context.Context) error

	// CountByState returns the number of records per state.
	CountByState(ctx context.Context) (map[models.State]int, error)

	// Transaction runs fn with a repository bound to one database
	// transaction. Watchers are notified once, after commit.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// WatchUploadIDs streams the upload candidate ids until ctx is done.
	WatchUploadIDs(ctx context.Context) <-chan Snapshot

	// WatchDownloadIDs streams the download candidate ids until ctx is done.
	WatchDownloadIDs(ctx context.Context) <-chan Snapshot
}
