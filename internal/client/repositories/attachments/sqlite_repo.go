package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
	"github.com/dmitrijs2005/attachsync/internal/common"
	"github.com/dmitrijs2005/attachsync/internal/dbx"
)

const columns = `id, filename, local_uri, media_type, size, state, timestamp`

// Option configures a SQLiteRepository.
type Option func(*SQLiteRepository)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) {
		r.now = now
	}
}

type SQLiteRepository struct {
	db   dbx.DBTX
	conn dbx.TxBeginner // nil when bound to a transaction
	hub  *changeHub     // nil when bound to a transaction
	now  func() time.Time

	// dirty records a write on a transaction-bound repository.
	dirty bool
}

func NewSQLiteRepository(db *sql.DB, opts ...Option) *SQLiteRepository {
	r := &SQLiteRepository{db: db, conn: db, hub: newChangeHub(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *SQLiteRepository) notify() {
	if r.hub == nil {
		r.dirty = true
		return
	}
	r.hub.publish()
}

func (r *SQLiteRepository) stamp(a *models.Attachment) {
	a.Timestamp = r.now().UnixMilli()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(s scanner) (*models.Attachment, error) {
	var (
		a         models.Attachment
		localURI  sql.NullString
		mediaType sql.NullString
		size      sql.NullInt64
		state     int
	)

	if err := s.Scan(&a.ID, &a.Filename, &localURI, &mediaType, &size, &state, &a.Timestamp); err != nil {
		return nil, err
	}

	if localURI.Valid {
		a.LocalURI = models.Ptr(localURI.String)
	}
	if mediaType.Valid {
		a.MediaType = models.Ptr(mediaType.String)
	}
	if size.Valid {
		a.Size = models.Ptr(size.Int64)
	}
	a.State = models.State(state)
	if !a.State.Valid() {
		return nil, fmt.Errorf("attachment %s has unknown state %d", a.ID, state)
	}

	return &a, nil
}

func (r *SQLiteRepository) queryAll(ctx context.Context, query string, args ...any) ([]*models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Attachment, error) {
	query := `SELECT ` + columns + ` FROM attachments WHERE id = ?`

	a, err := scanAttachment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %s: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	return a, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, a *models.Attachment) error {
	r.stamp(a)

	query := `INSERT INTO attachments (` + columns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				filename = excluded.filename,
				local_uri = excluded.local_uri,
				media_type = excluded.media_type,
				size = excluded.size,
				state = excluded.state,
				timestamp = excluded.timestamp
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.Filename, a.LocalURI, a.MediaType, a.Size, int(a.State), a.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert attachment: %w", err)
	}

	r.notify()
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, a *models.Attachment) error {
	r.stamp(a)

	query := `UPDATE attachments
			SET filename = ?, local_uri = ?, media_type = ?, size = ?, state = ?, timestamp = ?
			WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, a.Filename, a.LocalURI, a.MediaType, a.Size, int(a.State), a.Timestamp, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update attachment: %w", err)
	}

	if err := expectOneRow(result, a.ID); err != nil {
		return err
	}

	r.notify()
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	if err := expectOneRow(result, id); err != nil {
		return err
	}

	r.notify()
	return nil
}

func (r *SQLiteRepository) DeleteSynced(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ? AND state = ?`, id, int(models.StateSynced))
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	if err := expectOneRow(result, id); err != nil {
		return err
	}

	r.notify()
	return nil
}

func expectOneRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("attachment %s: %w", id, common.ErrorNotFound)
	}
	return nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (r *SQLiteRepository) UploadCandidates(ctx context.Context, limit int) ([]*models.Attachment, error) {
	query := `SELECT ` + columns + ` FROM attachments
			WHERE local_uri IS NOT NULL AND state IN (?, ?)
			ORDER BY timestamp ASC, rowid ASC
			LIMIT ?`
	return r.queryAll(ctx, query, int(models.StateQueuedUpload), int(models.StateQueuedSync), sqlLimit(limit))
}

func (r *SQLiteRepository) DownloadCandidates(ctx context.Context, limit int) ([]*models.Attachment, error) {
	query := `SELECT ` + columns + ` FROM attachments
			WHERE state IN (?, ?)
			ORDER BY timestamp ASC, rowid ASC
			LIMIT ?`
	return r.queryAll(ctx, query, int(models.StateQueuedDownload), int(models.StateQueuedSync), sqlLimit(limit))
}

func (r *SQLiteRepository) SyncedBeyondLimit(ctx context.Context, limit int) ([]*models.Attachment, error) {
	if limit < 0 {
		limit = 0
	}
	query := `SELECT ` + columns + ` FROM attachments
			WHERE state = ?
			ORDER BY timestamp DESC, rowid DESC
			LIMIT -1 OFFSET ?`
	return r.queryAll(ctx, query, int(models.StateSynced), limit)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Attachment, error) {
	query := `SELECT ` + columns + ` FROM attachments ORDER BY state ASC, timestamp ASC, rowid ASC`
	return r.queryAll(ctx, query)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.Transaction(ctx, func(ctx context.Context, tx Repository) error {
		return tx.(*SQLiteRepository).deleteAll(ctx)
	})
}

func (r *SQLiteRepository) deleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments`); err != nil {
		return fmt.Errorf("failed to clear attachments: %w", err)
	}
	r.notify()
	return nil
}

func (r *SQLiteRepository) CountByState(ctx context.Context) (map[models.State]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM attachments GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count attachments: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.State]int)
	for rows.Next() {
		var state, n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[models.State(state)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *SQLiteRepository) Transaction(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.conn == nil {
		return common.ErrNestedTransaction
	}

	txRepo := &SQLiteRepository{now: r.now}
	err := dbx.WithTx(ctx, r.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo.db = tx
		return fn(ctx, txRepo)
	})
	if err != nil {
		return err
	}

	// read-only transactions stay silent so watchers do not re-trigger workers
	if txRepo.dirty {
		r.notify()
	}
	return nil
}

func (r *SQLiteRepository) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachment ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *SQLiteRepository) WatchUploadIDs(ctx context.Context) <-chan Snapshot {
	return r.watch(ctx, func(ctx context.Context) ([]string, error) {
		return r.ids(ctx, `SELECT id FROM attachments
			WHERE local_uri IS NOT NULL AND state IN (?, ?)
			ORDER BY timestamp ASC, rowid ASC`, int(models.StateQueuedUpload), int(models.StateQueuedSync))
	})
}

func (r *SQLiteRepository) WatchDownloadIDs(ctx context.Context) <-chan Snapshot {
	return r.watch(ctx, func(ctx context.Context) ([]string, error) {
		return r.ids(ctx, `SELECT id FROM attachments
			WHERE state IN (?, ?)
			ORDER BY timestamp ASC, rowid ASC`, int(models.StateQueuedDownload), int(models.StateQueuedSync))
	})
}
