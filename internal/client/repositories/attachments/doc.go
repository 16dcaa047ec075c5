// Package attachments provides the client-side persistence layer for the
// attachment queue: CRUD over the attachments table, the candidate queries
// used by the upload/download workers and the cache evictor, and a reactive
// watch primitive that re-emits candidate id lists after every committed change.
//
// Key Types
//
//   - type Repository       : contract used by the queue services
//   - type SQLiteRepository : SQLite implementation over dbx.DBTX
//   - type Snapshot         : one emission of a watch stream
//
// Typical Usage
//
//	repo := attachments.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, rec)
//	next, _ := repo.UploadCandidates(ctx, 1)
//	ids := repo.WatchDownloadIDs(ctx) // closed when ctx is cancelled
//
// Timestamps are epoch milliseconds taken from the repository clock on every
// insert and update; see WithClock.
package attachments
