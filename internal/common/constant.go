package common

import "time"

// Queue defaults applied when the corresponding option is left zero.
const (
	DefaultSyncInterval      = 60 * time.Second
	DefaultCacheLimit        = 100
	DefaultDownloadBatchSize = 50
)

// Log attribute keys shared by the queue and its workers.
const (
	LogKeyAttachmentID = "attachment_id"
	LogKeyFilename     = "filename"
)
