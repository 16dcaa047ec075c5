// Package models defines client-side data models used by the attachsync queue.
package models

import (
	"fmt"
	"strings"
	"time"
)

// State is the sync state of an attachment, persisted as a small integer.
type State int

const (
	// StateQueuedSync means local and remote existence is unknown; the record
	// is eligible for both upload and download.
	StateQueuedSync State = iota
	StateQueuedUpload
	StateQueuedDownload
	StateSynced
)

var stateNames = map[State]string{
	StateQueuedSync:     "QUEUED_SYNC",
	StateQueuedUpload:   "QUEUED_UPLOAD",
	StateQueuedDownload: "QUEUED_DOWNLOAD",
	StateSynced:         "SYNCED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// ParseState accepts the names produced by State.String, case-insensitively.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown attachment state %q", name)
}

// Attachment is one binary object tracked by the queue.
type Attachment struct {
	// ID is stable and immutable for the record's lifetime.
	ID string

	// Filename is the remote blob key.
	Filename string

	// LocalURI is the absolute local path, nil until the file exists locally.
	LocalURI *string

	// MediaType is an optional MIME type hint.
	MediaType *string

	// Size is the byte length, set once the file has been written locally.
	Size *int64

	State State

	// Timestamp is the last mutation time in epoch milliseconds. It orders
	// both the work queues (oldest first) and cache retention (newest kept).
	Timestamp int64
}

// UploadEligible reports whether the upload worker may pick the record.
func (a *Attachment) UploadEligible() bool {
	return a.LocalURI != nil && (a.State == StateQueuedUpload || a.State == StateQueuedSync)
}

// DownloadEligible reports whether the download worker may pick the record.
func (a *Attachment) DownloadEligible() bool {
	return a.State == StateQueuedDownload || a.State == StateQueuedSync
}

// Time converts Timestamp to time.Time.
func (a *Attachment) Time() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// Clone returns a deep copy so callers can mutate pointer fields safely.
func (a Attachment) Clone() Attachment {
	c := a
	if a.LocalURI != nil {
		c.LocalURI = Ptr(*a.LocalURI)
	}
	if a.MediaType != nil {
		c.MediaType = Ptr(*a.MediaType)
	}
	if a.Size != nil {
		c.Size = Ptr(*a.Size)
	}
	return c
}

// Ptr returns a pointer to v. Handy for the optional attachment fields.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
