package services

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/attachsync/internal/client/models"
)

// Kind specializes the queue for one attachment type: where authoritative
// ids come from and how new records are shaped.
type Kind interface {
	// CandidateIDs returns the ids that should exist in the queue. They are
	// reconciled on Init. A nil slice means nothing to reconcile.
	CandidateIDs(ctx context.Context) ([]string, error)

	// NewRecord builds a record from the given overrides.
	NewRecord(p Partial) models.Attachment
}

// Partial lists caller overrides for NewRecord. Zero or nil fields are
// treated as absent.
type Partial struct {
	ID        string
	Filename  string
	LocalURI  *string
	MediaType *string
	Size      *int64
	State     *models.State
}

// FileKind is the stock Kind: uuid ids and filenames of the form id+Extension.
type FileKind struct {
	Extension string
	MediaType string
	IDSource  func(ctx context.Context) ([]string, error)
}

func (k FileKind) CandidateIDs(ctx context.Context) ([]string, error) {
	if k.IDSource == nil {
		return nil, nil
	}
	return k.IDSource(ctx)
}

func (k FileKind) NewRecord(p Partial) models.Attachment {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	a := models.Attachment{
		ID:       id,
		Filename: id + k.Extension,
		State:    models.StateQueuedUpload,
	}
	if k.MediaType != "" {
		a.MediaType = models.Ptr(k.MediaType)
	}

	if p.Filename != "" {
		a.Filename = p.Filename
	}
	if p.LocalURI != nil {
		a.LocalURI = models.Ptr(*p.LocalURI)
	}
	if p.MediaType != nil {
		a.MediaType = models.Ptr(*p.MediaType)
	}
	if p.Size != nil {
		a.Size = models.Ptr(*p.Size)
	}
	if p.State != nil {
		a.State = *p.State
	}
	return a
}

// FileIDSource reads one id per line from path. Blank lines and lines
// starting with '#' are ignored. A missing file yields no ids.
func FileIDSource(path string) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open ids file: %w", err)
		}
		defer f.Close()

		var ids []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ids = append(ids, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read ids file: %w", err)
		}
		return ids, nil
	}
}
