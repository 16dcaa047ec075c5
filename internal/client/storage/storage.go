// Package storage is the queue's boundary to bytes: local cache files on one
// side and a remote blob store on the other.
//
// Storage is the interface consumed by the queue. Adapter implements it by
// combining the local file system with a Remote (S3Remote or DirRemote).
// A remote object that already exists is reported as ErrDuplicate; a missing
// one as common.ErrorNotFound.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/attachsync/internal/filex"
)

// ErrDuplicate signals that the remote object already exists.
var ErrDuplicate = errors.New("remote object already exists")

// UploadOptions carries optional hints for UploadFile.
type UploadOptions struct {
	MediaType string
}

// Blob is a downloaded remote object.
type Blob struct {
	Data      []byte
	MediaType string
}

// Storage is the file and remote-blob surface the queue depends on.
type Storage interface {
	MakeDir(ctx context.Context, path string) error
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// DeleteFile removes the local file at localPath. filename identifies the
	// attachment for diagnostics. A missing file is not an error.
	DeleteFile(ctx context.Context, filename, localPath string) error
	FileExists(ctx context.Context, path string) (bool, error)
	UploadFile(ctx context.Context, filename string, data []byte, opts UploadOptions) error
	DownloadFile(ctx context.Context, filename string) (*Blob, error)
}

// Remote is a blob store keyed by attachment filename.
type Remote interface {
	// Put stores data under key; ErrDuplicate if key already exists.
	Put(ctx context.Context, key string, data []byte, mediaType string) error
	// Get returns the object or common.ErrorNotFound.
	Get(ctx context.Context, key string) (*Blob, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

const filePerm = 0o660

// Adapter implements Storage over the local file system and a Remote.
type Adapter struct {
	remote Remote
}

func NewAdapter(remote Remote) *Adapter {
	return &Adapter{remote: remote}
}

func (a *Adapter) MakeDir(_ context.Context, path string) error {
	_, err := filex.EnsureDir(path)
	return err
}

// WriteFile writes through a temporary sibling so a crash never leaves a
// truncated file that FileExists would accept.
func (a *Adapter) WriteFile(_ context.Context, path string, data []byte) error {
	return filex.WriteAtomic(path, data, filePerm)
}

func (a *Adapter) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (a *Adapter) DeleteFile(_ context.Context, filename, localPath string) error {
	err := os.Remove(localPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s (%s): %w", filename, localPath, err)
	}
	return nil
}

func (a *Adapter) FileExists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return !info.IsDir(), nil
}

func (a *Adapter) UploadFile(ctx context.Context, filename string, data []byte, opts UploadOptions) error {
	return a.remote.Put(ctx, filename, data, opts.MediaType)
}

func (a *Adapter) DownloadFile(ctx context.Context, filename string) (*Blob, error) {
	return a.remote.Get(ctx, filename)
}

// RemoteExists reports whether filename is present in the remote store.
func (a *Adapter) RemoteExists(ctx context.Context, filename string) (bool, error) {
	return a.remote.Exists(ctx, filename)
}

// DeleteRemote removes filename from the remote store.
func (a *Adapter) DeleteRemote(ctx context.Context, filename string) error {
	return a.remote.Delete(ctx, filename)
}
