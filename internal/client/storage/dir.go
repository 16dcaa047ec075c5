package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrijs2005/attachsync/internal/common"
	"github.com/dmitrijs2005/attachsync/internal/filex"
)

const mediaTypeSuffix = ".mediatype"

// DirRemote treats a local directory as the remote store. Used for
// development and tests, and for setups where the "remote" is a mounted share.
type DirRemote struct {
	root string
	mu   sync.Mutex
}

func NewDirRemote(root string) (*DirRemote, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("create remote dir: %w", err)
	}
	return &DirRemote{root: abs}, nil
}

func (d *DirRemote) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(d.root, key), nil
}

func (d *DirRemote) Put(_ context.Context, key string, data []byte, mediaType string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("put %s: %w", key, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return fmt.Errorf("put %s: %w", key, err)
	}

	if mediaType != "" {
		if err := filex.WriteAtomic(p+mediaTypeSuffix, []byte(mediaType), filePerm); err != nil {
			return fmt.Errorf("put %s media type: %w", key, err)
		}
	}
	return nil
}

func (d *DirRemote) Get(_ context.Context, key string) (*Blob, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("get %s: %w", key, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	blob := &Blob{Data: data}
	if mt, err := os.ReadFile(p + mediaTypeSuffix); err == nil {
		blob.MediaType = string(mt)
	} else {
		blob.MediaType = MediaTypeFor(key)
	}
	return blob, nil
}

func (d *DirRemote) Exists(_ context.Context, key string) (bool, error) {
	p, err := d.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

func (d *DirRemote) Delete(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range []string{p, p + mediaTypeSuffix} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
