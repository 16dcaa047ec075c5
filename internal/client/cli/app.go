package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/attachsync/internal/client/client"
	"github.com/dmitrijs2005/attachsync/internal/client/config"
	"github.com/dmitrijs2005/attachsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/attachsync/internal/client/services"
	"github.com/dmitrijs2005/attachsync/internal/client/storage"
	"github.com/dmitrijs2005/attachsync/internal/logging"
)

// App wires the database, storage and queue for one command invocation.
type App struct {
	config  *config.Config
	db      *sql.DB
	repo    *attachments.SQLiteRepository
	storage *storage.Adapter
	queue   *services.Queue
	log     logging.Logger
	closers []io.Closer
}

// newRemote is replaced in tests.
var newRemote = func(ctx context.Context, c *config.Config) (storage.Remote, error) {
	switch c.RemoteMode {
	case config.RemoteS3:
		return storage.NewS3Remote(ctx, storage.S3Config{
			Bucket:       c.S3Bucket,
			Prefix:       c.S3Prefix,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			UsePathStyle: c.S3BaseEndpoint != "",
		})
	case config.RemoteDir:
		return storage.NewDirRemote(c.RemoteDir)
	default:
		return nil, fmt.Errorf("unknown remote mode %q", c.RemoteMode)
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser := logging.New(logging.Options{
		Level: c.LogLevel,
		File:  c.LogFile,
	})

	db, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	remote, err := newRemote(ctx, c)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing remote: %w", err)
	}

	repo := attachments.NewSQLiteRepository(db)
	st := storage.NewAdapter(remote)

	kind := services.FileKind{Extension: c.Extension}
	if c.IDsFile != "" {
		kind.IDSource = services.FileIDSource(c.IDsFile)
	}

	opts := services.DefaultOptions(c.CacheDir)
	opts.SyncInterval = c.SyncInterval
	opts.CacheLimit = c.CacheLimit
	if c.DownloadBatchSize > 0 {
		opts.DownloadBatchSize = c.DownloadBatchSize
	}

	q := services.NewQueue(repo, st, kind, opts, logger)

	return &App{
		config:  c,
		db:      db,
		repo:    repo,
		storage: st,
		queue:   q,
		log:     logger,
		closers: []io.Closer{db, logCloser},
	}, nil
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
