package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/attachsync/internal/flagx"
)

// flagNames lists the flags owned by this package, without dashes.
var flagNames = []string{
	"db", "cache-dir", "sync-interval", "cache-limit", "batch-size",
	"remote", "remote-dir",
	"s3-bucket", "s3-prefix", "s3-region", "s3-endpoint", "s3-access-key", "s3-secret-key",
	"inbox", "ids-file", "extension", "log-level", "log-file",
}

// BindFlags registers the configuration flags on fs with cfg's current values
// as defaults. The CLI uses it to document the flags; parseFlags to read them.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite database")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "local attachment cache directory")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "periodic sync interval (0 disables)")
	fs.IntVar(&cfg.CacheLimit, "cache-limit", cfg.CacheLimit, "number of synced attachments kept locally")
	fs.IntVar(&cfg.DownloadBatchSize, "batch-size", cfg.DownloadBatchSize, "download batch size")
	fs.StringVar(&cfg.RemoteMode, "remote", cfg.RemoteMode, "remote store: s3 or dir")
	fs.StringVar(&cfg.RemoteDir, "remote-dir", cfg.RemoteDir, "directory used as the remote store in dir mode")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "s3 bucket")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "s3 key prefix")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "s3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3-endpoint", cfg.S3BaseEndpoint, "s3 base endpoint, e.g. a MinIO url")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", cfg.S3AccessKey, "s3 access key")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", cfg.S3SecretKey, "s3 secret key")
	fs.StringVar(&cfg.InboxDir, "inbox", cfg.InboxDir, "directory watched for files to import")
	fs.StringVar(&cfg.IDsFile, "ids-file", cfg.IDsFile, "file with authoritative attachment ids, one per line")
	fs.StringVar(&cfg.Extension, "extension", cfg.Extension, "filename extension for attachments created from bare ids")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rotating log file (stderr when empty)")
}

// parseFlags overlays cfg with the configuration flags present in args.
// Other arguments are filtered out by flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, flagx.Names(flagNames...))

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	BindFlags(fs, cfg)

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
