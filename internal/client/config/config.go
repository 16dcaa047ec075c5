package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/attachsync/internal/common"
)

// Remote modes.
const (
	RemoteS3  = "s3"
	RemoteDir = "dir"
)

// Config holds runtime settings for the attachsync client.
type Config struct {
	DBPath   string
	CacheDir string

	// SyncInterval of zero disables the periodic trigger.
	SyncInterval      time.Duration
	CacheLimit        int
	DownloadBatchSize int

	RemoteMode string
	RemoteDir  string

	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	// InboxDir, when set, is watched for files to import.
	InboxDir string

	// IDsFile lists authoritative attachment ids, one per line.
	IDsFile string

	// Extension is appended to an id to form the remote filename of
	// attachments created without one, such as reconciled ids.
	Extension string

	LogLevel string
	LogFile  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = "attachsync.db"
	c.CacheDir = "cache"
	c.SyncInterval = common.DefaultSyncInterval
	c.CacheLimit = common.DefaultCacheLimit
	c.DownloadBatchSize = common.DefaultDownloadBatchSize
	c.RemoteMode = RemoteDir
	c.RemoteDir = "remote"
	c.S3Region = "us-east-1"
	c.Extension = ".jpg"
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then the JSON file, the environment and the
// flags found in args, and validates the result.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db path must not be empty")
	}
	if c.CacheDir == "" {
		return errors.New("cache dir must not be empty")
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("sync interval must not be negative: %s", c.SyncInterval)
	}
	if c.CacheLimit < 0 {
		return fmt.Errorf("cache limit must not be negative: %d", c.CacheLimit)
	}
	if c.DownloadBatchSize <= 0 {
		return fmt.Errorf("download batch size must be positive: %d", c.DownloadBatchSize)
	}

	switch c.RemoteMode {
	case RemoteDir:
		if c.RemoteDir == "" {
			return errors.New("remote dir must be set in dir mode")
		}
	case RemoteS3:
		if c.S3Bucket == "" {
			return errors.New("s3 bucket must be set in s3 mode")
		}
	default:
		return fmt.Errorf("unknown remote mode %q (want %q or %q)", c.RemoteMode, RemoteS3, RemoteDir)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}
