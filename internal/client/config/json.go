package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/attachsync/internal/flagx"
	"github.com/dmitrijs2005/attachsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish "absent" from zero so the file only overrides what it names.
type JsonConfig struct {
	DBPath            *string         `json:"db_path"`
	CacheDir          *string         `json:"cache_dir"`
	SyncInterval      *timex.Duration `json:"sync_interval"`
	CacheLimit        *int            `json:"cache_limit"`
	DownloadBatchSize *int            `json:"download_batch_size"`
	RemoteMode        *string         `json:"remote_mode"`
	RemoteDir         *string         `json:"remote_dir"`
	S3Bucket          *string         `json:"s3_bucket"`
	S3Prefix          *string         `json:"s3_prefix"`
	S3Region          *string         `json:"s3_region"`
	S3BaseEndpoint    *string         `json:"s3_base_endpoint"`
	S3AccessKey       *string         `json:"s3_access_key"`
	S3SecretKey       *string         `json:"s3_secret_key"`
	InboxDir          *string         `json:"inbox_dir"`
	IDsFile           *string         `json:"ids_file"`
	Extension         *string         `json:"extension"`
	LogLevel          *string         `json:"log_level"`
	LogFile           *string         `json:"log_file"`
}

// parseJson overlays cfg with the JSON file named by -c/-config in args.
// No flag means nothing to do.
func parseJson(cfg *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.CacheDir, jc.CacheDir)
	if jc.SyncInterval != nil {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.CacheLimit != nil {
		cfg.CacheLimit = *jc.CacheLimit
	}
	if jc.DownloadBatchSize != nil {
		cfg.DownloadBatchSize = *jc.DownloadBatchSize
	}
	setString(&cfg.RemoteMode, jc.RemoteMode)
	setString(&cfg.RemoteDir, jc.RemoteDir)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Prefix, jc.S3Prefix)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.InboxDir, jc.InboxDir)
	setString(&cfg.IDsFile, jc.IDsFile)
	setString(&cfg.Extension, jc.Extension)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFile, jc.LogFile)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
