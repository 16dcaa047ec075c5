package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "ATTACHSYNC_"

func getEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envString(dst *string, key string) {
	if v, ok := getEnv(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env var %s%s: invalid integer value '%s'", envPrefix, key, v)
	}
	*dst = n
	return nil
}

// envDuration accepts "90s" style values or bare seconds.
func envDuration(dst *time.Duration, key string) error {
	v, ok := getEnv(key)
	if !ok {
		return nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env var %s%s: invalid duration value '%s'", envPrefix, key, v)
	}
	*dst = time.Duration(n) * time.Second
	return nil
}

// parseEnv loads envFile (if present) into the process environment without
// overriding existing variables, then overlays cfg with ATTACHSYNC_* values.
func parseEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	envString(&cfg.DBPath, "DB_PATH")
	envString(&cfg.CacheDir, "CACHE_DIR")
	if err := envDuration(&cfg.SyncInterval, "SYNC_INTERVAL"); err != nil {
		return err
	}
	if err := envInt(&cfg.CacheLimit, "CACHE_LIMIT"); err != nil {
		return err
	}
	if err := envInt(&cfg.DownloadBatchSize, "DOWNLOAD_BATCH_SIZE"); err != nil {
		return err
	}
	envString(&cfg.RemoteMode, "REMOTE_MODE")
	envString(&cfg.RemoteDir, "REMOTE_DIR")
	envString(&cfg.S3Bucket, "S3_BUCKET")
	envString(&cfg.S3Prefix, "S3_PREFIX")
	envString(&cfg.S3Region, "S3_REGION")
	envString(&cfg.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&cfg.S3AccessKey, "S3_ACCESS_KEY")
	envString(&cfg.S3SecretKey, "S3_SECRET_KEY")
	envString(&cfg.InboxDir, "INBOX_DIR")
	envString(&cfg.IDsFile, "IDS_FILE")
	envString(&cfg.Extension, "EXTENSION")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.LogFile, "LOG_FILE")
	return nil
}
