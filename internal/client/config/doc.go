// Package config loads runtime configuration for the attachsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c, -config or --config.
//  3. Environment variables prefixed with ATTACHSYNC_. A .env file in the
//     working directory is loaded first; variables already set win over it.
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "60s" or integer
// nanoseconds:
//
//	{
//	  "db_path": "attachsync.db",
//	  "cache_dir": "cache",
//	  "sync_interval": "60s",
//	  "cache_limit": 100,
//	  "download_batch_size": 50,
//	  "remote_mode": "s3",
//	  "s3_bucket": "attachments",
//	  "s3_region": "us-east-1",
//	  "s3_base_endpoint": "http://127.0.0.1:9000",
//	  "extension": ".jpg",
//	  "log_level": "info"
//	}
//
// Fields missing from the file keep their previous value.
package config
