// Package client bootstraps local persistence for the attachsync client:
// it opens the SQLite database with the pure-Go driver and applies the
// embedded goose migrations (see InitDatabase, RunMigrations).
package client
