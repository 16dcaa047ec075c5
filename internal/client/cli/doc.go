// Package cli implements the attachsync command line.
//
// Commands
//
//	run        start the queue and keep it running until interrupted
//	add        queue local files for upload
//	sync       run one upload, download and eviction pass
//	status     show record counts per state and cache disk usage
//	list       print every record as a tree grouped by state
//	reconcile  mark ids (arguments or the ids file) for sync
//	delete     delete records and cached files, optionally the remote objects
//	clear      delete every record, leaving cached files alone
//
// Configuration flags are shared by all commands; see package config for the
// full precedence rules.
package cli
