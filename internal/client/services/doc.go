// Package services holds the attachment queue: the orchestrator that owns
// lifecycle and triggering, the upload and download workers, the cache
// evictor and the record factory.
//
// Every worker is single-flight. A call made while the same worker is already
// running returns immediately, so the periodic timer and both watchers can
// trigger freely without producing duplicate work.
package services
