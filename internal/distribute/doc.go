// Package distribute posts listed records to social channels.
//
// Each (record, channel) pair moves from pending to posted or to exhausted.
// A posted channel is never retried. An exhausted channel deletes the local
// image so the record is not retried forever; the record keeps a null URL for
// that channel. Backoff waits use internal/retry and honour context
// cancellation, so an interrupted run stops promptly and keeps the URLs it
// already collected.
package distribute
