// Package queue persists pipeline records as newline-delimited JSON.
//
// Two stores share the Record format: the intake file the acquirer appends
// to, and the processed file the publisher and poster rewrite. Rewrites go
// through a temporary file and rename so a crash never leaves a half-written
// store. Records are never removed by the pipeline; their optional fields
// (listing, channel URLs, pruned_at) describe how far each one has progressed.
//
// A Lock next to the processed store keeps two runs from rewriting it at the
// same time.
package queue
