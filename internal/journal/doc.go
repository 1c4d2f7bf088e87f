// Package journal records pipeline run history in a local SQLite database.
//
// The JSONL queue files remain the source of truth for record state; the
// journal only answers "what happened and when": one row per run with its
// counters and one row per remote attempt (publish, channel post, prune).
// The CLI reads it for `memeshop runs` and `memeshop queue show`.
package journal
