// Package notifications delivers pipeline events via ntfy.
//
// The ntfy topic comes from config.toml; without one the package returns a
// no-op service. Individual event groups (run summaries, abandoned posts,
// errors) can be switched off in the [notifications] section.
package notifications
