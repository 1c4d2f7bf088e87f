// Package pipeline runs memeshop commands end to end.
//
// A Runner checks credentials, takes the store lock, opens a per-run log and
// the run journal, builds the external API clients from config, and drives
// the acquire, publish and post stages in order (or a single stage, or the
// listing pruner). Afterwards it records the run outcome, pushes metrics and
// sends the ntfy summary. Old run logs and journal rows are pruned according
// to logging.retention_days.
package pipeline
