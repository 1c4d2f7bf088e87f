// Package services defines shared utilities consumed by the pipeline stages
// and their external API clients.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, stage names, channels, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     classification (transient, configuration, validation, not found).
//   - HTTPError and CheckResponse, which every HTTP client uses to turn
//     non-2xx responses into classified errors.
package services
