// Package logging assembles structured slog loggers and formatting helpers used
// across memeshop.
//
// It owns the console and JSON handlers, tees each pipeline run into its own
// JSON log file, and exposes context-aware helpers so stage code tags log
// lines with run IDs, stages, record IDs, and channels. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
