package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneRunLogs deletes run logs in dir last modified before cutoff, except
// keep (the log of the run doing the pruning). It returns the number removed.
func PruneRunLogs(logger *slog.Logger, dir string, cutoff time.Time, keep string) int {
	if logger == nil {
		logger = NewNop()
	}
	if dir == "" || cutoff.IsZero() {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil {
		return 0
	}
	if keep != "" {
		keep = filepath.Clean(keep)
	}

	removed := 0
	for _, path := range matches {
		if filepath.Clean(path) == keep {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "run log removal failed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on log_dir"),
				String(FieldImpact, "expired run log stays on disk"),
			)
			continue
		}
		removed++
		logger.Debug("run log pruned", String(FieldEventType, "log_pruned"), String("path", path))
	}
	return removed
}
