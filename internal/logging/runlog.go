package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// RunLogPattern matches the per-run log files written by OpenRunLog.
const RunLogPattern = "run-*.log"

// RunLogGlob returns the pattern matching the run log written for runID.
func RunLogGlob(runID string) string {
	return "run-*-" + sanitizeRunID(runID) + ".log"
}

// RunLog is a per-run JSON log file teed from the console logger.
type RunLog struct {
	Logger *slog.Logger
	Path   string
	file   *os.File
}

// OpenRunLog creates <dir>/run-<timestamp>-<runID>.log and returns a logger
// that writes every record to both base and the file. The file always records
// at debug level so a failed run can be diagnosed after the fact.
func OpenRunLog(base *slog.Logger, dir, runID string) (*RunLog, error) {
	if base == nil {
		base = NewNop()
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return &RunLog{Logger: base}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	name := fmt.Sprintf("run-%s-%s.log", time.Now().UTC().Format("20060102T150405Z"), sanitizeRunID(runID))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	fileHandler := newJSONHandler(file, slog.LevelDebug, false)
	logger := slog.New(slogmulti.Fanout(base.Handler(), fileHandler))
	if runID != "" {
		logger = logger.With(String(FieldRunID, runID))
	}
	return &RunLog{Logger: logger, Path: path, file: file}, nil
}

// Close flushes and closes the run log file.
func (r *RunLog) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func sanitizeRunID(runID string) string {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "adhoc"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, runID)
}
