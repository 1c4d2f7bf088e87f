package logs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"memeshop/internal/logging"
	"memeshop/internal/services"
)

// ErrNoRunLogs is returned when the log directory holds no run logs.
var ErrNoRunLogs = errors.New("no run logs found")

// Latest returns the most recently modified run log in dir.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, logging.RunLogPattern))
	if err != nil {
		return "", fmt.Errorf("list run logs: %w", err)
	}
	return newest(matches, ErrNoRunLogs)
}

// ForRun returns the log file written for runID.
func ForRun(dir, runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return Latest(dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, logging.RunLogGlob(runID)))
	if err != nil {
		return "", fmt.Errorf("list run logs: %w", err)
	}
	notFound := services.Wrap(services.ErrNotFound, "logs", "locate", fmt.Sprintf("no log for run %s", runID), nil)
	return newest(matches, notFound)
}

func newest(paths []string, empty error) (string, error) {
	type candidate struct {
		path string
		mod  int64
	}
	candidates := make([]candidate, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		candidates = append(candidates, candidate{path: path, mod: info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return "", empty
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].mod == candidates[j].mod {
			return candidates[i].path > candidates[j].path
		}
		return candidates[i].mod > candidates[j].mod
	})
	return candidates[0].path, nil
}
