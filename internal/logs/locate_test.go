package logs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"memeshop/internal/logging"
	"memeshop/internal/logs"
	"memeshop/internal/services"
)

func TestLatestPicksNewestRunLog(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "run-20240601T090000Z-aaa.log")
	newer := filepath.Join(dir, "run-20240602T090000Z-bbb.log")
	writeLog(t, older, "old\n")
	writeLog(t, newer, "new\n")
	writeLog(t, filepath.Join(dir, "notes.txt"), "ignored\n")

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	path, err := logs.Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if path != newer {
		t.Fatalf("expected %s, got %s", newer, path)
	}
}

func TestLatestEmptyDir(t *testing.T) {
	if _, err := logs.Latest(t.TempDir()); !errors.Is(err, logs.ErrNoRunLogs) {
		t.Fatalf("expected ErrNoRunLogs, got %v", err)
	}
}

func TestForRunMatchesRunLog(t *testing.T) {
	dir := t.TempDir()
	runLog, err := logging.OpenRunLog(logging.NewNop(), dir, "3f1c-run")
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	runLog.Logger.Info("hello")
	if err := runLog.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path, err := logs.ForRun(dir, "3f1c-run")
	if err != nil {
		t.Fatalf("ForRun: %v", err)
	}
	if path != runLog.Path {
		t.Fatalf("expected %s, got %s", runLog.Path, path)
	}

	if _, err := logs.ForRun(dir, "other"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
