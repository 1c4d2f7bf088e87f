package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"memeshop/internal/config"
	"memeshop/internal/logging"
	"memeshop/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "distribute")
	logger.Info("channel posted", logging.Int64(logging.FieldRecordID, 3), logging.String("title", "Cat Meme"))
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, " INFO distribute: channel posted") {
		t.Fatalf("unexpected console output: %q", out)
	}
	if !strings.Contains(out, "record_id=3") || !strings.Contains(out, `title="Cat Meme"`) {
		t.Fatalf("expected fields in output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered at info level: %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller information, got %q", buf.String())
	}
}

func TestConsoleLoggerGroupsUseDottedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("http").Info("request", logging.Int("status", 500))
	if !strings.Contains(buf.String(), "http.status=500") {
		t.Fatalf("expected grouped key, got %q", buf.String())
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("retrying", logging.String(logging.FieldChannel, "twitter"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["channel"] != "twitter" {
		t.Fatalf("expected channel field, got %v", payload)
	}
}

func TestWithContextAddsStandardFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithStage(ctx, "publish")
	ctx = services.WithRecordID(ctx, 9)

	logging.WithContext(ctx, base).Info("hello")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["run_id"] != "run-1" || payload["stage"] != "publish" || payload["record_id"] != float64(9) {
		t.Fatalf("missing context fields: %v", payload)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "asset delete failed", "asset_delete_failed", logging.Error(errors.New("busy")))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	for _, key := range []string{"event_type", "error_hint", "impact"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected %s in %v", key, payload)
		}
	}
	if payload["event_type"] != "asset_delete_failed" {
		t.Fatalf("unexpected event type: %v", payload["event_type"])
	}
}

func TestOpenRunLogTeesToFile(t *testing.T) {
	var console bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &console})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	dir := t.TempDir()
	runLog, err := logging.OpenRunLog(base, dir, "abc-123")
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	runLog.Logger.Info("visible everywhere")
	runLog.Logger.Debug("file only")
	if err := runLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(console.String(), "visible everywhere") {
		t.Fatalf("expected console output, got %q", console.String())
	}
	if strings.Contains(console.String(), "file only") {
		t.Fatalf("debug line leaked to console: %q", console.String())
	}
	if matched, _ := filepath.Match(filepath.Join(dir, logging.RunLogPattern), runLog.Path); !matched {
		t.Fatalf("unexpected run log path %q", runLog.Path)
	}
	data, err := os.ReadFile(runLog.Path)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines in run log, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], `"run_id":"abc-123"`) {
		t.Fatalf("expected run id in file log: %q", lines[0])
	}
}

func TestPruneRunLogsRemovesExpiredRunLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "run-20200101T000000Z-old.log")
	newPath := filepath.Join(dir, "run-20990101T000000Z-new.log")
	otherPath := filepath.Join(dir, "notes.txt")
	currentPath := filepath.Join(dir, "run-20200102T000000Z-current.log")
	for _, path := range []string{oldPath, newPath, otherPath, currentPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -40)
	for _, path := range []string{oldPath, otherPath, currentPath} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneRunLogs(logging.NewNop(), dir, time.Now().AddDate(0, 0, -30), currentPath)
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old run log removed, stat err=%v", err)
	}
	for _, path := range []string{newPath, otherPath, currentPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}

	if removed := logging.PruneRunLogs(nil, dir, time.Time{}, ""); removed != 0 {
		t.Fatalf("zero cutoff must disable pruning, removed %d", removed)
	}
}
