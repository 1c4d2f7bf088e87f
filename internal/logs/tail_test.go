package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"memeshop/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-a.log")
	writeLog(t, path, "a\nb\nc\n")

	chunk, err := logs.Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != "b" || chunk.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", chunk.Offset)
	}
}

func TestTailShortFileAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-a.log")
	writeLog(t, path, "only\n")

	chunk, err := logs.Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "only" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}

	chunk, err = logs.Tail(filepath.Join(dir, "missing.log"), 5)
	if err != nil {
		t.Fatalf("Tail missing: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 0 {
		t.Fatalf("expected empty chunk, got %#v", chunk)
	}
}

func TestReadFromHoldsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-a.log")
	writeLog(t, path, "one\ntw")

	chunk, err := logs.ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "one" || chunk.Offset != 4 {
		t.Fatalf("unexpected chunk: %#v", chunk)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("o\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	chunk, err = logs.ReadFrom(path, chunk.Offset)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "two" {
		t.Fatalf("unexpected follow lines: %#v", chunk.Lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-a.log")
	writeLog(t, path, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	got := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, 6, 10*time.Millisecond, func(lines []string) {
			got <- lines
		})
	}()

	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	select {
	case lines := <-got:
		if len(lines) != 1 || lines[0] != "later" {
			t.Fatalf("unexpected lines: %#v", lines)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit appended line")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop after cancel")
	}
}
