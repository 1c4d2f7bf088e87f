package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	scanBufferSize = 64 * 1024
	maxLineSize    = 1024 * 1024
	defaultPoll    = 250 * time.Millisecond
)

// Chunk is a batch of lines read from a run log with the offset to resume from.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Tail returns up to n trailing lines of path. A non-positive n returns no
// lines but still reports the end offset so callers can follow from there.
func Tail(path string, n int) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{}, fmt.Errorf("open run log: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek run log: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, n)
	count, next := 0, 0
	scanner := newScanner(file)
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % n
		if count < n {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return Chunk{}, fmt.Errorf("read run log: %w", err)
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return Chunk{}, fmt.Errorf("seek run log: %w", err)
	}

	lines := make([]string, count)
	start := 0
	if count == n {
		start = next
	}
	for i := range count {
		lines[i] = ring[(start+i)%n]
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

// ReadFrom returns every complete line written after offset. An offset past
// the end of the file (the log was replaced) restarts from the beginning.
func ReadFrom(path string, offset int64) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{Offset: offset}, nil
		}
		return Chunk{Offset: offset}, fmt.Errorf("open run log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("stat run log: %w", err)
	}
	if info.IsDir() {
		return Chunk{Offset: offset}, fmt.Errorf("run log %q is a directory", path)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("seek run log: %w", err)
	}

	reader := bufio.NewReaderSize(file, scanBufferSize)
	var lines []string
	consumed := offset
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Partial trailing line stays unread until its newline lands.
				break
			}
			return Chunk{Lines: lines, Offset: consumed}, fmt.Errorf("read run log: %w", err)
		}
		consumed += int64(len(line))
		lines = append(lines, trimNewline(line))
	}
	return Chunk{Lines: lines, Offset: consumed}, nil
}

// Follow polls path from offset and hands each new batch of lines to emit
// until ctx is done. The poll interval defaults to 250ms.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func([]string)) error {
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		chunk, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		offset = chunk.Offset
		if len(chunk.Lines) > 0 {
			emit(chunk.Lines)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scanBufferSize), maxLineSize)
	return scanner
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
