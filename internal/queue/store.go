package queue

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrMalformedRecord marks a store line that could not be decoded.
var ErrMalformedRecord = errors.New("malformed record")

// Store is a newline-delimited JSON file holding one Record per line.
type Store struct {
	path string
}

// NewStore returns a store backed by the file at path. The file is created on
// first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads every record in file order. Blank lines are ignored and a
// missing file is an empty store.
func (s *Store) Load() ([]*Record, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer file.Close()

	records := make([]*Record, 0, 32)
	reader := bufio.NewReader(file)
	lineNo := 0
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				var rec Record
				if err := json.Unmarshal(trimmed, &rec); err != nil {
					return nil, fmt.Errorf("%w: %s line %d: %w", ErrMalformedRecord, s.path, lineNo, err)
				}
				records = append(records, &rec)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read store %s: %w", s.path, readErr)
		}
	}
	return records, nil
}

// Save replaces the file with records. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (s *Store) Save(records []*Record) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace store %s: %w", s.path, err)
	}
	return nil
}

// Append adds records to the end of the file without rewriting it.
func (s *Store) Append(records ...*Record) error {
	if len(records) == 0 {
		return nil
	}
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure store directory: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer file.Close()

	needsNewline, err := missingTrailingNewline(file)
	if err != nil {
		return err
	}
	if needsNewline {
		data = append([]byte{'\n'}, data...)
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("append store %s: %w", s.path, err)
	}
	return file.Sync()
}

// Truncate empties the file, creating it when missing.
func (s *Store) Truncate() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure store directory: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("truncate store %s: %w", s.path, err)
	}
	return file.Close()
}

func encodeRecords(records []*Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", rec.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func missingTrailingNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat store: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read store tail: %w", err)
	}
	return last[0] != '\n', nil
}
