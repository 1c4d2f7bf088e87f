package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another process holds the store lock.
var ErrLocked = errors.New("store is locked by another run")

// Lock is an advisory file lock guarding the stores against concurrent runs.
type Lock struct {
	path string
	fl   *flock.Flock
}

// LockPath returns the lock file location for a store path.
func LockPath(storePath string) string {
	return storePath + ".lock"
}

// AcquireLock takes the lock at path without blocking. ErrLocked is returned
// when another process already holds it.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the file. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
