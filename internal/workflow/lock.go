package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrWatchLocked is returned when another process already watches the same
// directory.
var ErrWatchLocked = errors.New("another convoy watcher holds this directory")

// InstanceLock is an exclusive flock tied to one watch root.
type InstanceLock struct {
	path string
	lock *flock.Flock
}

// InstanceLockPath returns <stateDir>/watch-<hash>.lock for watchRoot.
func InstanceLockPath(stateDir, watchRoot string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(watchRoot)))
	return filepath.Join(stateDir, "watch-"+hex.EncodeToString(sum[:6])+".lock")
}

// AcquireInstanceLock takes the watch lock without blocking.
func AcquireInstanceLock(stateDir, watchRoot string) (*InstanceLock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	path := InstanceLockPath(stateDir, watchRoot)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (lock %s)", ErrWatchLocked, watchRoot, path)
	}
	return &InstanceLock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *InstanceLock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks. The lock file is left in place.
func (l *InstanceLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
