// Package lock keeps two watchset processes from driving the same
// inventory at once.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("another watchset instance holds the lock")

// InstanceLock is a cross-process lock keyed by an inventory identity.
type InstanceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// ForKey returns a lock in dir whose file name is derived from key, so the
// same inventory always maps to the same lock file.
func ForKey(dir, key string) *InstanceLock {
	sum := sha256.Sum256([]byte(key))
	name := "watch-" + hex.EncodeToString(sum[:8]) + ".lock"
	path := filepath.Join(dir, name)
	return &InstanceLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock acquires the lock without blocking. Returns ErrHeld if another
// process has it.
func (l *InstanceLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrHeld, l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *InstanceLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}

// IsLocked reports whether this process holds the lock.
func (l *InstanceLock) IsLocked() bool {
	return l.locked
}
