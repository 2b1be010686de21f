package storyfile

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock is an advisory lock on one document, held in a sibling ".lock" file.
type Lock struct {
	path string
	lock *flock.Flock
}

// LockPath returns the lock file used for the document at path.
func LockPath(path string) string {
	return path + ".lock"
}

// Acquire takes the document lock without blocking. ErrLocked is returned
// when another session holds it.
func Acquire(path string) (*Lock, error) {
	lockPath := LockPath(path)
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &Lock{path: lockPath, lock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
