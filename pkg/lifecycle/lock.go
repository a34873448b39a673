package lifecycle

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/pilotdev/pilotd/pkg/statedir"
)

// LockGuard holds the daemon.lock advisory exclusive lock for the duration
// of a start/stop/restart operation and releases it when closed — including
// on panic, since callers always defer Release immediately after acquiring.
type LockGuard struct {
	fl *flock.Flock
}

// acquireLock takes a non-blocking exclusive lock on dir's lock file.
// Only one of Start/Stop/Restart may hold it at a time per state directory
// (spec.md §4.1 lock discipline).
func acquireLock(dir *statedir.Dir) (*LockGuard, error) {
	fl := flock.New(dir.LockFile())
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockHeld, err)
	}
	if !locked {
		return nil, ErrLockHeld
	}
	return &LockGuard{fl: fl}, nil
}

// Release unlocks the guard. Safe to call multiple times.
func (g *LockGuard) Release() error {
	if g == nil || g.fl == nil {
		return nil
	}
	return g.fl.Unlock()
}
