package lifecycle

import "errors"

// Error taxonomy for lifecycle operations (spec.md §7).
var (
	ErrAlreadyRunning  = errors.New("daemon already running")
	ErrLockHeld        = errors.New("another lifecycle operation is in progress")
	ErrSpawnFailed     = errors.New("failed to spawn daemon process")
	ErrStaleState      = errors.New("stale daemon state detected")
	ErrTimeout         = errors.New("timed out waiting for daemon")
	ErrNotRunning      = errors.New("daemon is not running")
	ErrCorruptPidFile  = errors.New("corrupt pid file")
	ErrGatewayPortUnset = errors.New("gateway port not set in pid file")
)
