// Package lifecycle implements daemon process-identity control: exclusive
// single-instance ownership of the state directory, crash-safe PID/lock
// files, and port discovery (spec.md §4.1).
package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pilotdev/pilotd/pkg/statedir"
)

// PidFileContent is the stable, cross-implementation JSON schema for
// daemon.pid (spec.md §6).
type PidFileContent struct {
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	Port        int       `json:"port"`
	GatewayPort *int      `json:"gateway_port"`
	Version     string    `json:"version"`
}

// readPidFile loads and parses daemon.pid. Returns os.ErrNotExist (wrapped)
// when the file is absent so callers can distinguish "not running" from a
// parse failure.
func readPidFile(dir *statedir.Dir) (*PidFileContent, error) {
	data, err := os.ReadFile(dir.PidFile())
	if err != nil {
		return nil, err
	}
	var content PidFileContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("%w: parse pid file: %v", ErrCorruptPidFile, err)
	}
	return &content, nil
}

// writePidFile serializes content to daemon.pid atomically (write to a temp
// file in the same directory, then rename) so a crash mid-write never
// leaves a half-written, unparsable PID file.
func writePidFile(dir *statedir.Dir, content *PidFileContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pid file: %w", err)
	}
	tmp := dir.PidFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write pid file temp: %w", err)
	}
	if err := os.Rename(tmp, dir.PidFile()); err != nil {
		return fmt.Errorf("rename pid file into place: %w", err)
	}
	return nil
}

func removePidFile(dir *statedir.Dir) error {
	err := os.Remove(dir.PidFile())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
