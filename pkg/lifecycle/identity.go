package lifecycle

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/pilotdev/pilotd/pkg/version"
)

// isOurProcess verifies that pid identifies a live process whose name or
// executable path contains the app identifier. A PID match alone is never
// sufficient — Unix recycles PIDs — so every caller that trusts a recorded
// PID must go through this check first (spec.md §4.1).
func isOurProcess(ctx context.Context, pid int) bool {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		// Process doesn't exist.
		return false
	}

	if name, err := proc.NameWithContext(ctx); err == nil && strings.Contains(name, version.AppName) {
		return true
	}
	if exe, err := proc.ExeWithContext(ctx); err == nil && strings.Contains(exe, version.AppName) {
		return true
	}

	if running, err := proc.IsRunningWithContext(ctx); err != nil || !running {
		return false
	}

	slog.Warn("pid matched a live process but neither its name nor exe path identify it as ours",
		"pid", pid)
	return false
}

// findStaleProcesses returns the PIDs of every live process (other than
// excludePID, normally the caller's own PID) whose name or exe path
// contains the app identifier. Used only by the manual KillStaleDaemons
// utility (spec.md §4.1) — never by normal start/stop/restart.
func findStaleProcesses(ctx context.Context, excludePID int) ([]int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var matches []int32
	for _, p := range procs {
		if int(p.Pid) == excludePID {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		exe, _ := p.ExeWithContext(ctx)
		if strings.Contains(name, version.AppName) || strings.Contains(exe, version.AppName) {
			matches = append(matches, p.Pid)
		}
	}
	return matches, nil
}
