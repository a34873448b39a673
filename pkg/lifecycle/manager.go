package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pilotdev/pilotd/pkg/statedir"
	"github.com/pilotdev/pilotd/pkg/version"
)

const (
	// spawnWait is how long Start waits for the spawned daemon to rewrite
	// the PID file with its actual bound port (spec.md §4.1: "~3s").
	spawnWait = 3 * time.Second
	// stopPollInterval is how often Stop polls for process exit.
	stopPollInterval = 100 * time.Millisecond
	// stopGraceful is how long Stop waits for a graceful exit before
	// escalating to SIGKILL (spec.md §4.1: "10s").
	stopGraceful = 10 * time.Second
	// restartPause is the minimum sleep between stop() and start() inside
	// Restart (spec.md §4.1: "≥500ms").
	restartPause = 500 * time.Millisecond
)

// StartConfig parameterizes Start. Port 0 requests OS-assigned ephemeral
// port discovery.
type StartConfig struct {
	// Port the daemon should bind to; 0 for OS assignment.
	Port int
	// ExecPath is the daemon binary to spawn. Defaults to the current
	// executable (os.Executable()) when empty, matching how a host CLI
	// re-execs itself in "daemon run" mode.
	ExecPath string
	// Args are passed to ExecPath verbatim.
	Args []string
	// Env, if non-nil, replaces the spawned process's environment.
	Env []string
}

// Status mirrors spec.md §4.1 status() return shape.
type Status struct {
	PID       int
	Running   bool
	StartedAt time.Time
	Port      int
	Version   string
}

// Manager owns all lifecycle operations for one state directory. Only one
// Manager per state directory should run start/stop/restart concurrently —
// enforced across OS processes by the daemon.lock file, and across
// goroutines within one process by mu.
type Manager struct {
	dir *statedir.Dir
}

// NewManager returns a lifecycle manager bound to dir.
func NewManager(dir *statedir.Dir) *Manager {
	return &Manager{dir: dir}
}

// Start acquires the lock, verifies no live daemon already owns the state
// directory, spawns the daemon binary detached from the caller's stdio,
// and waits up to spawnWait for the daemon to rewrite the PID file with its
// actual bound port. Any error leaves no PidFile and no lock held.
func (m *Manager) Start(ctx context.Context, cfg StartConfig) (*Status, error) {
	lock, err := acquireLock(m.dir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if status, err := m.status(ctx); err == nil && status.Running {
		return nil, fmt.Errorf("%w: pid %d on port %d", ErrAlreadyRunning, status.PID, status.Port)
	}
	// status() already removed a stale PidFile as a side effect if one
	// was present but unverified.

	execPath := cfg.ExecPath
	if execPath == "" {
		execPath, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve current executable: %v", ErrSpawnFailed, err)
		}
	}

	cmd := exec.Command(execPath, cfg.Args...)
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	pid := cmd.Process.Pid
	// Detach: the daemon outlives this call, so we must not Wait() on it.
	_ = cmd.Process.Release()

	provisional := &PidFileContent{
		PID:       pid,
		StartedAt: time.Now().UTC(),
		Port:      cfg.Port,
		Version:   version.Full(),
	}
	if err := writePidFile(m.dir, provisional); err != nil {
		return nil, fmt.Errorf("%w: write provisional pid file: %v", ErrSpawnFailed, err)
	}

	deadline := time.Now().Add(spawnWait)
	for time.Now().Before(deadline) {
		content, err := readPidFile(m.dir)
		if err == nil && content.PID == pid && content.Port != 0 {
			return &Status{
				PID:       content.PID,
				Running:   true,
				StartedAt: content.StartedAt,
				Port:      content.Port,
				Version:   content.Version,
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	// cfg.Port == 0 and the daemon never rewrote the file — treat as a
	// timeout rather than silently returning a port:0 status, since
	// callers would otherwise connect to a port nobody bound.
	if cfg.Port == 0 {
		return nil, ErrTimeout
	}
	return &Status{PID: pid, Running: true, StartedAt: provisional.StartedAt, Port: cfg.Port, Version: provisional.Version}, nil
}

// UpdatePort rewrites daemon.pid with the actual bound port. Called by the
// daemon itself immediately after its listener binds.
func (m *Manager) UpdatePort(port int) error {
	content, err := readPidFile(m.dir)
	if err != nil {
		return fmt.Errorf("%w: update port: %v", ErrNotRunning, err)
	}
	content.Port = port
	return writePidFile(m.dir, content)
}

// ReadPort returns the daemon's bound port from the PID file. Clients must
// always call this rather than hardcoding a port (spec.md §4.1).
func (m *Manager) ReadPort() (int, error) {
	content, err := readPidFile(m.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: read port: %v", ErrNotRunning, err)
	}
	return content.Port, nil
}

// UpdateGatewayPort rewrites daemon.pid with the sidecar/gateway port.
func (m *Manager) UpdateGatewayPort(port int) error {
	content, err := readPidFile(m.dir)
	if err != nil {
		return fmt.Errorf("%w: update gateway port: %v", ErrNotRunning, err)
	}
	p := port
	content.GatewayPort = &p
	return writePidFile(m.dir, content)
}

// ReadGatewayPort returns the sidecar/gateway port from the PID file.
func (m *Manager) ReadGatewayPort() (int, error) {
	content, err := readPidFile(m.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: read gateway port: %v", ErrNotRunning, err)
	}
	if content.GatewayPort == nil {
		return 0, ErrGatewayPortUnset
	}
	return *content.GatewayPort, nil
}

// Status verifies the recorded PID is a live, identity-verified process and
// returns its status. A stale PidFile (no live process, or a live process
// that isn't ours) is removed as a side effect.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	lock, err := acquireLock(m.dir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	return m.status(ctx)
}

// status is the lock-free core of Status/Start, so Start can check
// liveness while already holding the lock without deadlocking.
func (m *Manager) status(ctx context.Context) (*Status, error) {
	content, err := readPidFile(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotRunning
		}
		return nil, err
	}

	if !isOurProcess(ctx, content.PID) {
		slog.Warn("removing stale pid file", "pid", content.PID)
		_ = removePidFile(m.dir)
		return nil, ErrStaleState
	}

	return &Status{
		PID:       content.PID,
		Running:   true,
		StartedAt: content.StartedAt,
		Port:      content.Port,
		Version:   content.Version,
	}, nil
}

// Stop reads the PID file; if no live verified daemon exists, it cleans the
// temp bundle and returns. Otherwise it sends SIGTERM, polls for exit up to
// stopGraceful, escalates to SIGKILL if needed, then removes the PID file
// and cleans the temp bundle.
func (m *Manager) Stop(ctx context.Context) error {
	lock, err := acquireLock(m.dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	bundle := statedir.NewTempBundle()
	defer bundle.Clean()

	status, err := m.status(ctx)
	if err != nil {
		// Not running, or stale file already cleaned up by status().
		return nil
	}

	proc, err := os.FindProcess(status.PID)
	if err != nil {
		_ = removePidFile(m.dir)
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Process may have exited between status() and here.
		_ = removePidFile(m.dir)
		return nil
	}

	deadline := time.Now().Add(stopGraceful)
	for time.Now().Before(deadline) {
		if !isOurProcess(ctx, status.PID) {
			_ = removePidFile(m.dir)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stopPollInterval):
		}
	}

	slog.Warn("daemon did not exit gracefully, escalating to SIGKILL", "pid", status.PID)
	_ = proc.Signal(syscall.SIGKILL)
	_ = removePidFile(m.dir)
	return nil
}

// Restart stops then starts the daemon, sleeping restartPause in between so
// the OS has time to release the port before the new instance binds.
func (m *Manager) Restart(ctx context.Context, cfg StartConfig) (*Status, error) {
	if err := m.Stop(ctx); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(restartPause):
	}
	return m.Start(ctx, cfg)
}

// KillStaleDaemons is a manual cleanup utility — never called by
// Start/Stop/Restart. It walks the process table and signals every process
// matching the app identifier other than the caller.
func (m *Manager) KillStaleDaemons(ctx context.Context) (int, error) {
	matches, err := findStaleProcesses(ctx, os.Getpid())
	if err != nil {
		return 0, err
	}

	killed := 0
	for _, pid := range matches {
		proc, err := os.FindProcess(int(pid))
		if err != nil {
			continue
		}
		if err := proc.Signal(syscall.SIGTERM); err == nil {
			killed++
			slog.Info("sent SIGTERM to stale daemon process", "pid", pid)
		}
	}
	if killed > 0 {
		_ = removePidFile(m.dir)
	}
	return killed, nil
}
