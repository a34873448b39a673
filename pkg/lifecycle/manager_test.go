package lifecycle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pilotdev/pilotd/pkg/statedir"
)

func newTestManager(t *testing.T) (*Manager, *statedir.Dir) {
	t.Helper()
	dir, err := statedir.Open(t.TempDir())
	require.NoError(t, err)
	return NewManager(dir), dir
}

func TestStatus_NotRunning(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Status(context.Background())
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestStatus_StalePidFileIsRemoved(t *testing.T) {
	m, dir := newTestManager(t)

	// A PID file with a bogus PID (unlikely to be alive, and if alive,
	// certainly not a pilotd process).
	stale := &PidFileContent{PID: 999999, StartedAt: time.Now().UTC(), Port: 4321, Version: "pilotd/dev"}
	require.NoError(t, writePidFile(dir, stale))

	_, err := m.Status(context.Background())
	require.ErrorIs(t, err, ErrStaleState)

	_, statErr := os.Stat(dir.PidFile())
	require.True(t, os.IsNotExist(statErr), "stale pid file should have been removed")
}

func TestLockDiscipline_SecondAcquireFails(t *testing.T) {
	_, dir := newTestManager(t)

	g1, err := acquireLock(dir)
	require.NoError(t, err)
	defer g1.Release()

	_, err = acquireLock(dir)
	require.ErrorIs(t, err, ErrLockHeld)
}

func TestPidFileRoundTrip(t *testing.T) {
	_, dir := newTestManager(t)
	gw := 9090
	original := &PidFileContent{
		PID:         123,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
		Port:        8080,
		GatewayPort: &gw,
		Version:     "pilotd/abcdef12",
	}
	require.NoError(t, writePidFile(dir, original))

	loaded, err := readPidFile(dir)
	require.NoError(t, err)
	require.Equal(t, original.PID, loaded.PID)
	require.Equal(t, original.Port, loaded.Port)
	require.Equal(t, *original.GatewayPort, *loaded.GatewayPort)
	require.Equal(t, original.Version, loaded.Version)
	require.True(t, original.StartedAt.Equal(loaded.StartedAt))
}

func TestReadPort_NotRunning(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.ReadPort()
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestUpdateAndReadGatewayPort(t *testing.T) {
	m, dir := newTestManager(t)
	require.NoError(t, writePidFile(dir, &PidFileContent{PID: os.Getpid(), Port: 1234, Version: "pilotd/dev"}))

	_, err := m.ReadGatewayPort()
	require.ErrorIs(t, err, ErrGatewayPortUnset)

	require.NoError(t, m.UpdateGatewayPort(3001))
	port, err := m.ReadGatewayPort()
	require.NoError(t, err)
	require.Equal(t, 3001, port)
}
