// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"
)

func TestIdentityIsDeterministicAndDistinguishesEndpoints(t *testing.T) {
	a := Config{SSHUser: "u", SSHHost: "h", SSHPrivateKeyFile: "/k", RemoteEndpoint: "db:27017"}
	b := a
	b.RemoteEndpoint = "db:27018"

	require.Equal(t, identity(a), identity(a))
	require.NotEqual(t, identity(a), identity(b))
}

func TestReadStateAbsentWhenNoFilesExist(t *testing.T) {
	p := newPaths(t.TempDir(), "id")
	require.Equal(t, StateAbsent, p.readState())
}

func TestReadStateStartingWhileStartupLockHeldWithoutServerLock(t *testing.T) {
	dir := t.TempDir()
	p := newPaths(dir, "id")
	require.NoError(t, p.ensureDirs())
	require.NoError(t, os.WriteFile(p.startupLock, nil, 0o644))

	require.Equal(t, StateStarting, p.readState())
}

func TestReadStateRunningWithClientsPresent(t *testing.T) {
	dir := t.TempDir()
	p := newPaths(dir, "id")
	require.NoError(t, p.ensureDirs())
	require.NoError(t, os.WriteFile(p.serverLock, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p.clientsDir, "a.lock"), nil, 0o644))

	require.Equal(t, StateRunning, p.readState())
}

func TestReadStateDrainingWithNoClients(t *testing.T) {
	dir := t.TempDir()
	p := newPaths(dir, "id")
	require.NoError(t, p.ensureDirs())
	require.NoError(t, os.WriteFile(p.serverLock, nil, 0o644))

	require.Equal(t, StateDraining, p.readState())
}

// TestSweepReapsLockAbandonedByDeadProcess covers the crashed-client case: a lock file
// exists with nothing holding its flock (the OS releases a dead process's lock
// automatically), so the sweep (§4.3.4) must be able to take it and remove the file.
func TestSweepReapsLockAbandonedByDeadProcess(t *testing.T) {
	dir := t.TempDir()
	p := newPaths(dir, "id")
	require.NoError(t, p.ensureDirs())

	deadPath := filepath.Join(p.clientsDir, "dead.lock")
	require.NoError(t, os.WriteFile(deadPath, nil, 0o644))

	m := &Multiplexer{baseDir: dir}
	live, err := m.sweep(p)
	require.NoError(t, err)
	require.Equal(t, 0, live)
	_, statErr := os.Stat(deadPath)
	require.True(t, os.IsNotExist(statErr), "abandoned client lock file must be removed")
}

func TestSweepCountsLiveHolder(t *testing.T) {
	dir := t.TempDir()
	p := newPaths(dir, "id")
	require.NoError(t, p.ensureDirs())

	livePath := filepath.Join(p.clientsDir, "live.lock")
	lock := flock.New(livePath)
	locked, err := lock.TryLockContext(context.Background(), globalLockPoll)
	require.NoError(t, err)
	require.True(t, locked)
	defer lock.Unlock()

	m := &Multiplexer{baseDir: dir}
	live, err := m.sweep(p)
	require.NoError(t, err)
	require.Equal(t, 1, live)
	_, statErr := os.Stat(livePath)
	require.NoError(t, statErr, "a lock still held by a live holder must not be removed")
}
