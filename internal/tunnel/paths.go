// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"os"
	"path/filepath"
)

// paths is the filesystem layout for one tunnel identity (§4.3.1-4.3.2), all rooted
// under the Multiplexer's base directory.
type paths struct {
	dir         string
	globalLock  string
	startupLock string
	serverLock  string
	portFile    string
	clientsDir  string
}

func newPaths(baseDir, id string) paths {
	dir := filepath.Join(baseDir, id)
	return paths{
		dir:         dir,
		globalLock:  filepath.Join(dir, "global.lock"),
		startupLock: filepath.Join(dir, "startup.lock"),
		serverLock:  filepath.Join(dir, "server.lock"),
		portFile:    filepath.Join(dir, "port"),
		clientsDir:  filepath.Join(dir, "clients"),
	}
}

func (p paths) ensureDirs() error {
	return os.MkdirAll(p.clientsDir, 0o755)
}

// readState inspects the filesystem for the current state (§4.3.2). It is advisory: the
// caller still must take the relevant locks before acting on it.
func (p paths) readState() State {
	if _, err := os.Stat(p.serverLock); err != nil {
		if _, err := os.Stat(p.startupLock); err == nil {
			return StateStarting
		}
		return StateAbsent
	}
	entries, err := os.ReadDir(p.clientsDir)
	if err != nil || len(entries) == 0 {
		return StateDraining
	}
	return StateRunning
}
