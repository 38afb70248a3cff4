// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// watch is the owner's watcher task (§4.3.4): it repeatedly sweeps the clients
// directory, reaping lock files abandoned by dead clients, until no live client remains,
// at which point it tears the tunnel down and returns.
func (m *Multiplexer) watch(p paths, server *flock.Flock, sess *session) {
	for {
		time.Sleep(watcherInterval)

		live, err := m.sweep(p)
		if err != nil {
			if m.logger != nil {
				m.logger.WarnContext(context.Background(), "tunnel watcher: sweep failed", "error", err)
			}
			continue
		}
		if live > 0 {
			continue
		}

		sess.disconnect()
		server.Unlock()
		os.Remove(p.portFile)
		os.Remove(p.serverLock)
		return
	}
}

// sweep takes the global lock, then for every client lock file tries to acquire it
// itself: success means the owning client died without cleanup, so the file is removed;
// failure means the client is still alive, and it is counted.
func (m *Multiplexer) sweep(p paths) (live int, err error) {
	global := flock.New(p.globalLock)
	locked, err := global.TryLockContext(context.Background(), globalLockPoll)
	if err != nil || !locked {
		return 0, err
	}
	defer global.Unlock()

	entries, err := os.ReadDir(p.clientsDir)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := p.clientsDir + "/" + entry.Name()
		probe := flock.New(path)
		ok, lockErr := probe.TryLock()
		if lockErr != nil {
			live++
			continue
		}
		if ok {
			probe.Unlock()
			os.Remove(path)
			continue
		}
		live++
	}
	return live, nil
}
