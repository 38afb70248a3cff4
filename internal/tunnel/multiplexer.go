// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/log"
)

// globalLockPoll is the bounded wait interval §4.3.5 requires for the global lock.
const globalLockPoll = 100 * time.Millisecond

// watcherInterval is the sweep period §4.3.4 specifies.
const watcherInterval = 500 * time.Millisecond

// Multiplexer coordinates SSH tunnels shared across processes on one host (C8). Every
// Multiplexer pointed at the same baseDir participates in the same coordination.
type Multiplexer struct {
	baseDir string
	logger  log.Logger
}

// NewMultiplexer creates a Multiplexer rooted at baseDir, which it creates if necessary.
func NewMultiplexer(baseDir string, logger log.Logger) (*Multiplexer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, dbrerr.New(dbrerr.KindIO, "create tunnel coordination directory", err)
	}
	return &Multiplexer{baseDir: baseDir, logger: logger}, nil
}

// Handle is a client's lease on a running tunnel (§4.3.3): LocalPort is where the client
// should dial; Release must be called exactly once to give it up.
type Handle struct {
	identity       string
	localPort      int
	clientLockPath string
	clientLock     *flock.Flock
	mux            *Multiplexer
}

func (h *Handle) LocalPort() int { return h.localPort }

// Release gives up h, per §4.3.3's release(client_handle).
func (h *Handle) Release() error { return h.mux.Release(h) }

// Acquire implements §4.3.3's acquire(config) -> (local_port, client_handle). If no
// tunnel for config's identity is running, this call's process becomes the owner and
// starts one; otherwise it joins the existing tunnel as a client.
func (m *Multiplexer) Acquire(ctx context.Context, cfg Config) (*Handle, error) {
	id := identity(cfg)
	p := newPaths(m.baseDir, id)
	if err := p.ensureDirs(); err != nil {
		return nil, dbrerr.New(dbrerr.KindIO, "create tunnel identity directory", err)
	}

	global := flock.New(p.globalLock)
	port, err := m.becomeOwnerOrJoin(ctx, cfg, p, global)
	if err != nil {
		return nil, err
	}

	clientPath, clientLock, err := acquireClientLock(ctx, p)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindTunnelStartup, "acquire client lock", err)
	}

	return &Handle{identity: id, localPort: port, clientLockPath: clientPath, clientLock: clientLock, mux: m}, nil
}

// becomeOwnerOrJoin runs the global-lock-protected section of acquire: decide whether
// this process starts the tunnel or reads an existing one's port.
func (m *Multiplexer) becomeOwnerOrJoin(ctx context.Context, cfg Config, p paths, global *flock.Flock) (int, error) {
	locked, err := global.TryLockContext(ctx, globalLockPoll)
	if err != nil || !locked {
		return 0, dbrerr.New(dbrerr.KindTunnelStartup, "acquire global coordination lock", err)
	}
	defer global.Unlock()

	server := flock.New(p.serverLock)
	owner, err := server.TryLock()
	if err != nil {
		return 0, dbrerr.New(dbrerr.KindTunnelStartup, "probe server lock", err)
	}
	if !owner {
		return m.readExistingPort(ctx, p)
	}

	return m.startOwned(ctx, cfg, p, server)
}

// startOwned is run by the new owner while still holding the global lock: it opens the
// SSH session, writes the port file, and launches the watcher task. It unlocks the server
// lock only when startup fails; on success the lock stays held until the watcher tears
// the tunnel down, releasing automatically (and observably to other processes) if the
// process dies first.
func (m *Multiplexer) startOwned(ctx context.Context, cfg Config, p paths, server *flock.Flock) (int, error) {
	startup := flock.New(p.startupLock)
	if _, err := startup.TryLock(); err != nil {
		server.Unlock()
		return 0, dbrerr.New(dbrerr.KindTunnelStartup, "acquire startup lock", err)
	}
	defer func() {
		startup.Unlock()
		os.Remove(p.startupLock)
	}()

	sess, err := start(cfg, m.logger)
	if err != nil {
		server.Unlock()
		return 0, err
	}

	port := sess.localPort()
	if err := os.WriteFile(p.portFile, []byte(fmt.Sprintf("%d", port)), 0o644); err != nil {
		sess.disconnect()
		server.Unlock()
		return 0, dbrerr.New(dbrerr.KindTunnelStartup, "write tunnel port file", err)
	}

	go m.watch(p, server, sess)
	return port, nil
}

// readExistingPort implements acquire step 3: read the port file of a tunnel another
// process owns, waiting on the startup lock and retrying once if it isn't written yet.
func (m *Multiplexer) readExistingPort(ctx context.Context, p paths) (int, error) {
	port, err := readPortFile(p.portFile)
	if err == nil {
		return port, nil
	}

	startup := flock.New(p.startupLock)
	locked, lockErr := startup.TryLockContext(ctx, globalLockPoll)
	if lockErr == nil && locked {
		startup.Unlock()
	}

	port, err = readPortFile(p.portFile)
	if err != nil {
		return 0, dbrerr.New(dbrerr.KindTunnelStartup, "tunnel port file unavailable after startup wait", err)
	}
	return port, nil
}

func readPortFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var port int
	if _, err := fmt.Sscanf(string(data), "%d", &port); err != nil {
		return 0, fmt.Errorf("parse port file %s: %w", path, err)
	}
	return port, nil
}

// acquireClientLock implements acquire steps 4-5: a fresh, exclusively held lock file
// identifying this client for the watcher task to track.
func acquireClientLock(ctx context.Context, p paths) (string, *flock.Flock, error) {
	path := p.clientsDir + "/" + uuid.NewString() + ".lock"
	lock := flock.New(path)
	locked, err := lock.TryLockContext(ctx, globalLockPoll)
	if err != nil || !locked {
		return "", nil, fmt.Errorf("lock client file %s: %w", path, err)
	}
	return path, lock, nil
}

// Release implements §4.3.3's release(client_handle): the client lock file is closed and
// deleted; the owner's watcher task (already running) reclaims it on its next sweep.
func (m *Multiplexer) Release(h *Handle) error {
	if err := h.clientLock.Unlock(); err != nil {
		return dbrerr.New(dbrerr.KindIO, "unlock client lock file", err)
	}
	if err := os.Remove(h.clientLockPath); err != nil && !os.IsNotExist(err) {
		return dbrerr.New(dbrerr.KindIO, "remove client lock file", err)
	}
	return nil
}
