// SPDX-License-Identifier: Apache-2.0

// Package tunnel implements the SSH Tunnel Multiplexer (C8, §4.3): cross-process
// coordination, through the filesystem, of a single shared SSH local port-forward per
// (ssh_user, ssh_host, key, remote_endpoint) identity.
package tunnel

import (
	"crypto/sha256"
	"encoding/hex"
)

// Config describes one tunnel a client wants to use. Fields not named here (the remote
// document store's own TLS/auth settings) are the driver's concern, not the tunnel's.
type Config struct {
	SSHUser               string
	SSHHost               string
	SSHPort               int // default 22
	SSHPrivateKeyFile     string
	SSHPrivateKeyPassphrase string
	SSHStrictHostKeyChecking bool
	SSHKnownHostsFile     string // consulted only when SSHStrictHostKeyChecking is true
	RemoteEndpoint        string // host:port of the document store, as reached from the jump host
}

func (c Config) sshPort() int {
	if c.SSHPort == 0 {
		return 22
	}
	return c.SSHPort
}

// identity computes the deterministic hash §4.3.1 keys all coordination paths on: every
// field that distinguishes one shared tunnel from another, and nothing else (passphrase
// excluded, since two configs differing only in passphrase must still share one tunnel
// identity only if the key path matches — in practice they always agree).
func identity(c Config) string {
	h := sha256.New()
	for _, part := range []string{c.SSHUser, c.SSHHost, c.SSHPrivateKeyFile, c.RemoteEndpoint} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
