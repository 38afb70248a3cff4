// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/log"
)

// session is the owner process's single SSH resource: a connected client plus a local
// listener forwarding every accepted connection to RemoteEndpoint through it. The core
// specification treats this as one resource with start/local_port/disconnect operations
// (§4.3.5); session is that resource.
type session struct {
	client   *ssh.Client
	listener net.Listener
	logger   log.Logger
}

// start dials the jump host, installs a kernel-assigned local port forward to
// cfg.RemoteEndpoint, and begins accepting connections in the background.
func start(cfg Config, logger log.Logger) (*session, error) {
	auth, err := privateKeyAuth(cfg.SSHPrivateKeyFile, cfg.SSHPrivateKeyPassphrase)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindTunnelStartup, "load SSH private key", err)
	}
	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindTunnelStartup, "configure host key verification", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.SSHHost, cfg.sshPort())
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.SSHUser,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
	})
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindTunnelStartup, fmt.Sprintf("dial ssh host %s", addr), err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, dbrerr.New(dbrerr.KindTunnelStartup, "open local forwarding listener", err)
	}

	s := &session{client: client, listener: listener, logger: logger}
	go s.acceptLoop(cfg.RemoteEndpoint)
	return s, nil
}

// localPort returns the kernel-assigned port clients should connect to.
func (s *session) localPort() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// disconnect tears down the listener and the SSH client. Safe to call once.
func (s *session) disconnect() {
	s.listener.Close()
	s.client.Close()
}

func (s *session) acceptLoop(remoteEndpoint string) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed by disconnect()
		}
		go s.forward(conn, remoteEndpoint)
	}
}

func (s *session) forward(local net.Conn, remoteEndpoint string) {
	defer local.Close()
	remote, err := s.client.Dial("tcp", remoteEndpoint)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(context.Background(), "ssh tunnel: dial remote endpoint failed", "remote", remoteEndpoint, "error", err)
		}
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() { io.Copy(remote, local); done <- struct{}{} }()
	go func() { io.Copy(local, remote); done <- struct{}{} }()
	<-done
}

func privateKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", keyPath, err)
	}
	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
	}
	return ssh.PublicKeys(signer), nil
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if !cfg.SSHStrictHostKeyChecking {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if cfg.SSHKnownHostsFile == "" {
		return nil, fmt.Errorf("sshStrictHostKeyChecking is set but no known_hosts file was provided")
	}
	return knownhosts.New(cfg.SSHKnownHostsFile)
}
