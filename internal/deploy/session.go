// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/pkg/sftp"
	"github.com/toeirei/ufo/internal/logging"
	"github.com/toeirei/ufo/internal/model"
	"github.com/toeirei/ufo/internal/sshkey"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// RemoteUser is the fixed account every proxy server is managed through.
const RemoteUser = "root"

// Default timeouts for one proxy server exchange.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// ConnectionConfig bounds the blocking parts of a session.
type ConnectionConfig struct {
	// ConnectTimeout covers TCP connect, handshake and authentication.
	ConnectTimeout time.Duration
	// CommandTimeout covers one Exec, ReadFile or file upload.
	CommandTimeout time.Duration
}

// DefaultConnectionConfig returns the default timeouts.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		ConnectTimeout: DefaultConnectTimeout,
		CommandTimeout: DefaultCommandTimeout,
	}
}

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// sshDial opens the TCP connection and runs the SSH handshake. Tests replace
// it to observe whether any socket was opened.
var sshDial = func(ctx context.Context, network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if !stop() && err == nil {
		_ = c.Close()
		err = ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// pinnedHost is the single trusted (host, key) pair of a session.
type pinnedHost struct {
	host string // knownhosts.Normalize form
	key  ssh.PublicKey
}

func (p *pinnedHost) check(hostname string, _ net.Addr, key ssh.PublicKey) error {
	if p == nil || knownhosts.Normalize(hostname) != p.host {
		return fmt.Errorf("host key not pinned for %s", hostname)
	}
	if key.Type() != p.key.Type() || !bytes.Equal(key.Marshal(), p.key.Marshal()) {
		return fmt.Errorf("host key mismatch for %s: presented %s %s", hostname, key.Type(), ssh.FingerprintSHA256(key))
	}
	return nil
}

// ExecResult is the output of one remote command.
type ExecResult struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Session is one outbound SSH connection to one proxy server. It moves
// Disconnected -> Connecting -> Connected -> Closed and never reconnects.
// A Session is safe for concurrent use, but distinct servers never share one.
type Session struct {
	cfg    ConnectionConfig
	logger *clog.Logger

	mu     sync.Mutex
	state  State
	pinned *pinnedHost
	addr   string
	client *ssh.Client
	sftp   *sftp.Client

	cancelDial context.CancelFunc
}

// NewSession returns a Disconnected session.
func NewSession(cfg ConnectionConfig, logger *clog.Logger) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	return &Session{cfg: cfg, logger: logging.Or(logger)}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect makes one attempt to log in to p as root. Unsupported key types
// fail with ErrInvalidKeyType before any socket is opened and leave the
// session Disconnected. Every network, protocol, authentication or host key
// failure returns ErrSSHConnection and closes the session. Close aborts an
// attempt in progress.
func (s *Session) Connect(ctx context.Context, p model.ProxyServer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr, config, err := s.beginConnect(p, cancel)
	if err != nil {
		return err
	}

	start := time.Now()
	client, err := sshDial(ctx, "tcp", addr, config)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelDial = nil
	if s.state != StateConnecting {
		if client != nil {
			_ = client.Close()
		}
		return fmt.Errorf("%w: session closed while connecting to %s", ErrNotConnected, addr)
	}
	if err != nil {
		s.state = StateClosed
		s.logger.Debug("ssh connect failed", "server", addr, "elapsed", time.Since(start), "err", err)
		return ClassifyConnectionError(addr, err)
	}
	s.client = client
	s.state = StateConnected
	s.logger.Debug("ssh connected", "server", addr, "elapsed", time.Since(start))
	return nil
}

// beginConnect validates p, pins its host key and moves to Connecting.
func (s *Session) beginConnect(p model.ProxyServer, cancel context.CancelFunc) (string, *ssh.ClientConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisconnected {
		return "", nil, fmt.Errorf("connect in state %s", s.state)
	}

	if !sshkey.Supported(p.HostPublicKeyType) {
		return "", nil, fmt.Errorf("%w: host key type %q for %s", ErrInvalidKeyType, p.HostPublicKeyType, p.Address)
	}
	if !sshkey.Supported(p.SSHPrivateKeyType) {
		return "", nil, fmt.Errorf("%w: private key type %q for %s", ErrInvalidKeyType, p.SSHPrivateKeyType, p.Address)
	}
	hostKey, err := sshkey.ParsePublicKey(p.HostPublicKeyType, p.HostPublicKey)
	if err != nil {
		return "", nil, fmt.Errorf("host key for %s: %w", p.Address, err)
	}
	signer, err := sshkey.ParsePrivateKey(p.SSHPrivateKeyType, p.SSHPrivateKey)
	if err != nil {
		return "", nil, fmt.Errorf("private key for %s: %w", p.Address, err)
	}
	hostKeyAlgos, err := sshkey.HostKeyAlgorithms(p.HostPublicKeyType)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidKeyType, err)
	}

	addr := CanonicalizeHostPort(p.Address)
	// Drop whatever was pinned before and trust exactly this server's key.
	s.pinned = &pinnedHost{host: knownhosts.Normalize(addr), key: hostKey}
	s.addr = addr
	s.state = StateConnecting
	s.cancelDial = cancel

	return addr, &ssh.ClientConfig{
		User:              RemoteUser,
		Auth:              []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback:   s.pinned.check,
		HostKeyAlgorithms: hostKeyAlgos,
		Timeout:           s.cfg.ConnectTimeout,
	}, nil
}

// Exec runs command on the server, feeding stdin when non-nil. A non-zero
// exit status is reported in the result, not as an error.
func (s *Session) Exec(ctx context.Context, command string, stdin io.Reader) (ExecResult, error) {
	client, err := s.connectedClient()
	if err != nil {
		return ExecResult{}, err
	}
	sess, err := client.NewSession()
	if err != nil {
		return ExecResult{}, fmt.Errorf("open ssh session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if stdin != nil {
		sess.Stdin = stdin
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = sess.Close()
		return ExecResult{}, fmt.Errorf("exec on %s: %w", s.addr, ctx.Err())
	}

	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitStatus = exitErr.ExitStatus()
			return res, nil
		}
		return res, fmt.Errorf("exec on %s: %w", s.addr, runErr)
	}
	return res, nil
}

// ReadFile fetches a remote file over SFTP.
func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	client, err := s.sftpClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		f, err := client.Open(path)
		if err != nil {
			done <- result{err: fmt.Errorf("failed to open remote file %s: %w", path, err)}
			return
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(f)
		if err != nil {
			err = fmt.Errorf("failed to read remote file %s: %w", path, err)
		}
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("read %s on %s: %w", path, s.addr, ctx.Err())
	}
}

// WriteFileAtomic replaces dst with data. The content is uploaded over SFTP
// to a hidden file in the same directory, set to 0600 and then moved over dst
// by a remote "mv -f", whose result is returned. The upload is bounded by
// CommandTimeout and dst is never touched unless the upload completed. The
// staged file is removed whenever the move does not report success.
func (s *Session) WriteFileAtomic(ctx context.Context, dst string, data []byte) (ExecResult, error) {
	client, err := s.sftpClient()
	if err != nil {
		return ExecResult{}, err
	}
	tmp := path.Join(path.Dir(dst), "."+path.Base(dst)+".ufo."+strconv.FormatInt(time.Now().UnixNano(), 10))

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- uploadFile(client, tmp, data) }()
	select {
	case err := <-done:
		if err != nil {
			return ExecResult{}, err
		}
	case <-uploadCtx.Done():
		return ExecResult{}, fmt.Errorf("upload %s on %s: %w", tmp, s.addr, uploadCtx.Err())
	}

	res, err := s.Exec(ctx, "mv -f "+shellQuote(tmp)+" "+shellQuote(dst), nil)
	if err != nil || res.ExitStatus != 0 || res.Stderr != "" {
		if rmErr := client.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Debug("removing staged file", "server", s.addr, "path", tmp, "err", rmErr)
		}
	}
	return res, err
}

// uploadFile writes data to a fresh remote file and restricts it to 0600.
// A partially written file is removed.
func uploadFile(client *sftp.Client, name string, data []byte) error {
	f, err := client.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = client.Remove(name)
		return fmt.Errorf("failed to write remote file %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = client.Remove(name)
		return fmt.Errorf("failed to close remote file %s: %w", name, err)
	}
	if err := client.Chmod(name, 0o600); err != nil {
		_ = client.Remove(name)
		return fmt.Errorf("failed to chmod remote file %s: %w", name, err)
	}
	return nil
}

// Close tears the connection down. It is valid in every state and idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	var err error
	if s.client != nil {
		err = s.client.Close()
		s.client = nil
	}
	if s.sftp != nil {
		// The transport is closed; this only reaps the subsystem.
		_ = s.sftp.Close()
		s.sftp = nil
	}
	s.pinned = nil
	s.state = StateClosed
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Session) connectedClient() (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return nil, fmt.Errorf("%w (state %s)", ErrNotConnected, s.state)
	}
	return s.client, nil
}

func (s *Session) sftpClient() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return nil, fmt.Errorf("%w (state %s)", ErrNotConnected, s.state)
	}
	if s.sftp == nil {
		c, err := sftp.NewClient(s.client)
		if err != nil {
			return nil, fmt.Errorf("failed to create sftp client: %w", err)
		}
		s.sftp = c
	}
	return s.sftp, nil
}
