// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"crypto/dsa" //nolint:staticcheck // ssh-dss keys are still accepted for proxy servers
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/toeirei/ufo/internal/model"
	"github.com/toeirei/ufo/internal/security"
	"github.com/toeirei/ufo/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

// fakeProxy is an in-process SSH server standing in for one proxy. It
// accepts only the root login key it was created with, serves sftp on the
// local file system and understands "mv -f '<src>' '<dst>'".
type fakeProxy struct {
	addr    string
	server  model.ProxyServer
	accepts atomic.Int32

	mu          sync.Mutex
	commands    []string
	users       []string
	moveFailure *moveFailure
	uploadDelay time.Duration
}

// moveFailure is what a failing mv reports instead of renaming.
type moveFailure struct {
	stderr string
	code   uint32
}

func newTestECDSAKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey: %v", err)
	}
	return k
}

// newTestKey returns a fresh private key of the given algorithm.
func newTestKey(t *testing.T, tag sshkey.Algorithm) any {
	t.Helper()
	switch tag {
	case sshkey.RSA:
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("rsa.GenerateKey: %v", err)
		}
		return k
	case sshkey.DSS:
		var k dsa.PrivateKey
		if err := dsa.GenerateParameters(&k.Parameters, rand.Reader, dsa.L1024N160); err != nil {
			t.Fatalf("dsa.GenerateParameters: %v", err)
		}
		if err := dsa.GenerateKey(&k, rand.Reader); err != nil {
			t.Fatalf("dsa.GenerateKey: %v", err)
		}
		return &k
	case sshkey.ECDSA:
		return newTestECDSAKey(t)
	}
	t.Fatalf("no generator for %s", tag)
	return nil
}

// newFakeProxy starts a server with ECDSA host and login keys.
func newFakeProxy(t *testing.T) *fakeProxy {
	t.Helper()
	return newFakeProxyWithKeys(t, newTestECDSAKey(t), newTestECDSAKey(t))
}

// newFakeProxyWithKeys starts a server presenting hostKey and accepting
// clientKey. It returns it with a ProxyServer record carrying the login key
// and the pinned host key.
func newFakeProxyWithKeys(t *testing.T, hostKey, clientKey any) *fakeProxy {
	t.Helper()

	hostSigner, err := ssh.NewSignerFromKey(hostKey)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}
	hostTag, _, err := sshkey.MarshalPrivateKey(hostKey)
	if err != nil {
		t.Fatalf("MarshalPrivateKey(host): %v", err)
	}
	clientTag, clientDER, err := sshkey.MarshalPrivateKey(clientKey)
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	clientSigner, err := ssh.NewSignerFromKey(clientKey)
	if err != nil {
		t.Fatalf("client signer: %v", err)
	}
	clientPub := clientSigner.PublicKey()

	fp := &fakeProxy{}
	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			fp.mu.Lock()
			fp.users = append(fp.users, conn.User())
			fp.mu.Unlock()
			if ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(clientPub) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var connsMu sync.Mutex
	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := listener.Accept()
			if err != nil {
				return
			}
			fp.accepts.Add(1)
			connsMu.Lock()
			conns = append(conns, c)
			connsMu.Unlock()
			go fp.handleConn(c, config)
		}
	}()
	t.Cleanup(func() {
		_ = listener.Close()
		connsMu.Lock()
		for _, c := range conns {
			_ = c.Close()
		}
		connsMu.Unlock()
		<-done
	})

	fp.addr = listener.Addr().String()
	fp.server = model.ProxyServer{
		Address:           fp.addr,
		Name:              "test proxy",
		SSHPrivateKeyType: clientTag,
		SSHPrivateKey:     security.FromBytes(clientDER),
		HostPublicKeyType: hostTag,
		HostPublicKey:     hostSigner.PublicKey().Marshal(),
	}
	return fp
}

// failMoves makes every mv report stderr and code without renaming.
func (fp *fakeProxy) failMoves(stderr string, code uint32) {
	fp.mu.Lock()
	fp.moveFailure = &moveFailure{stderr: stderr, code: code}
	fp.mu.Unlock()
}

// slowUploads delays every read of the sftp server by d.
func (fp *fakeProxy) slowUploads(d time.Duration) {
	fp.mu.Lock()
	fp.uploadDelay = d
	fp.mu.Unlock()
}

func (fp *fakeProxy) recordedCommands() []string {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]string(nil), fp.commands...)
}

func (fp *fakeProxy) recordedUsers() []string {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]string(nil), fp.users...)
}

func (fp *fakeProxy) handleConn(netConn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		_ = netConn.Close()
		return
	}
	defer func() { _ = sshConn.Close() }()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go fp.handleSession(ch, requests)
	}
}

func (fp *fakeProxy) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()
	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			fp.mu.Lock()
			fp.commands = append(fp.commands, payload.Command)
			fp.mu.Unlock()
			sendExitStatus(ch, fp.exec(ch, payload.Command))
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			fp.mu.Lock()
			var rw io.ReadWriteCloser = ch
			if fp.uploadDelay > 0 {
				rw = slowChannel{Channel: ch, delay: fp.uploadDelay}
			}
			fp.mu.Unlock()
			srv, err := sftp.NewServer(rw)
			if err != nil {
				return
			}
			_ = srv.Serve()
			_ = srv.Close()
			return
		default:
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
		}
	}
}

func (fp *fakeProxy) exec(ch ssh.Channel, cmd string) uint32 {
	args := splitShellArgs(cmd)
	if len(args) != 4 || args[0] != "mv" || args[1] != "-f" {
		_, _ = fmt.Fprintf(ch.Stderr(), "unknown command: %s", cmd)
		return 127
	}
	fp.mu.Lock()
	failure := fp.moveFailure
	fp.mu.Unlock()
	if failure != nil {
		_, _ = io.WriteString(ch.Stderr(), failure.stderr)
		return failure.code
	}
	if err := os.Rename(args[2], args[3]); err != nil {
		_, _ = fmt.Fprintf(ch.Stderr(), "mv: %v", err)
		return 1
	}
	return 0
}

// slowChannel sleeps before every read.
type slowChannel struct {
	ssh.Channel
	delay time.Duration
}

func (c slowChannel) Read(p []byte) (int, error) {
	time.Sleep(c.delay)
	return c.Channel.Read(p)
}

func sendExitStatus(ch ssh.Channel, code uint32) {
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{code}))
}

// splitShellArgs splits a command line made of bare words and shellQuote
// arguments.
func splitShellArgs(cmd string) []string {
	var args []string
	var cur strings.Builder
	inWord, quoted := false, false
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case quoted && c == '\'':
			quoted = false
		case quoted:
			cur.WriteByte(c)
		case c == '\'':
			quoted, inWord = true, true
		case c == '\\' && i+1 < len(cmd):
			i++
			cur.WriteByte(cmd[i])
			inWord = true
		case c == ' ':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args
}
