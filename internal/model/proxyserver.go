// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/toeirei/ufo/internal/security"
	"github.com/toeirei/ufo/internal/sshkey"
)

// ErrInvalidAddress is returned for an empty proxy server address.
var ErrInvalidAddress = errors.New("invalid proxy server address")

// ProxyServer is one fleet member. The management system logs in as root
// with SSHPrivateKey and only trusts the host key stored in HostPublicKey.
type ProxyServer struct {
	ID      int64
	Address string // host or host:port
	Name    string

	SSHPrivateKeyType sshkey.Algorithm
	SSHPrivateKey     security.Secret // DER

	HostPublicKeyType sshkey.Algorithm
	HostPublicKey     []byte // SSH wire format
}

// NewProxyServer builds a ProxyServer from the raw contents of a private key
// file and a public host key file (bare or known_hosts style). Unsupported or
// malformed keys are rejected here so an unusable server is never stored.
func NewProxyServer(address, name, privateKeyText, hostKeyText string) (*ProxyServer, error) {
	p := &ProxyServer{Name: strings.TrimSpace(name)}
	if err := p.SetAddress(address); err != nil {
		return nil, err
	}
	if err := p.SetPrivateKeyFile(privateKeyText); err != nil {
		return nil, err
	}
	if err := p.SetHostKeyFile(hostKeyText); err != nil {
		return nil, err
	}
	return p, nil
}

// SetAddress validates and stores the server address.
func (p *ProxyServer) SetAddress(address string) error {
	a := strings.TrimSpace(address)
	if a == "" || strings.ContainsAny(a, " \t\r\n/") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	p.Address = a
	return nil
}

// SetPrivateKeyFile parses the contents of a private key file into the typed
// private key fields.
func (p *ProxyServer) SetPrivateKeyFile(text string) error {
	tag, raw, err := sshkey.ParsePrivateKeyFile(text)
	if err != nil {
		return fmt.Errorf("proxy server private key: %w", err)
	}
	p.SSHPrivateKeyType, p.SSHPrivateKey = tag, security.FromBytes(raw)
	return nil
}

// SetHostKeyFile parses a host public key line into the typed host key fields.
func (p *ProxyServer) SetHostKeyFile(text string) error {
	tag, raw, err := sshkey.ParsePublicKeyFile(text)
	if err != nil {
		return fmt.Errorf("proxy server host key: %w", err)
	}
	p.HostPublicKeyType, p.HostPublicKey = tag, raw
	return nil
}

// AuthorizedKeysLine renders the host public key as "<key-type> <base64> ".
func (p ProxyServer) AuthorizedKeysLine() (string, error) {
	return sshkey.FormatAuthorizedLine(p.HostPublicKeyType, p.HostPublicKey)
}

// PrivateKeyText renders the root login key as a PEM file.
func (p ProxyServer) PrivateKeyText() (string, error) {
	return sshkey.FormatPrivateKeyFile(p.SSHPrivateKeyType, p.SSHPrivateKey)
}

func (p ProxyServer) String() string {
	if p.Name == "" {
		return p.Address
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.Address)
}
