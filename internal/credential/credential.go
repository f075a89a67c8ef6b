// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package credential generates and rotates per-user key pairs and builds
// invite codes. It performs no I/O; callers persist the results.
package credential // import "github.com/toeirei/ufo/internal/credential"

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	cryptossh "github.com/toeirei/ufo/internal/crypto/ssh"
	"github.com/toeirei/ufo/internal/model"
	"github.com/toeirei/ufo/internal/security"
	"github.com/toeirei/ufo/internal/sshkey"
)

// InviteNetworkName is the network label embedded in every invite code.
const InviteNetworkName = "Cloud"

var (
	// generateRSA is swapped in tests to avoid slow key generation.
	generateRSA = cryptossh.GenerateRSAKeyPair
	// pickIndex selects a server uniformly at random in [0, n).
	pickIndex = rand.IntN
)

// GenerateKeyPair returns a fresh RSA-2048 key pair. Every user gets the same
// algorithm and size regardless of what the proxy servers use.
func GenerateKeyPair() (model.KeyPair, error) {
	priv, pub, err := generateRSA(cryptossh.UserKeyBits)
	if err != nil {
		return model.KeyPair{}, err
	}
	return model.KeyPair{
		Algorithm:  sshkey.RSA,
		PrivateKey: security.Secret(priv),
		PublicKey:  pub,
	}, nil
}

// NewUser builds a User with a freshly generated key pair. An empty domain
// marks a manually added user that reconciliation never touches.
func NewUser(email, name, domain string) (*model.User, error) {
	e, err := model.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate key pair for %s: %w", e, err)
	}
	return &model.User{
		Email:   e,
		Name:    strings.TrimSpace(name),
		Domain:  strings.ToLower(strings.TrimSpace(domain)),
		KeyPair: kp,
	}, nil
}

// RegenerateKeyPair replaces both halves of u's key pair. On failure u is
// left untouched.
func RegenerateKeyPair(u *model.User) error {
	kp, err := GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("regenerate key pair for %s: %w", u.Email, err)
	}
	old := u.KeyPair.PrivateKey
	u.KeyPair = kp
	old.Zero()
	return nil
}

type inviteNetworkData struct {
	Host string `json:"host"`
	User string `json:"user"`
	Pass string `json:"pass"`
}

type invite struct {
	NetworkName string            `json:"networkName"`
	NetworkData inviteNetworkData `json:"networkData"`
}

// BuildInviteCode picks one proxy server uniformly at random and encodes the
// client settings for u as URL-safe base64 JSON (padding kept). It returns ""
// with a nil error when no server is registered.
func BuildInviteCode(u model.User, servers []model.ProxyServer) (string, error) {
	if len(servers) == 0 {
		return "", nil
	}
	server := servers[pickIndex(len(servers))]

	pass, err := u.PrivateKeyText()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(invite{
		NetworkName: InviteNetworkName,
		NetworkData: inviteNetworkData{Host: server.Address, User: u.Email, Pass: pass},
	})
	if err != nil {
		return "", fmt.Errorf("encode invite: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
