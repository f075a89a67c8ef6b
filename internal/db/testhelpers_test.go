// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"strings"
	"testing"

	cryptossh "github.com/toeirei/ufo/internal/crypto/ssh"
	"github.com/toeirei/ufo/internal/model"
	"github.com/toeirei/ufo/internal/security"
	"github.com/toeirei/ufo/internal/sshkey"
)

// newTestStore opens a private in-memory sqlite store for the calling test.
func newTestStore(t *testing.T) *BunStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := NewStoreFromDSN("sqlite", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testUser(t *testing.T, email, domain string) *model.User {
	t.Helper()
	priv, pub, err := cryptossh.GenerateRSAKeyPair(1024)
	if err != nil {
		t.Fatalf("GenerateRSAKeyPair: %v", err)
	}
	return &model.User{
		Email:  email,
		Name:   strings.Split(email, "@")[0],
		Domain: domain,
		KeyPair: model.KeyPair{
			Algorithm:  sshkey.RSA,
			PrivateKey: security.FromBytes(priv),
			PublicKey:  pub,
		},
	}
}

func testProxyServer(t *testing.T, address string) *model.ProxyServer {
	t.Helper()
	priv, pub, err := cryptossh.GenerateRSAKeyPair(1024)
	if err != nil {
		t.Fatalf("GenerateRSAKeyPair: %v", err)
	}
	return &model.ProxyServer{
		Address:           address,
		Name:              "proxy " + address,
		SSHPrivateKeyType: sshkey.RSA,
		SSHPrivateKey:     security.FromBytes(priv),
		HostPublicKeyType: sshkey.RSA,
		HostPublicKey:     pub,
	}
}
