// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"github.com/toeirei/ufo/internal/security"
	"github.com/toeirei/ufo/internal/sshkey"
)

// KeyPair is the value type owned by exactly one User. Both halves share one
// algorithm tag and are always replaced together.
type KeyPair struct {
	Algorithm  sshkey.Algorithm
	PrivateKey security.Secret // DER
	PublicKey  []byte          // SSH wire format
}

// IsZero reports whether no key material is set.
func (k KeyPair) IsZero() bool {
	return k.Algorithm == "" && len(k.PrivateKey) == 0 && len(k.PublicKey) == 0
}

// Validate checks that both halves decode under the algorithm tag and that
// the public half belongs to the private half.
func (k KeyPair) Validate() error {
	signer, err := sshkey.ParsePrivateKey(k.Algorithm, k.PrivateKey)
	if err != nil {
		return err
	}
	pub, err := sshkey.ParsePublicKey(k.Algorithm, k.PublicKey)
	if err != nil {
		return err
	}
	if string(signer.PublicKey().Marshal()) != string(pub.Marshal()) {
		return ErrKeyPairMismatch
	}
	return nil
}
