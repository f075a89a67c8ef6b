// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// package ssh provides cryptographic helpers for SSH key operations.
// This file contains logic for generating new SSH key pairs.
package ssh // import "github.com/toeirei/ufo/internal/crypto/ssh"

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// UserKeyBits is the fixed RSA modulus size for end-user key pairs.
const UserKeyBits = 2048

// GenerateRSAKeyPair creates a new RSA key pair and returns the private key
// as PKCS#1 DER and the public key in SSH wire format.
func GenerateRSAKeyPair(bits int) (privateDER []byte, publicWire []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate rsa key pair: %w", err)
	}

	pub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return x509.MarshalPKCS1PrivateKey(key), pub.Marshal(), nil
}
