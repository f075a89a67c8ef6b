// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package ssh

import (
	"bytes"
	"crypto/x509"
	"testing"

	xssh "golang.org/x/crypto/ssh"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	priv, pub, err := GenerateRSAKeyPair(UserKeyBits)
	if err != nil {
		t.Fatalf("GenerateRSAKeyPair failed: %v", err)
	}

	key, err := x509.ParsePKCS1PrivateKey(priv)
	if err != nil {
		t.Fatalf("ParsePKCS1PrivateKey failed: %v", err)
	}
	if key.N.BitLen() != UserKeyBits {
		t.Errorf("modulus is %d bits, want %d", key.N.BitLen(), UserKeyBits)
	}

	pk, err := xssh.ParsePublicKey(pub)
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if pk.Type() != xssh.KeyAlgoRSA {
		t.Errorf("unexpected key type %q", pk.Type())
	}

	// Public half must belong to the private half.
	want, _ := xssh.NewPublicKey(&key.PublicKey)
	if !bytes.Equal(want.Marshal(), pub) {
		t.Errorf("public key does not match private key")
	}
}
