// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ParsePrivateKey decodes raw DER bytes stored under tag into a signer usable
// for SSH authentication.
func ParsePrivateKey(tag Algorithm, raw []byte) (ssh.Signer, error) {
	spec, err := lookup(tag)
	if err != nil {
		return nil, err
	}
	key, err := spec.parsePrivate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s private key: %v", ErrMalformedKeyData, tag, err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s private key: %v", ErrMalformedKeyData, tag, err)
	}
	return signer, nil
}

// ParsePrivateKeyFile detects the algorithm of a private key file from its
// PEM header ("BEGIN <TYPE> PRIVATE KEY") and returns the tag with the raw
// DER bytes. OpenSSH-format files ("BEGIN OPENSSH PRIVATE KEY") are decoded
// and re-encoded into the matching legacy form.
func ParsePrivateKeyFile(text string) (Algorithm, []byte, error) {
	for _, spec := range registry {
		if !strings.Contains(text, "BEGIN "+spec.pemType) {
			continue
		}
		rest := []byte(text)
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				return "", nil, fmt.Errorf("%w: no decodable %s block", ErrMalformedKeyData, spec.pemType)
			}
			if block.Type != spec.pemType {
				continue
			}
			if _, err := spec.parsePrivate(block.Bytes); err != nil {
				return "", nil, fmt.Errorf("%w: %s private key: %v", ErrMalformedKeyData, spec.tag, err)
			}
			return spec.tag, block.Bytes, nil
		}
	}

	if strings.Contains(text, "BEGIN OPENSSH PRIVATE KEY") {
		return parseOpenSSHPrivateKey([]byte(text))
	}
	return "", nil, ErrUnrecognizedKeyFile
}

func parseOpenSSHPrivateKey(data []byte) (Algorithm, []byte, error) {
	key, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return "", nil, fmt.Errorf("%w: encrypted private keys are not supported", ErrMalformedKeyData)
		}
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedKeyData, err)
	}
	for _, spec := range registry {
		der, err := spec.marshalPrivate(key)
		if errors.Is(err, errWrongKeyType) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedKeyData, err)
		}
		return spec.tag, der, nil
	}
	return "", nil, fmt.Errorf("%w: %T", ErrUnsupportedAlgorithm, key)
}

// ParsePublicKeyFile accepts either a bare "algorithm base64 comment" line or
// a known_hosts line with a leading host field and returns the tag with the
// SSH wire encoding of the key.
func ParsePublicKeyFile(text string) (Algorithm, []byte, error) {
	in := []byte(strings.TrimSpace(text))
	pub, _, _, _, err := ssh.ParseAuthorizedKey(in)
	if err != nil {
		var khErr error
		_, _, pub, _, _, khErr = ssh.ParseKnownHosts(in)
		if khErr != nil {
			return "", nil, fmt.Errorf("%w: public key: %v", ErrMalformedKeyData, err)
		}
	}
	spec, err := lookupKeyType(pub.Type())
	if err != nil {
		return "", nil, err
	}
	return spec.tag, pub.Marshal(), nil
}

// ParsePublicKey decodes wire-format public key bytes stored under tag.
func ParsePublicKey(tag Algorithm, raw []byte) (ssh.PublicKey, error) {
	spec, err := lookup(tag)
	if err != nil {
		return nil, err
	}
	pub, err := ssh.ParsePublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s public key: %v", ErrMalformedKeyData, tag, err)
	}
	if pub.Type() != spec.keyType {
		return nil, fmt.Errorf("%w: %s public key has type %s", ErrMalformedKeyData, tag, pub.Type())
	}
	return pub, nil
}

// FormatAuthorizedLine renders "<key-type> <base64> " for an authorized_keys
// or known_hosts entry. Callers append their own comment.
func FormatAuthorizedLine(tag Algorithm, raw []byte) (string, error) {
	pub, err := ParsePublicKey(tag, raw)
	if err != nil {
		return "", err
	}
	return pub.Type() + " " + base64.StdEncoding.EncodeToString(pub.Marshal()) + " ", nil
}

// FormatPrivateKeyFile renders raw DER bytes as a PEM private key file.
func FormatPrivateKeyFile(tag Algorithm, raw []byte) (string, error) {
	spec, err := lookup(tag)
	if err != nil {
		return "", err
	}
	if _, err := spec.parsePrivate(raw); err != nil {
		return "", fmt.Errorf("%w: %s private key: %v", ErrMalformedKeyData, tag, err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: spec.pemType, Bytes: raw})), nil
}

// MarshalPrivateKey converts a crypto private key into its tag and DER bytes.
func MarshalPrivateKey(key any) (Algorithm, []byte, error) {
	for _, spec := range registry {
		der, err := spec.marshalPrivate(key)
		if errors.Is(err, errWrongKeyType) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		return spec.tag, der, nil
	}
	return "", nil, fmt.Errorf("%w: %T", ErrUnsupportedAlgorithm, key)
}
