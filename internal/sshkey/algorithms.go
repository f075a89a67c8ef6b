// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"crypto/dsa" //nolint:staticcheck // ssh-dss keys are still accepted for proxy servers
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Algorithm is the persisted tag naming a key algorithm. It is stored next to
// the raw key bytes so the algorithm never has to be guessed from binary data.
type Algorithm string

const (
	RSA   Algorithm = "RSA"
	DSS   Algorithm = "DSS"
	ECDSA Algorithm = "ECDSA"
)

var (
	// ErrUnsupportedAlgorithm is returned for algorithm tags outside the registry.
	ErrUnsupportedAlgorithm = errors.New("unsupported key algorithm")
	// ErrMalformedKeyData is returned when key bytes do not decode under their algorithm.
	ErrMalformedKeyData = errors.New("malformed key data")
	// ErrUnrecognizedKeyFile is returned when no supported private key header is found.
	ErrUnrecognizedKeyFile = errors.New("unrecognized private key file")

	errWrongKeyType = errors.New("key does not belong to this algorithm")
)

// algorithmSpec bundles everything the codec needs to know about one algorithm.
type algorithmSpec struct {
	tag Algorithm
	// pemType is the PEM block type, e.g. "RSA PRIVATE KEY".
	pemType string
	// keyType is the SSH wire name of the public key, e.g. "ssh-rsa".
	keyType string
	// hostKeyAlgorithms lists the signature algorithms acceptable for a pinned
	// host key of this type, most preferred first.
	hostKeyAlgorithms []string

	parsePrivate   func(der []byte) (any, error)
	marshalPrivate func(key any) ([]byte, error)
}

// registry is consulted for every tag-dependent operation. Order matters for
// header detection: it is the order in which file headers are probed.
var registry = []algorithmSpec{
	{
		tag:     RSA,
		pemType: "RSA PRIVATE KEY",
		keyType: ssh.KeyAlgoRSA,
		hostKeyAlgorithms: []string{
			ssh.KeyAlgoRSASHA512,
			ssh.KeyAlgoRSASHA256,
			ssh.KeyAlgoRSA,
		},
		parsePrivate: func(der []byte) (any, error) {
			return x509.ParsePKCS1PrivateKey(der)
		},
		marshalPrivate: func(key any) ([]byte, error) {
			k, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, errWrongKeyType
			}
			return x509.MarshalPKCS1PrivateKey(k), nil
		},
	},
	{
		tag:               DSS,
		pemType:           "DSA PRIVATE KEY",
		keyType:           "ssh-dss",
		hostKeyAlgorithms: []string{"ssh-dss"},
		parsePrivate: func(der []byte) (any, error) {
			return ssh.ParseDSAPrivateKey(der)
		},
		marshalPrivate: func(key any) ([]byte, error) {
			k, ok := key.(*dsa.PrivateKey)
			if !ok {
				return nil, errWrongKeyType
			}
			// OpenSSL "DSA PRIVATE KEY" layout.
			return asn1.Marshal(struct {
				Version int
				P, Q, G *big.Int
				Pub     *big.Int
				Priv    *big.Int
			}{0, k.P, k.Q, k.G, k.Y, k.X})
		},
	},
	{
		tag:               ECDSA,
		pemType:           "EC PRIVATE KEY",
		keyType:           ssh.KeyAlgoECDSA256,
		hostKeyAlgorithms: []string{ssh.KeyAlgoECDSA256},
		parsePrivate: func(der []byte) (any, error) {
			k, err := x509.ParseECPrivateKey(der)
			if err != nil {
				return nil, err
			}
			if k.Curve != elliptic.P256() {
				return nil, fmt.Errorf("curve %s is not P-256", k.Curve.Params().Name)
			}
			return k, nil
		},
		marshalPrivate: func(key any) ([]byte, error) {
			k, ok := key.(*ecdsa.PrivateKey)
			if !ok || k.Curve != elliptic.P256() {
				return nil, errWrongKeyType
			}
			return x509.MarshalECPrivateKey(k)
		},
	},
}

func lookup(tag Algorithm) (*algorithmSpec, error) {
	for i := range registry {
		if registry[i].tag == tag {
			return &registry[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(tag))
}

func lookupKeyType(keyType string) (*algorithmSpec, error) {
	for i := range registry {
		if registry[i].keyType == keyType {
			return &registry[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, keyType)
}

// ParseAlgorithm validates a stored algorithm tag. Matching is case-insensitive
// so tags written by hand ("rsa", "ecdsa") are accepted.
func ParseAlgorithm(tag string) (Algorithm, error) {
	spec, err := lookup(Algorithm(strings.ToUpper(strings.TrimSpace(tag))))
	if err != nil {
		return "", err
	}
	return spec.tag, nil
}

// Supported reports whether tag is one of the registered algorithms.
func Supported(tag Algorithm) bool {
	_, err := lookup(tag)
	return err == nil
}

// Algorithms returns the registered algorithm tags in probe order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(registry))
	for _, s := range registry {
		out = append(out, s.tag)
	}
	return out
}

// KeyType returns the SSH wire name for tag ("ssh-rsa", "ssh-dss", ...).
func KeyType(tag Algorithm) (string, error) {
	spec, err := lookup(tag)
	if err != nil {
		return "", err
	}
	return spec.keyType, nil
}

// HostKeyAlgorithms returns the host key signature algorithms to offer when
// the server's host key is pinned to a key of type tag.
func HostKeyAlgorithms(tag Algorithm) ([]string, error) {
	spec, err := lookup(tag)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), spec.hostKeyAlgorithms...), nil
}
