// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package security holds small helpers for handling private key material.
package security

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
)

const redacted = "[SECRET]"

// Secret holds private key bytes. It stores and scans as raw bytes but never
// renders its contents through fmt, JSON or text marshaling, so a User or
// ProxyServer can be logged without leaking credentials.
type Secret []byte

func (s Secret) String() string { return redacted }

// Format keeps %v, %+v, %#v and %s redacted.
func (s Secret) Format(f fmt.State, _ rune) { _, _ = io.WriteString(f, redacted) }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Bytes returns a copy of the secret.
func (s Secret) Bytes() []byte {
	out := make([]byte, len(s))
	copy(out, s)
	return out
}

// Zero overwrites the secret in place.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	for i := range *s {
		(*s)[i] = 0
	}
}

// Value implements driver.Valuer.
func (s Secret) Value() (driver.Value, error) { return []byte(s), nil }

// Scan implements sql.Scanner.
func (s *Secret) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = nil
	case []byte:
		*s = FromBytes(v)
	case string:
		*s = Secret(v)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
	return nil
}

// FromBytes copies in into a new Secret.
func FromBytes(in []byte) Secret {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return Secret(out)
}
