// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/toeirei/ufo/internal/sshkey"
)

var (
	// ErrKeyPairMismatch is returned when the public half of a key pair does
	// not belong to its private half.
	ErrKeyPairMismatch = errors.New("public key does not match private key")
	// ErrInvalidEmail is returned for an empty or malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// User is an end user who gets SSH access to every proxy server while their
// key is not revoked.
type User struct {
	ID    int64
	Email string
	Name  string
	// Domain is the directory domain the user was imported from. Empty means
	// the user was added by hand and is outside directory reconciliation.
	Domain  string
	KeyPair KeyPair

	IsKeyRevoked bool
	// DidCronRevoke marks the current revocation as applied by directory
	// reconciliation rather than by an administrator.
	DidCronRevoke bool
}

// NormalizeEmail lowercases and trims an address and performs a minimal
// shape check.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(e, "@")
	if at <= 0 || at == len(e)-1 || strings.ContainsAny(e, " \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return e, nil
}

// ManagedByDirectory reports whether reconciliation may touch this user.
func (u User) ManagedByDirectory() bool { return u.Domain != "" }

// ToggleRevoked is the administrator toggle. Any admin action clears the
// reconciliation marker.
func (u *User) ToggleRevoked() {
	u.IsKeyRevoked = !u.IsKeyRevoked
	u.DidCronRevoke = false
}

// SetRevoked is the administrator's explicit revoke or unrevoke.
func (u *User) SetRevoked(revoked bool) {
	u.IsKeyRevoked = revoked
	u.DidCronRevoke = false
}

// CronRevoke revokes the key on behalf of directory reconciliation.
func (u *User) CronRevoke() {
	u.IsKeyRevoked = true
	u.DidCronRevoke = true
}

// AuthorizedKeysLine renders the user's entry in the distributed
// authorized_keys payload: "<key-type> <base64> <email>\n".
func (u User) AuthorizedKeysLine() (string, error) {
	line, err := sshkey.FormatAuthorizedLine(u.KeyPair.Algorithm, u.KeyPair.PublicKey)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", u.Email, err)
	}
	return line + u.Email + "\n", nil
}

// PrivateKeyText renders the user's private key as a PEM file.
func (u User) PrivateKeyText() (string, error) {
	text, err := sshkey.FormatPrivateKeyFile(u.KeyPair.Algorithm, u.KeyPair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", u.Email, err)
	}
	return text, nil
}

func (u User) String() string {
	return fmt.Sprintf("%s (%s)", u.Email, u.Name)
}
