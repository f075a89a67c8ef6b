// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKeyType is returned by Connect when the stored private key or
	// host key algorithm is not supported. It is raised before any network I/O.
	ErrInvalidKeyType = errors.New("invalid key type")
	// ErrSSHConnection covers every connect-time failure: socket errors,
	// protocol errors, authentication failures and host key mismatches.
	ErrSSHConnection = errors.New("ssh connection error")
	// ErrNotConnected is returned when Exec or ReadFile is called outside the
	// Connected state.
	ErrNotConnected = errors.New("session not connected")
)

// IsConnectionTimeoutError reports whether err looks like a timeout.
func IsConnectionTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded") || strings.Contains(s, "timed out")
}

// IsConnectionRefusedError reports whether err looks like an unreachable host.
func IsConnectionRefusedError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") || strings.Contains(s, "no route to host")
}

// IsAuthenticationError reports whether err looks like a rejected login.
func IsAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unable to authenticate") || strings.Contains(s, "authentication failed") || strings.Contains(s, "permission denied")
}

// IsHostKeyError reports whether err came from host key verification.
func IsHostKeyError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "host key mismatch") || strings.Contains(s, "host key not pinned") || strings.Contains(s, "host key verification failed")
}

// ClassifyConnectionError wraps err in ErrSSHConnection with a short cause
// for the logs. Callers can only test for ErrSSHConnection.
func ClassifyConnectionError(host string, err error) error {
	if err == nil {
		return nil
	}
	var reason string
	switch {
	case IsHostKeyError(err):
		reason = "host key verification failed for " + host
	case IsAuthenticationError(err):
		reason = "authentication failed for " + host
	case IsConnectionRefusedError(err):
		reason = "connection to " + host + " refused"
	case IsConnectionTimeoutError(err):
		reason = "connection to " + host + " timed out"
	default:
		reason = "failed to connect to " + host
	}
	return fmt.Errorf("%w: %s: %v", ErrSSHConnection, reason, err)
}
