// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"errors"
	"net"
	"strings"
)

// DefaultSSHPort is used when a proxy server address carries no port.
const DefaultSSHPort = "22"

var errEmptyHost = errors.New("empty host")

// ParseHostPort splits an address into host and port. The port is empty when
// the address has none. Bracketed and bare IPv6 literals are accepted, as is
// a leading "user@" which is dropped.
func ParseHostPort(address string) (host, port string, err error) {
	a := strings.TrimSpace(address)
	if i := strings.LastIndex(a, "@"); i >= 0 {
		a = a[i+1:]
	}
	if h, p, splitErr := net.SplitHostPort(a); splitErr == nil {
		host, port = h, p
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(a, "["), "]")
	}
	if host == "" {
		return "", "", errEmptyHost
	}
	return host, port, nil
}

// JoinHostPort is net.JoinHostPort with a fallback port.
func JoinHostPort(host, port, defaultPort string) string {
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port)
}

// CanonicalizeHostPort returns address as host:port, adding port 22 when
// absent. Unparseable input is returned unchanged.
func CanonicalizeHostPort(address string) string {
	h, p, err := ParseHostPort(address)
	if err != nil {
		return address
	}
	return JoinHostPort(h, p, DefaultSSHPort)
}
