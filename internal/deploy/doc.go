// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package deploy pushes the aggregate authorized_keys file to every proxy
// server.
//
// Session is the transport: one outbound SSH connection to one proxy server,
// authenticated as root with the server's stored private key and pinned to
// the server's stored host key. There is no agent, no on-disk key discovery
// and no known_hosts fallback.
//
// Distributor builds the payload from all non-revoked users and fans out one
// independent job per proxy server. A failure on one server is logged and
// counted, never propagated to the others; the next cycle is the retry.
package deploy
