// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey converts between persisted key material (an algorithm tag
// plus raw bytes) and the forms the rest of UfO needs: ssh.Signer values for
// authentication, PEM private key files, and authorized_keys lines.
//
// Private keys are stored as DER (PKCS#1 for RSA, the OpenSSL DSA layout for
// DSS, SEC1 for ECDSA P-256). Public keys are stored in SSH wire format.
// Every tag-dependent branch goes through the algorithm registry.
package sshkey
