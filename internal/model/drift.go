// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "time"

// DriftReport compares the authorized_keys file found on a proxy server with
// the payload UfO would push right now.
type DriftReport struct {
	Server    string
	CheckedAt time.Time
	InSync    bool
	// Missing lists emails that should be present on the server but are not.
	Missing []string
	// Unexpected lists comments found on the server that UfO would not push,
	// including revoked users that have not been distributed yet.
	Unexpected []string
}
