// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "time"

// SnapshotSchemaVersion is bumped whenever the export layout changes.
const SnapshotSchemaVersion = 1

// Snapshot is the exported state of the store. Private keys marshal as
// redacted placeholders, so a snapshot is safe to hand around.
type Snapshot struct {
	SchemaVersion int           `json:"schema_version"`
	ExportedAt    time.Time     `json:"exported_at"`
	Config        Config        `json:"config"`
	Users         []User        `json:"users"`
	ProxyServers  []ProxyServer `json:"proxy_servers"`
}
