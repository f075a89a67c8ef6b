// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/toeirei/ufo/internal/model"
	"golang.org/x/crypto/ssh"
)

// Audit compares the authorized_keys file on one server with the payload
// the next distribution would write. Keys are compared by type and data;
// comments and ordering are ignored.
func (d *Distributor) Audit(ctx context.Context, address string) (*model.DriftReport, error) {
	p, err := d.store.GetProxyServer(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("proxy server %s: %w", address, err)
	}
	payload, err := d.Payload(ctx)
	if err != nil {
		return nil, err
	}

	sess := NewSession(d.conn, d.logger)
	defer func() { _ = sess.Close() }()
	if err := sess.Connect(ctx, *p); err != nil {
		return nil, err
	}
	remote, err := sess.ReadFile(ctx, d.path)
	if err != nil {
		return nil, err
	}

	report := diffAuthorizedKeys(payload, string(remote))
	report.Server = p.Address
	report.CheckedAt = time.Now().UTC()
	d.logger.Info("audit finished", "server", p.Address, "in_sync", report.InSync,
		"missing", len(report.Missing), "unexpected", len(report.Unexpected))
	return report, nil
}

// diffAuthorizedKeys reports keys present in want but not in got (Missing)
// and the reverse (Unexpected), each as the original line.
func diffAuthorizedKeys(want, got string) *model.DriftReport {
	wantKeys := authorizedKeySet(want)
	gotKeys := authorizedKeySet(got)

	r := &model.DriftReport{}
	for k, line := range wantKeys {
		if _, ok := gotKeys[k]; !ok {
			r.Missing = append(r.Missing, line)
		}
	}
	for k, line := range gotKeys {
		if _, ok := wantKeys[k]; !ok {
			r.Unexpected = append(r.Unexpected, line)
		}
	}
	sort.Strings(r.Missing)
	sort.Strings(r.Unexpected)
	r.InSync = len(r.Missing) == 0 && len(r.Unexpected) == 0
	return r
}

// authorizedKeySet maps "type base64" to the full line. Blank lines,
// comments and lines that do not parse are skipped; options and comments on
// a key line do not affect its identity.
func authorizedKeySet(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		out[pub.Type()+" "+base64.StdEncoding.EncodeToString(pub.Marshal())] = line
	}
	return out
}
