// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"bytes"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
)

func TestDebugf_WritesThroughL(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	defer func() { L = prev }()

	Debugf("hidden %s", "dbg")
	if buf.Len() != 0 {
		t.Fatalf("debug output at info level: %s", buf.String())
	}
	L.SetLevel(clog.DebugLevel)
	Debugf("hello %s %d", "dbg", 1)
	if !strings.Contains(buf.String(), "hello dbg 1") {
		t.Fatalf("missing formatted message; got: %s", buf.String())
	}
}

func TestSetup_Levels(t *testing.T) {
	prev := L
	defer func() { L = prev }()

	tests := []struct {
		level   string
		verbose bool
		want    clog.Level
	}{
		{"debug", false, clog.DebugLevel},
		{"WARN", false, clog.WarnLevel},
		{"error", false, clog.ErrorLevel},
		{"bogus", false, clog.InfoLevel},
		{"", false, clog.InfoLevel},
		{"error", true, clog.DebugLevel},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		Setup(&buf, tt.level, tt.verbose)
		if got := L.GetLevel(); got != tt.want {
			t.Errorf("Setup(%q, %v) level = %v, want %v", tt.level, tt.verbose, got, tt.want)
		}
	}
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	prev := L
	defer func() { L = prev }()

	var buf bytes.Buffer
	Setup(&buf, "warn", false)
	L.Info("quiet")
	L.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != L {
		t.Fatal("Or(nil) should return L")
	}
	l := clog.New(&bytes.Buffer{})
	if Or(l) != l {
		t.Fatal("Or(l) should return l")
	}
}
