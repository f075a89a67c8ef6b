// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
)

func TestEvery(t *testing.T) {
	if got := Every(15 * time.Minute); got != "@every 15m0s" {
		t.Fatalf("Every = %q", got)
	}
	if _, err := parser.Parse(Every(time.Hour)); err != nil {
		t.Fatalf("descriptor does not parse: %v", err)
	}
}

func TestAdd_RejectsInvalidSpec(t *testing.T) {
	s := New(nil)
	for _, spec := range []string{"", "every 5m", "* * *", "@every nope"} {
		if err := s.Add("bad", spec, func(context.Context) {}); err == nil {
			t.Errorf("Add(%q): expected error", spec)
		}
	}
	if err := s.Add("ok", "*/5 * * * *", func(context.Context) {}); err != nil {
		t.Errorf("standard spec rejected: %v", err)
	}
}

func TestScheduler_RunsAndSkipsOverlap(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	release := make(chan struct{})
	if err := s.Add("slow", Every(time.Second), func(ctx context.Context) {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Two more ticks pass while the first run is blocked.
	time.Sleep(2500 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Fatalf("task ran %d times while the first run was active, want 1", n)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_StopCancelsTaskContext(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	var once atomic.Bool
	if err := s.Add("blocking", Every(time.Second), func(ctx context.Context) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
	}); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("task never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop err = %v, want deadline exceeded", err)
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := clog.New(&buf)
	l.SetLevel(clog.DebugLevel)
	cl := cronLogger{l}
	cl.Info("wake", "now", "x")
	cl.Error(errors.New("boom"), "panic", "job", "y")
	out := buf.String()
	if !strings.Contains(out, "wake") || !strings.Contains(out, "boom") || !strings.Contains(out, "job=y") {
		t.Fatalf("log output = %q", out)
	}
}
