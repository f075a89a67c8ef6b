// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package scheduler triggers the periodic distribution and user sync. A task
// never overlaps with its own previous run.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"github.com/toeirei/ufo/internal/logging"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Every renders an interval as a cron descriptor.
func Every(d time.Duration) string {
	return "@every " + d.String()
}

// Scheduler runs named tasks on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *clog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a stopped scheduler.
func New(logger *clog.Logger) *Scheduler {
	logger = logging.Or(logger)
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Add registers fn under spec, a five-field cron line or a descriptor such
// as "@every 15m". A run that is still going when the next one is due causes
// that next run to be skipped.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context)) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		start := time.Now()
		s.logger.Debug("scheduled task started", "task", name)
		fn(ctx)
		s.logger.Debug("scheduled task finished", "task", name, "elapsed", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Info("task scheduled", "task", name, "schedule", spec)
	return nil
}

// Start begins running tasks. Tasks get a context that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop prevents new runs and waits for running tasks until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	select {
	case <-done.Done():
		if cancel != nil {
			cancel()
		}
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
}

// cronLogger forwards cron's own messages to charmbracelet/log.
type cronLogger struct {
	l *clog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
