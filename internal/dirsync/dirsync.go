// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package dirsync reconciles local users with the directory service. Only
// users whose domain equals the configured domain are ever touched, and a
// cycle that cannot read the directory changes nothing.
package dirsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/toeirei/ufo/internal/directory"
	"github.com/toeirei/ufo/internal/jobs"
	"github.com/toeirei/ufo/internal/logging"
	"github.com/toeirei/ufo/internal/metrics"
	"github.com/toeirei/ufo/internal/model"
)

// DefaultFetchTimeout bounds one directory fetch.
const DefaultFetchTimeout = 60 * time.Second

// Triggers name the directory condition that caused an action.
const (
	TriggerAbsent    = "absent"
	TriggerSuspended = "suspended"
)

// Cycle outcomes as reported to metrics.
const (
	cycleOK      = "ok"
	cycleAborted = "aborted"
	cyclePartial = "partial"
)

var (
	// ErrNoCredentials aborts a cycle when the directory cannot be reached
	// for lack of credentials.
	ErrNoCredentials = directory.ErrNoCredentials
	// ErrNoDomain aborts a cycle when no directory domain is configured.
	ErrNoDomain = errors.New("no directory domain configured")
	// ErrSyncRunning is returned when a cycle is requested while another
	// one has not finished.
	ErrSyncRunning = errors.New("user sync already running")
)

// Store is the part of the entity store reconciliation needs.
type Store interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	SaveUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id int64) error
	GetConfig(ctx context.Context) (model.Config, error)
}

// Connector returns a directory client for the current credentials. It
// returns an error wrapping ErrNoCredentials when none are configured.
type Connector func(ctx context.Context) (directory.Client, error)

// Enqueuer schedules background work. *jobs.Queue implements it.
type Enqueuer interface {
	Enqueue(name string, fn jobs.Func) (string, error)
}

// Options configures a Synchronizer.
type Options struct {
	FetchTimeout time.Duration
	Metrics      *metrics.Collector
	Logger       *clog.Logger
	// AfterChange runs once after a cycle that revoked or deleted a user.
	AfterChange func(ctx context.Context)
}

// Result summarizes one reconciliation cycle.
type Result struct {
	Checked int // users in the configured domain
	Skipped int // users outside it
	Revoked int
	Deleted int
}

// Changed reports whether the cycle modified any user.
func (r Result) Changed() bool { return r.Revoked+r.Deleted > 0 }

// Synchronizer runs reconciliation cycles, at most one at a time.
type Synchronizer struct {
	store   Store
	connect Connector
	queue   Enqueuer
	opts    Options
	logger  *clog.Logger

	running atomic.Bool
}

// New wires a Synchronizer.
func New(store Store, connect Connector, queue Enqueuer, opts Options) *Synchronizer {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Synchronizer{
		store:   store,
		connect: connect,
		queue:   queue,
		opts:    opts,
		logger:  logging.Or(opts.Logger),
	}
}

// Running reports whether a cycle is in progress.
func (s *Synchronizer) Running() bool { return s.running.Load() }

// EnqueueUserSync queues one reconciliation cycle. It refuses with
// ErrSyncRunning while a cycle is still in progress.
func (s *Synchronizer) EnqueueUserSync() (string, error) {
	if s.running.Load() {
		return "", ErrSyncRunning
	}
	return s.queue.Enqueue("user sync", func(ctx context.Context) error {
		_, err := s.SyncUsers(ctx)
		if errors.Is(err, ErrSyncRunning) {
			return nil
		}
		return err
	})
}

// SyncUsers runs one reconciliation cycle. Any failure before the user
// loop aborts the cycle without touching the store. Failures on single
// users are logged, joined and returned after the loop.
func (s *Synchronizer) SyncUsers(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrSyncRunning
	}
	defer s.running.Store(false)

	res, err := s.sync(ctx)
	switch {
	case err == nil:
		s.opts.Metrics.ObserveSyncCycle(cycleOK)
	case errors.Is(err, errAborted):
		s.opts.Metrics.ObserveSyncCycle(cycleAborted)
	default:
		s.opts.Metrics.ObserveSyncCycle(cyclePartial)
	}
	if res.Changed() && s.opts.AfterChange != nil {
		s.opts.AfterChange(ctx)
	}
	return res, err
}

var errAborted = errors.New("user sync aborted")

func abort(err error) error {
	return fmt.Errorf("%w: %w", errAborted, err)
}

func (s *Synchronizer) sync(ctx context.Context) (Result, error) {
	var res Result

	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		s.logger.Error("user sync aborted: cannot load config", "err", err)
		return res, abort(err)
	}
	domain := strings.ToLower(strings.TrimSpace(cfg.Domain))
	if domain == "" {
		s.logger.Warn("user sync aborted: no domain configured")
		return res, abort(ErrNoDomain)
	}

	client, err := s.connect(ctx)
	if err != nil {
		s.logger.Error("user sync aborted: no directory access", "err", err)
		return res, abort(err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	statuses, err := client.FetchUserStatuses(fetchCtx, domain)
	cancel()
	if err != nil {
		s.logger.Error("user sync aborted: directory fetch failed", "domain", domain, "err", err)
		return res, abort(err)
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.logger.Error("user sync aborted: cannot list users", "err", err)
		return res, abort(err)
	}

	var errs []error
	for i := range users {
		u := &users[i]
		if !strings.EqualFold(u.Domain, domain) {
			res.Skipped++
			continue
		}
		res.Checked++

		st, found := statuses[strings.ToLower(u.Email)]
		var trigger string
		var action model.Action
		switch {
		case !found:
			trigger, action = TriggerAbsent, cfg.UserDeleteAction
		case st.Suspended:
			trigger, action = TriggerSuspended, cfg.UserRevokeAction
		default:
			continue
		}

		applied, err := s.apply(ctx, u, action)
		if err != nil {
			s.logger.Error("user sync action failed", "email", u.Email, "trigger", trigger, "action", action, "err", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", action, u.Email, err))
			continue
		}
		if !applied {
			continue
		}
		s.opts.Metrics.ObserveSyncAction(trigger, action.String())
		s.logger.Info("user sync action applied", "email", u.Email, "trigger", trigger, "action", action)
		switch action {
		case model.ActionDelete:
			res.Deleted++
		case model.ActionRevoke:
			res.Revoked++
		}
	}

	s.logger.Info("user sync finished", "domain", domain, "checked", res.Checked,
		"skipped", res.Skipped, "revoked", res.Revoked, "deleted", res.Deleted)
	return res, errors.Join(errs...)
}

// apply performs action on u and reports whether the store was modified.
// A key that is already revoked is left as it is.
func (s *Synchronizer) apply(ctx context.Context, u *model.User, action model.Action) (bool, error) {
	switch action {
	case model.ActionNothing:
		return false, nil
	case model.ActionDelete:
		return true, s.store.DeleteUser(ctx, u.ID)
	case model.ActionRevoke:
		if u.IsKeyRevoked {
			return false, nil
		}
		u.CronRevoke()
		return true, s.store.SaveUser(ctx, u)
	}
	return false, fmt.Errorf("%w: %d", model.ErrUnknownAction, uint8(action))
}
