// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/toeirei/ufo/internal/jobs"
	"github.com/toeirei/ufo/internal/logging"
	"github.com/toeirei/ufo/internal/metrics"
	"github.com/toeirei/ufo/internal/model"
)

// DefaultAuthorizedKeysPath is where the payload is written on every proxy.
const DefaultAuthorizedKeysPath = "/home/getter/.ssh/authorized_keys"

// Store is the part of the entity store the distributor reads.
type Store interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	ListProxyServers(ctx context.Context) ([]model.ProxyServer, error)
	GetProxyServer(ctx context.Context, address string) (*model.ProxyServer, error)
}

// Enqueuer schedules background work. *jobs.Queue implements it.
type Enqueuer interface {
	Enqueue(name string, fn jobs.Func) (string, error)
}

// Options configures a Distributor.
type Options struct {
	AuthorizedKeysPath string
	Connection         ConnectionConfig
	Metrics            *metrics.Collector
	Logger             *clog.Logger
}

// Distributor pushes the authorized_keys payload to the proxy fleet.
type Distributor struct {
	store   Store
	queue   Enqueuer
	path    string
	conn    ConnectionConfig
	metrics *metrics.Collector
	logger  *clog.Logger
}

// NewDistributor wires a distributor. Zero-valued options get defaults.
func NewDistributor(store Store, queue Enqueuer, opts Options) *Distributor {
	if opts.AuthorizedKeysPath == "" {
		opts.AuthorizedKeysPath = DefaultAuthorizedKeysPath
	}
	return &Distributor{
		store:   store,
		queue:   queue,
		path:    opts.AuthorizedKeysPath,
		conn:    opts.Connection,
		metrics: opts.Metrics,
		logger:  logging.Or(opts.Logger),
	}
}

// BuildAuthorizedKeysPayload renders one line per user whose key is not
// revoked, in the order given. Users whose key cannot be rendered are left
// out and reported in the joined error; the payload is still usable.
func BuildAuthorizedKeysPayload(users []model.User) (string, error) {
	var b strings.Builder
	var errs []error
	for _, u := range users {
		if u.IsKeyRevoked {
			continue
		}
		line, err := u.AuthorizedKeysLine()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.WriteString(line)
	}
	return b.String(), errors.Join(errs...)
}

// Payload loads all users and renders the current payload.
func (d *Distributor) Payload(ctx context.Context) (string, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list users: %w", err)
	}
	payload, err := BuildAuthorizedKeysPayload(users)
	if err != nil {
		d.logger.Warn("skipping users with unusable keys", "err", err)
	}
	return payload, nil
}

// DistributeToServer overwrites the authorized_keys file on one server with
// payload. The file is replaced in one step, so a failed or interrupted write
// leaves the previous content in place. It never returns an error: failures are logged, counted and
// reported through the returned result label.
func (d *Distributor) DistributeToServer(ctx context.Context, p model.ProxyServer, payload string) string {
	start := time.Now()
	result := d.distribute(ctx, p, payload)
	d.metrics.ObserveDistribution(result, time.Since(start))
	return result
}

func (d *Distributor) distribute(ctx context.Context, p model.ProxyServer, payload string) string {
	log := d.logger.With("server", p.Address)

	sess := NewSession(d.conn, d.logger)
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debug("closing session", "err", err)
		}
	}()

	if err := sess.Connect(ctx, p); err != nil {
		if errors.Is(err, ErrInvalidKeyType) {
			log.Error("skipping server with unusable keys", "err", err)
			return metrics.ResultInvalidServer
		}
		log.Error("could not connect, skipping server", "err", err)
		return metrics.ResultConnectError
	}

	res, err := sess.WriteFileAtomic(ctx, d.path, []byte(payload))
	if err != nil {
		log.Error("failed to write authorized keys", "err", err)
		return metrics.ResultRemoteError
	}
	if res.ExitStatus != 0 || res.Stderr != "" {
		log.Error("failed to write authorized keys", "stderr", strings.TrimSpace(res.Stderr), "exit", res.ExitStatus)
		return metrics.ResultRemoteError
	}
	log.Info("authorized keys written", "path", d.path, "bytes", len(payload))
	return metrics.ResultOK
}

// EnqueueDistributionJobs renders the payload once and queues one
// independent job per proxy server. It returns the number of jobs queued.
func (d *Distributor) EnqueueDistributionJobs(ctx context.Context) (int, error) {
	payload, err := d.Payload(ctx)
	if err != nil {
		return 0, err
	}
	servers, err := d.store.ListProxyServers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list proxy servers: %w", err)
	}

	queued := 0
	var errs []error
	for _, p := range servers {
		_, err := d.queue.Enqueue("distribute "+p.Address, func(ctx context.Context) error {
			d.DistributeToServer(ctx, p, payload)
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", p.Address, err))
			continue
		}
		queued++
	}
	d.logger.Info("distribution queued", "servers", len(servers), "queued", queued)
	return queued, errors.Join(errs...)
}

// DistributeAll pushes payload to every server inline, one after another,
// and returns the result per address. It backs the one-shot CLI command.
func (d *Distributor) DistributeAll(ctx context.Context) (map[string]string, error) {
	payload, err := d.Payload(ctx)
	if err != nil {
		return nil, err
	}
	servers, err := d.store.ListProxyServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxy servers: %w", err)
	}
	results := make(map[string]string, len(servers))
	for _, p := range servers {
		results[p.Address] = d.DistributeToServer(ctx, p, payload)
	}
	return results, nil
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
