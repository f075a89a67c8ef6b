// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/ufo/internal/jobs"
	"github.com/toeirei/ufo/internal/metrics"
	"github.com/toeirei/ufo/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long serve waits for running jobs on exit.
const shutdownTimeout = 30 * time.Second

var errDrift = errors.New("authorized_keys drift detected")

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the distribution and directory sync daemon",
		Long: `Runs until interrupted. Key distribution runs every
distribution.interval and directory sync every sync.interval; both also run
once at startup. A sync that revokes or deletes users triggers an extra
distribution. Metrics are served on metrics.listen unless it is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd)
		},
	}
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	collector := metrics.NewCollector()

	queue := jobs.New(a.cfg.Distribution.Workers, jobs.DefaultCapacity, a.logger)

	distributor := a.newDistributor(store, queue, collector)
	distribute := func(ctx context.Context) {
		if _, err := distributor.EnqueueDistributionJobs(ctx); err != nil {
			a.logger.Error("distribution could not be queued", "err", err)
		}
	}
	syncer := a.newSynchronizer(store, queue, collector, distribute)
	syncUsers := func(context.Context) {
		if _, err := syncer.EnqueueUserSync(); err != nil {
			a.logger.Warn("directory sync not queued", "err", err)
		}
	}

	sched := scheduler.New(a.logger)
	if err := sched.Add("distribution", scheduler.Every(a.cfg.Distribution.Interval), distribute); err != nil {
		return err
	}
	if err := sched.Add("directory sync", scheduler.Every(a.cfg.Sync.Interval), syncUsers); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if a.cfg.Metrics.Listen != "" {
		handler, err := metrics.Handler(collector)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		srv = &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			a.logger.Info("serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// Jobs outlive the signal so a shutdown can drain them.
	queue.Start(context.Background())
	sched.Start(gctx)
	distribute(gctx)
	syncUsers(gctx)
	say(cmd, "cli.serve_started", nil)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, sched.Stop(shutdownCtx), queue.Stop(shutdownCtx))
		return errors.Join(errs...)
	})

	err = g.Wait()
	say(cmd, "cli.serve_stopped", nil)
	return err
}

func newDistributeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "distribute",
		Short: "Push authorized_keys to every proxy server once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			results, err := a.newDistributor(store, inlineQueue{}, nil).DistributeAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				say(cmd, "cli.distribute_none", nil)
				return nil
			}
			failed := 0
			for _, addr := range slices.Sorted(maps.Keys(results)) {
				say(cmd, "cli.distribute_result", map[string]any{"Address": addr, "Result": results[addr]})
				if results[addr] != metrics.ResultOK {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("distribution failed on %d of %d servers", failed, len(results))
			}
			return nil
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	var distribute bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile users with the directory once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			var afterChange func(context.Context)
			if distribute {
				d := a.newDistributor(store, inlineQueue{}, nil)
				afterChange = func(ctx context.Context) {
					if _, err := d.EnqueueDistributionJobs(ctx); err != nil {
						a.logger.Error("distribution after sync failed", "err", err)
					}
				}
			}
			res, err := a.newSynchronizer(store, inlineQueue{}, nil, afterChange).SyncUsers(cmd.Context())
			say(cmd, "cli.sync_result", map[string]any{
				"Checked": res.Checked, "Skipped": res.Skipped, "Revoked": res.Revoked, "Deleted": res.Deleted,
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&distribute, "distribute", true, "distribute keys when users were revoked or deleted")
	return cmd
}

func newAuditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <address>",
		Short: "Compare a proxy server's authorized_keys with the expected keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			report, err := a.newDistributor(store, inlineQueue{}, nil).Audit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if report.InSync {
				say(cmd, "cli.audit_in_sync", map[string]any{"Server": report.Server})
				return nil
			}
			say(cmd, "cli.audit_drift", map[string]any{
				"Server": report.Server, "Missing": len(report.Missing), "Unexpected": len(report.Unexpected),
			})
			out := cmd.OutOrStdout()
			for _, line := range report.Missing {
				fmt.Fprintln(out, "- "+line)
			}
			for _, line := range report.Unexpected {
				fmt.Fprintln(out, "+ "+line)
			}
			return errDrift
		},
	}
}

