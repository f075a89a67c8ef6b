// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/toeirei/ufo/internal/config"
	"github.com/toeirei/ufo/internal/db"
	"github.com/toeirei/ufo/internal/deploy"
	"github.com/toeirei/ufo/internal/directory"
	"github.com/toeirei/ufo/internal/dirsync"
	"github.com/toeirei/ufo/internal/i18n"
	"github.com/toeirei/ufo/internal/jobs"
	"github.com/toeirei/ufo/internal/logging"
	"github.com/toeirei/ufo/internal/metrics"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgFile string
	verbose bool

	cfg    config.Config
	store  *db.BunStore
	logger *clog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "ufo",
		Short: "UfO distributes SSH access to a fleet of proxy servers.",
		Long: `UfO keeps one key pair per user, pushes the public keys of all
users whose key is not revoked to every registered proxy server, and keeps
the users of the configured domain in line with the directory service.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ufo.yaml in the user config dir, /etc/ufo or .)")
	cmd.PersistentFlags().String("db-type", "sqlite", "database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("db-dsn", "./ufo.db", "database connection string (DSN)")
	cmd.PersistentFlags().String("lang", "en", `message language ("en", "de")`)
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newServeCmd(a),
		newDistributeCmd(a),
		newSyncCmd(a),
		newAuditCmd(a),
		newUserCmd(a),
		newServerCmd(a),
		newSettingsCmd(a),
		newExportCmd(a),
		newDBCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// setup loads the configuration and prepares logging and messages. The
// store is opened lazily by the commands that need it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig[config.Config](cmd, config.Defaults(), &a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, a.verbose)
	a.logger = logging.L
	i18n.Init(cfg.Language)
	return nil
}

func (a *app) openStore() (*db.BunStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := db.NewStoreFromDSN(a.cfg.Database.Type, a.cfg.Database.Dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", a.cfg.Database.Type, err)
	}
	a.store = s
	return s, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *app) connectionConfig() deploy.ConnectionConfig {
	return deploy.ConnectionConfig{
		ConnectTimeout: a.cfg.Distribution.ConnectTimeout,
		CommandTimeout: a.cfg.Distribution.CommandTimeout,
	}
}

func (a *app) newDistributor(store deploy.Store, q deploy.Enqueuer, m *metrics.Collector) *deploy.Distributor {
	return deploy.NewDistributor(store, q, deploy.Options{
		AuthorizedKeysPath: a.cfg.Distribution.AuthorizedKeysPath,
		Connection:         a.connectionConfig(),
		Metrics:            m,
		Logger:             a.logger,
	})
}

func (a *app) newSynchronizer(store dirsync.Store, q dirsync.Enqueuer, m *metrics.Collector, afterChange func(context.Context)) *dirsync.Synchronizer {
	return dirsync.New(store, a.directoryConnector(), q, dirsync.Options{
		FetchTimeout: a.cfg.Sync.FetchTimeout,
		Metrics:      m,
		Logger:       a.logger,
		AfterChange:  afterChange,
	})
}

// directoryConnector loads the service account on every cycle so a key
// dropped in place is picked up without a restart.
func (a *app) directoryConnector() dirsync.Connector {
	return func(ctx context.Context) (directory.Client, error) {
		creds, err := directory.LoadCredentials(a.cfg.Directory.CredentialsFile, a.cfg.Directory.AdminSubject)
		if err != nil {
			return nil, err
		}
		return directory.NewGoogleClient(ctx, creds, a.logger)
	}
}

// inlineQueue runs jobs on the calling goroutine. One-shot commands use it
// where the daemon uses the worker pool.
type inlineQueue struct{}

func (inlineQueue) Enqueue(name string, fn jobs.Func) (string, error) {
	return name, fn(context.Background())
}
