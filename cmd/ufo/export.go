// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"github.com/toeirei/ufo/internal/config"
	"github.com/toeirei/ufo/internal/db"
	"github.com/toeirei/ufo/internal/model"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [output-file]",
		Short: "Write a compressed (zstd) JSON snapshot of the database",
		Long: `Dumps users, proxy servers and settings into a single Zstandard-compressed
JSON file. Private keys are redacted.

If no output file is given, ufo-export-YYYY-MM-DD.json.zst is used. '.zst'
is appended when missing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFile := fmt.Sprintf("ufo-export-%s.json.zst", time.Now().Format("2006-01-02"))
			if len(args) == 1 {
				outputFile = args[0]
				if !strings.HasSuffix(outputFile, ".zst") {
					outputFile += ".zst"
				}
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			snap, err := store.ExportSnapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}
			if err := writeCompressedSnapshot(outputFile, snap); err != nil {
				return err
			}
			say(cmd, "cli.export_written", map[string]any{"Path": outputFile})
			return nil
		},
	}
}

// writeCompressedSnapshot streams the JSON encoding straight into the zstd
// writer.
func writeCompressedSnapshot(filename string, snap *model.Snapshot) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	encoder := json.NewEncoder(zw)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("could not finish zstd stream: %w", err)
	}
	return file.Close()
}

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database housekeeping",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "maintain",
		Short: "Run engine-specific maintenance (VACUUM, ANALYZE, OPTIMIZE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RunDBMaintenance(cmd.Context(), a.cfg.Database.Type, a.cfg.Database.Dsn); err != nil {
				return err
			}
			say(cmd, "cli.maintenance_done", nil)
			return nil
		},
	})
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	var path string
	var system bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the process configuration",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to ufo.yaml",
		Long: `Writes the configuration currently in effect (defaults, file, environment
and flags merged) to --path, or to the user config directory. With --system
it is written to the system-wide location instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := config.WriteConfigFile(&a.cfg, path, system)
			if err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			say(cmd, "cli.config_written", map[string]any{"Path": written})
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "file to write")
	initCmd.Flags().BoolVar(&system, "system", false, "write the system-wide file")
	cmd.AddCommand(initCmd)
	return cmd
}
