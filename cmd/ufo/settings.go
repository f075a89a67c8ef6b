// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
	"github.com/toeirei/ufo/internal/model"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the reconciliation settings",
		Long: `Settings are stored in the database and shared by every UfO process
using it. Actions are one of: nothing, revoke, delete.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show all settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				c, err := store.GetConfig(cmd.Context())
				if err != nil {
					return err
				}
				var rows [][]string
				for _, key := range model.SettingKeys() {
					value, err := c.Get(key)
					if err != nil {
						return err
					}
					rows = append(rows, []string{key, value})
				}
				renderTable(cmd.OutOrStdout(), []string{"table.setting", "table.value"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <key> <value>",
			Short:     "Change one setting",
			Args:      cobra.ExactArgs(2),
			ValidArgs: model.SettingKeys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				c, err := store.GetConfig(cmd.Context())
				if err != nil {
					return err
				}
				if err := c.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := store.SaveConfig(cmd.Context(), c); err != nil {
					return err
				}
				value, _ := c.Get(args[0])
				a.logger.Info("setting changed", "key", args[0], "value", value)
				say(cmd, "cli.setting_saved", map[string]any{"Key": args[0], "Value": value})
				return nil
			},
		},
	)
	return cmd
}
