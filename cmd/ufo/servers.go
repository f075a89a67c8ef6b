// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toeirei/ufo/internal/model"
)

func newServerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage proxy servers",
	}
	cmd.AddCommand(newServerAddCmd(a), newServerListCmd(a), newServerDeleteCmd(a))
	return cmd
}

func newServerAddCmd(a *app) *cobra.Command {
	var name, keyFile, hostKeyFile string
	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Register a proxy server",
		Long: `Registers a proxy server reachable at host or host:port. --key-file is
the private key UfO logs in with as root, --host-key-file the server's
public host key (bare or known_hosts format). Only RSA, DSS and ECDSA
P-256 keys are accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("failed to read key file: %w", err)
			}
			hostKey, err := os.ReadFile(hostKeyFile)
			if err != nil {
				return fmt.Errorf("failed to read host key file: %w", err)
			}
			p, err := model.NewProxyServer(args[0], name, string(privateKey), string(hostKey))
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err := store.SaveProxyServer(cmd.Context(), p); err != nil {
				return fmt.Errorf("failed to save proxy server %s: %w", p.Address, err)
			}
			a.logger.Info("proxy server added", "address", p.Address, "key", p.SSHPrivateKeyType, "host_key", p.HostPublicKeyType)
			say(cmd, "cli.server_added", map[string]any{"Address": p.Address})
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "private key file used to log in")
	cmd.Flags().StringVar(&hostKeyFile, "host-key-file", "", "public host key file")
	_ = cmd.MarkFlagRequired("key-file")
	_ = cmd.MarkFlagRequired("host-key-file")
	return cmd
}

func newServerListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List proxy servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			servers, err := store.ListProxyServers(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(servers))
			for _, p := range servers {
				rows = append(rows, []string{p.Address, p.Name, string(p.SSHPrivateKeyType) + " / " + string(p.HostPublicKeyType)})
			}
			renderTable(cmd.OutOrStdout(), []string{"table.address", "table.name", "table.key_types"}, rows)
			return nil
		},
	}
}

func newServerDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <address>",
		Short: "Remove a proxy server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			p, err := store.GetProxyServer(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("proxy server %s: %w", args[0], err)
			}
			if !confirm(cmd, p.Address) {
				return nil
			}
			if err := store.DeleteProxyServer(cmd.Context(), p.ID); err != nil {
				return err
			}
			a.logger.Info("proxy server deleted", "address", p.Address)
			say(cmd, "cli.server_deleted", map[string]any{"Address": p.Address})
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	return cmd
}
