// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/toeirei/ufo/internal/credential"
	"github.com/toeirei/ufo/internal/model"
)

// clipboardWrite is swapped in tests; headless machines have no clipboard.
var clipboardWrite = clipboard.WriteAll

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their key pairs",
	}
	cmd.AddCommand(
		newUserAddCmd(a),
		newUserListCmd(a),
		newUserDeleteCmd(a),
		newUserRevokeCmd(a, true),
		newUserRevokeCmd(a, false),
		newUserRotateKeyCmd(a),
		newUserInviteCmd(a),
		newUserAuthorizedKeyCmd(a),
	)
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var name, domain string
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Add a user with a new key pair",
		Long: `Adds a user with a freshly generated RSA key pair. Users added without
--domain are never touched by directory reconciliation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			u, err := credential.NewUser(args[0], name, domain)
			if err != nil {
				return err
			}
			if err := store.SaveUser(cmd.Context(), u); err != nil {
				return fmt.Errorf("failed to save user %s: %w", u.Email, err)
			}
			a.logger.Info("user added", "email", u.Email, "domain", u.Domain)
			say(cmd, "cli.user_added", map[string]any{"Email": u.Email})
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&domain, "domain", "", "directory domain the user belongs to")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			users, err := store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{u.Email, u.Name, u.Domain, yesNo(u.IsKeyRevoked)})
			}
			renderTable(cmd.OutOrStdout(), []string{"table.email", "table.name", "table.domain", "table.revoked"}, rows)
			return nil
		},
	}
}

func (a *app) lookupUser(cmd *cobra.Command, email string) (*model.User, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	e, err := model.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	u, err := store.GetUserByEmail(cmd.Context(), e)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", e, err)
	}
	return u, nil
}

func newUserDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <email>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.lookupUser(cmd, args[0])
			if err != nil {
				return err
			}
			if !confirm(cmd, u.Email) {
				return nil
			}
			if err := a.store.DeleteUser(cmd.Context(), u.ID); err != nil {
				return err
			}
			a.logger.Info("user deleted", "email", u.Email)
			say(cmd, "cli.user_deleted", map[string]any{"Email": u.Email})
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	return cmd
}

// newUserRevokeCmd builds "revoke" or "unrevoke". Both are administrator
// actions and clear the reconciliation marker.
func newUserRevokeCmd(a *app, revoke bool) *cobra.Command {
	use, short, msg := "unrevoke <email>", "Restore a user's key", "cli.user_unrevoked"
	if revoke {
		use, short, msg = "revoke <email>", "Revoke a user's key", "cli.user_revoked"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.lookupUser(cmd, args[0])
			if err != nil {
				return err
			}
			u.SetRevoked(revoke)
			if err := a.store.SaveUser(cmd.Context(), u); err != nil {
				return err
			}
			a.logger.Info("user key revocation changed", "email", u.Email, "revoked", revoke)
			say(cmd, msg, map[string]any{"Email": u.Email})
			return nil
		},
	}
}

func newUserRotateKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key <email>",
		Short: "Replace a user's key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.lookupUser(cmd, args[0])
			if err != nil {
				return err
			}
			if err := credential.RegenerateKeyPair(u); err != nil {
				return err
			}
			if err := a.store.SaveUser(cmd.Context(), u); err != nil {
				return err
			}
			a.logger.Info("user key rotated", "email", u.Email)
			say(cmd, "cli.key_rotated", map[string]any{"Email": u.Email})
			return nil
		},
	}
}

func newUserInviteCmd(a *app) *cobra.Command {
	var copyCode bool
	cmd := &cobra.Command{
		Use:   "invite <email>",
		Short: "Print a client invite code for a user",
		Long: `Prints an invite code that configures the client for one randomly
chosen proxy server. The code contains the user's private key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.lookupUser(cmd, args[0])
			if err != nil {
				return err
			}
			servers, err := a.store.ListProxyServers(cmd.Context())
			if err != nil {
				return err
			}
			code, err := credential.BuildInviteCode(*u, servers)
			if err != nil {
				return err
			}
			if code == "" {
				say(cmd, "cli.invite_no_server", nil)
				return nil
			}
			if copyCode {
				if err := clipboardWrite(code); err != nil {
					return fmt.Errorf("failed to copy invite code: %w", err)
				}
				say(cmd, "cli.invite_copied", nil)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyCode, "copy", false, "copy the code to the clipboard instead of printing it")
	return cmd
}

func newUserAuthorizedKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "authorized-key <email>",
		Short: "Print a user's authorized_keys line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.lookupUser(cmd, args[0])
			if err != nil {
				return err
			}
			line, err := u.AuthorizedKeysLine()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), line)
			return nil
		},
	}
}
