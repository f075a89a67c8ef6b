// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned when a stored or user-supplied action string
// is not one of nothing, revoke or delete.
var ErrUnknownAction = errors.New("unknown reconciliation action")

// ErrUnknownSetting is returned by Config.Set for an unrecognized key.
var ErrUnknownSetting = errors.New("unknown setting")

// Action is the reconciliation policy applied to a user.
type Action uint8

const (
	ActionNothing Action = iota
	ActionRevoke
	ActionDelete
)

var actionNames = [...]string{
	ActionNothing: "nothing",
	ActionRevoke:  "revoke",
	ActionDelete:  "delete",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// ParseAction converts the persisted string form into an Action.
func ParseAction(s string) (Action, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for i, name := range actionNames {
		if name == v {
			return Action(i), nil
		}
	}
	return ActionNothing, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

func (a Action) MarshalText() ([]byte, error) {
	if int(a) >= len(actionNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	v, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value stores the action as its string name.
func (a Action) Value() (driver.Value, error) {
	b, err := a.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads an action from its string name. NULL reads as nothing.
func (a *Action) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = ActionNothing
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Action", src)
	}
}

// ConfigID is the primary key of the singleton Config row.
const ConfigID = 0

// Config is the per-deployment reconciliation policy.
type Config struct {
	// Domain is the directory domain this deployment trusts.
	Domain string

	// UserDeleteAction applies to users absent from the directory.
	UserDeleteAction Action
	// UserRevokeAction applies to users suspended in the directory.
	UserRevokeAction Action

	// UserUnrevokeAction and UserUndeleteAction are stored but not acted on:
	// reconciliation never reverses a revocation automatically.
	UserUnrevokeAction Action
	UserUndeleteAction Action
}

// DefaultConfig is what GetConfig creates on first access.
func DefaultConfig() Config { return Config{} }

// SettingKeys lists the keys accepted by Set, in display order.
func SettingKeys() []string {
	return []string{
		"domain",
		"user_delete_action",
		"user_revoke_action",
		"user_unrevoke_action",
		"user_undelete_action",
	}
}

// Set updates one setting by its persisted key name.
func (c *Config) Set(key, value string) error {
	if key == "domain" {
		c.Domain = strings.ToLower(strings.TrimSpace(value))
		return nil
	}
	var target *Action
	switch key {
	case "user_delete_action":
		target = &c.UserDeleteAction
	case "user_revoke_action":
		target = &c.UserRevokeAction
	case "user_unrevoke_action":
		target = &c.UserUnrevokeAction
	case "user_undelete_action":
		target = &c.UserUndeleteAction
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	a, err := ParseAction(value)
	if err != nil {
		return err
	}
	*target = a
	return nil
}

// Get returns one setting by its persisted key name.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "domain":
		return c.Domain, nil
	case "user_delete_action":
		return c.UserDeleteAction.String(), nil
	case "user_revoke_action":
		return c.UserRevokeAction.String(), nil
	case "user_unrevoke_action":
		return c.UserUnrevokeAction.String(), nil
	case "user_undelete_action":
		return c.UserUndeleteAction.String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSetting, key)
}
