// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"errors"
	"testing"
)

func TestParseAction(t *testing.T) {
	for _, a := range []Action{ActionNothing, ActionRevoke, ActionDelete} {
		got, err := ParseAction(a.String())
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %v, %v", a.String(), got, err)
		}
	}
	if got, err := ParseAction(" REVOKE "); err != nil || got != ActionRevoke {
		t.Errorf("case-insensitive parse failed: %v, %v", got, err)
	}
	if _, err := ParseAction("suspend"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
}

func TestActionValueScan(t *testing.T) {
	v, err := ActionDelete.Value()
	if err != nil || v != "delete" {
		t.Fatalf("Value() = %v, %v", v, err)
	}
	var a Action
	if err := a.Scan([]byte("revoke")); err != nil || a != ActionRevoke {
		t.Fatalf("Scan([]byte) = %v, %v", a, err)
	}
	if err := a.Scan(nil); err != nil || a != ActionNothing {
		t.Fatalf("Scan(nil) = %v, %v", a, err)
	}
	if err := a.Scan(int64(3)); err == nil {
		t.Fatalf("Scan(int64) should fail")
	}
	if _, err := Action(9).Value(); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("out of range Value err = %v", err)
	}
}

func TestConfigSetGet(t *testing.T) {
	c := DefaultConfig()
	if err := c.Set("domain", " Example.COM "); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("user_revoke_action", "revoke"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("user_delete_action", "delete"); err != nil {
		t.Fatal(err)
	}
	if c.Domain != "example.com" || c.UserRevokeAction != ActionRevoke || c.UserDeleteAction != ActionDelete {
		t.Fatalf("unexpected config: %+v", c)
	}
	for _, k := range SettingKeys() {
		if _, err := c.Get(k); err != nil {
			t.Errorf("Get(%q): %v", k, err)
		}
	}
	if err := c.Set("nope", "x"); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("err = %v, want ErrUnknownSetting", err)
	}
	if err := c.Set("user_undelete_action", "later"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
}
