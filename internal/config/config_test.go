// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	cfg "github.com/toeirei/ufo/internal/config"
)

// isolate points the user config dir and working directory at empty temp
// dirs so no real ufo.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))
	t.Setenv("HOME", tmp)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return tmp
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)
	c, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "sqlite" || c.Database.Dsn != "./ufo.db" || c.Language != "en" {
		t.Errorf("database/language defaults = %+v %q", c.Database, c.Language)
	}
	if c.Distribution.Interval != 15*time.Minute || c.Sync.Interval != time.Hour {
		t.Errorf("intervals = %v / %v", c.Distribution.Interval, c.Sync.Interval)
	}
	if c.Distribution.ConnectTimeout != 10*time.Second || c.Distribution.CommandTimeout != 30*time.Second || c.Sync.FetchTimeout != time.Minute {
		t.Errorf("timeouts = %+v %v", c.Distribution, c.Sync.FetchTimeout)
	}
	if c.Distribution.AuthorizedKeysPath != "/home/getter/.ssh/authorized_keys" || c.Distribution.Workers != 4 {
		t.Errorf("distribution = %+v", c.Distribution)
	}
	if c.Metrics.Listen != ":9464" || c.Log.Level != "info" {
		t.Errorf("metrics/log = %q %q", c.Metrics.Listen, c.Log.Level)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	tmp := isolate(t)
	yaml := "database:\n  type: postgres\n  dsn: postgresql://ufo@/ufo\nlanguage: de\ndistribution:\n  interval: 5m\n  workers: 8\ndirectory:\n  credentials_file: /etc/ufo/sa.json\n  admin_subject: admin@example.com\n"
	file := filepath.Join(tmp, "custom.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "postgres" || c.Database.Dsn != "postgresql://ufo@/ufo" || c.Language != "de" {
		t.Errorf("file values not applied: %+v %q", c.Database, c.Language)
	}
	if c.Distribution.Interval != 5*time.Minute || c.Distribution.Workers != 8 {
		t.Errorf("distribution = %+v", c.Distribution)
	}
	if c.Distribution.CommandTimeout != 30*time.Second {
		t.Errorf("unset key lost its default: %v", c.Distribution.CommandTimeout)
	}
	if c.Directory.CredentialsFile != "/etc/ufo/sa.json" || c.Directory.AdminSubject != "admin@example.com" {
		t.Errorf("directory = %+v", c.Directory)
	}
}

func TestLoadConfig_FindsFileInWorkingDir(t *testing.T) {
	tmp := isolate(t)
	if err := os.WriteFile(filepath.Join(tmp, "ufo.yaml"), []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Log.Level != "debug" {
		t.Fatalf("log.level = %q, want debug", c.Log.Level)
	}
}

func TestLoadConfig_EnvAndFlagsOverride(t *testing.T) {
	isolate(t)
	t.Setenv("UFO_DATABASE_DSN", "/var/lib/ufo/ufo.db")
	t.Setenv("UFO_SYNC_INTERVAL", "30m")

	cmd := &cobra.Command{}
	cmd.Flags().String("db-type", "sqlite", "")
	cmd.Flags().String("lang", "en", "")
	if err := cmd.Flags().Set("db-type", "mysql"); err != nil {
		t.Fatal(err)
	}

	c, err := cfg.LoadConfig[cfg.Config](cmd, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Dsn != "/var/lib/ufo/ufo.db" || c.Sync.Interval != 30*time.Minute {
		t.Errorf("env not applied: dsn=%q sync=%v", c.Database.Dsn, c.Sync.Interval)
	}
	if c.Database.Type != "mysql" {
		t.Errorf("flag not applied: %q", c.Database.Type)
	}
	if c.Language != "en" {
		t.Errorf("unchanged flag overrode default: %q", c.Language)
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	tmp := isolate(t)
	file := filepath.Join(tmp, "bad.yaml")
	if err := os.WriteFile(file, []byte("database: [unclosed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)
	c, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Database.Type = "oracle"
	c.Distribution.Workers = 0
	c.Distribution.AuthorizedKeysPath = "relative/path"
	err = c.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"database.type", "distribution.workers", "authorized_keys_path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	tmp := isolate(t)
	c, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Database.Type = "postgres"
	c.Distribution.Interval = 7 * time.Minute

	path, err := cfg.WriteConfigFile(&c, filepath.Join(tmp, "out", "ufo.yaml"), false)
	if err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	back, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Database.Type != "postgres" || back.Distribution.Interval != 7*time.Minute {
		t.Fatalf("reloaded = %+v %+v", back.Database, back.Distribution)
	}
}

func TestWriteConfigFile_DefaultLocation(t *testing.T) {
	isolate(t)
	c := cfg.Config{}
	c.Database.Type = "sqlite"
	path, err := cfg.WriteConfigFile(&c, "", false)
	if err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	want, err := cfg.GetConfigPath(false)
	if err != nil {
		t.Fatal(err)
	}
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}
}
