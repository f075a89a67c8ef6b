// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads process configuration from ufo.yaml, UFO_*
// environment variables and command line flags. The per-deployment settings
// (domain, reconciliation actions) live in the database, not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the process configuration.
type Config struct {
	Database struct {
		Type string `mapstructure:"type" yaml:"type"`
		Dsn  string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"database" yaml:"database"`

	Log struct {
		Level string `mapstructure:"level" yaml:"level"`
	} `mapstructure:"log" yaml:"log"`

	Language string `mapstructure:"language" yaml:"language"`

	Distribution struct {
		Interval           time.Duration `mapstructure:"interval" yaml:"interval"`
		AuthorizedKeysPath string        `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
		ConnectTimeout     time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
		CommandTimeout     time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
		Workers            int           `mapstructure:"workers" yaml:"workers"`
	} `mapstructure:"distribution" yaml:"distribution"`

	Sync struct {
		Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
		FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	} `mapstructure:"sync" yaml:"sync"`

	Directory struct {
		CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
		AdminSubject    string `mapstructure:"admin_subject" yaml:"admin_subject"`
	} `mapstructure:"directory" yaml:"directory"`

	Metrics struct {
		Listen string `mapstructure:"listen" yaml:"listen"`
	} `mapstructure:"metrics" yaml:"metrics"`
}

// Defaults returns the built-in value of every key.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":                     "sqlite",
		"database.dsn":                      "./ufo.db",
		"log.level":                         "info",
		"language":                          "en",
		"distribution.interval":             "15m",
		"distribution.authorized_keys_path": "/home/getter/.ssh/authorized_keys",
		"distribution.connect_timeout":      "10s",
		"distribution.command_timeout":      "30s",
		"distribution.workers":              4,
		"sync.interval":                     "1h",
		"sync.fetch_timeout":                "60s",
		"directory.credentials_file":        "",
		"directory.admin_subject":           "",
		"metrics.listen":                    ":9464",
	}
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"db-type":   "database.type",
	"db-dsn":    "database.dsn",
	"lang":      "language",
	"log-level": "log.level",
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "UfO")
		default:
			configDir = "/etc/ufo"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "ufo")
	}
	return filepath.Join(configDir, "ufo.yaml"), nil
}

// LoadConfig merges defaults, the first ufo.yaml found (or configFile when
// set), UFO_* environment variables and the flags of cmd, in increasing
// order of precedence. A missing file is not an error.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("ufo")
	v.SetConfigType("yaml")
	if configFile != nil && *configFile != "" {
		v.SetConfigFile(*configFile)
	}
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("ufo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return c, bindErr
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	return c, nil
}

// Validate checks values that would only fail much later at run time.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.type: unsupported value %q", c.Database.Type))
	}
	if c.Database.Dsn == "" {
		errs = append(errs, errors.New("database.dsn: must not be empty"))
	}
	if c.Distribution.Interval <= 0 {
		errs = append(errs, errors.New("distribution.interval: must be positive"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval: must be positive"))
	}
	if c.Distribution.Workers <= 0 {
		errs = append(errs, errors.New("distribution.workers: must be positive"))
	}
	if !strings.HasPrefix(c.Distribution.AuthorizedKeysPath, "/") {
		errs = append(errs, fmt.Errorf("distribution.authorized_keys_path: %q is not absolute", c.Distribution.AuthorizedKeysPath))
	}
	return errors.Join(errs...)
}

// WriteConfigFile writes c as YAML to path, or to the user (system) config
// location when path is empty. It returns the path written.
func WriteConfigFile[T any](c *T, path string, system bool) (string, error) {
	if path == "" {
		p, err := GetConfigPath(system)
		if err != nil {
			return "", err
		}
		path = p
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	// 0600: the DSN may carry a database password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
