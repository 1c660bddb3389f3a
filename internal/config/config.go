// Package config loads the client configuration from config.yaml with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the sync client.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig locates the on-device store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig points at the remote relational service.
type RemoteConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SyncConfig tunes the daemon's loops.
type SyncConfig struct {
	PushInterval  time.Duration `mapstructure:"pushInterval"`
	AuthStateFile string        `mapstructure:"authStateFile"`
}

// DashboardConfig controls the local status feed.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LogConfig controls file logging. An empty File logs to stderr only.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

// Load reads config.yaml from ./config or the working directory. A
// missing file is fine: every key has a default, and environment
// variables (e.g. SYNC_PUSHINTERVAL, REMOTE_DSN) override both.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", ".grindsync/local.db")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("sync.pushInterval", 30*time.Second)
	v.SetDefault("sync.authStateFile", ".grindsync/auth.json")
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.port", 8090)
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 10)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAgeDays", 14)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
