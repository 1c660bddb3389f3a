package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed without a config file: %v", err)
	}

	if cfg.Database.Path != ".grindsync/local.db" {
		t.Errorf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Sync.PushInterval != 30*time.Second {
		t.Errorf("unexpected push interval: %v", cfg.Sync.PushInterval)
	}
	if !cfg.Dashboard.Enabled || cfg.Dashboard.Port != 8090 {
		t.Errorf("unexpected dashboard config: %+v", cfg.Dashboard)
	}
	if cfg.Remote.DSN != "" {
		t.Errorf("expected empty DSN by default, got %s", cfg.Remote.DSN)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Chdir(t.TempDir())

	yaml := `
database:
  path: /var/lib/grindsync/cache.db
remote:
  dsn: postgres://localhost/grindsync
sync:
  pushInterval: 10s
dashboard:
  enabled: false
`
	if err := os.WriteFile("config.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/var/lib/grindsync/cache.db" {
		t.Errorf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Remote.DSN != "postgres://localhost/grindsync" {
		t.Errorf("unexpected DSN: %s", cfg.Remote.DSN)
	}
	if cfg.Sync.PushInterval != 10*time.Second {
		t.Errorf("unexpected push interval: %v", cfg.Sync.PushInterval)
	}
	if cfg.Dashboard.Enabled {
		t.Error("expected dashboard disabled")
	}
	// Keys the file omits keep their defaults.
	if cfg.Dashboard.Port != 8090 {
		t.Errorf("unexpected dashboard port: %d", cfg.Dashboard.Port)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REMOTE_DSN", "postgres://db.internal/grindsync")
	t.Setenv("SYNC_PUSHINTERVAL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.DSN != "postgres://db.internal/grindsync" {
		t.Errorf("env override ignored for DSN: %s", cfg.Remote.DSN)
	}
	if cfg.Sync.PushInterval != 5*time.Second {
		t.Errorf("env override ignored for push interval: %v", cfg.Sync.PushInterval)
	}
}
