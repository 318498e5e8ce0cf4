package config_test

import (
	"log/slog"
	"testing"

	"github.com/ductile-dev/ductile/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.DBPath != "ductile.db" {
		t.Errorf("DBPath = %q, want ductile.db", cfg.DBPath)
	}
	if cfg.WorkspaceRoot != "workspaces" {
		t.Errorf("WorkspaceRoot = %q, want workspaces", cfg.WorkspaceRoot)
	}
	if cfg.SecretsDir != "secrets" {
		t.Errorf("SecretsDir = %q, want secrets", cfg.SecretsDir)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DUCTILE_LISTEN_ADDR", ":9999")
	t.Setenv("DUCTILE_DB_PATH", "/tmp/test.db")
	t.Setenv("DUCTILE_WORKSPACE_ROOT", "/data/workspaces")
	t.Setenv("DUCTILE_SECRETS_DIR", "/data/secrets")
	t.Setenv("DUCTILE_LOG_LEVEL", "debug")

	cfg := config.Load()

	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want :9999", cfg.ListenAddr)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want /tmp/test.db", cfg.DBPath)
	}
	if cfg.WorkspaceRoot != "/data/workspaces" {
		t.Errorf("WorkspaceRoot = %q, want /data/workspaces", cfg.WorkspaceRoot)
	}
	if cfg.SecretsDir != "/data/secrets" {
		t.Errorf("SecretsDir = %q, want /data/secrets", cfg.SecretsDir)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadInvalidLogLevelFallsBack(t *testing.T) {
	t.Setenv("DUCTILE_LOG_LEVEL", "verbose")

	cfg := config.Load()
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info fallback", cfg.LogLevel)
	}
}
