package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	defaultListenAddr    = ":8080"
	defaultDBPath        = "ductile.db"
	defaultWorkspaceRoot = "workspaces"
	defaultSecretsDir    = "secrets"

	envListenAddr    = "DUCTILE_LISTEN_ADDR"
	envDBPath        = "DUCTILE_DB_PATH"
	envLogLevel      = "DUCTILE_LOG_LEVEL"
	envWorkspaceRoot = "DUCTILE_WORKSPACE_ROOT"
	envSecretsDir    = "DUCTILE_SECRETS_DIR"
)

// Config holds application configuration loaded from environment variables.
// WorkspaceRoot is the directory under which per-org project directories are
// provisioned; it is read once here and injected where needed.
type Config struct {
	ListenAddr    string
	DBPath        string
	WorkspaceRoot string
	SecretsDir    string
	LogLevel      slog.Level
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		WorkspaceRoot: defaultWorkspaceRoot,
		SecretsDir:    defaultSecretsDir,
		LogLevel:      slog.LevelInfo,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envWorkspaceRoot); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv(envSecretsDir); v != "" {
		cfg.SecretsDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
