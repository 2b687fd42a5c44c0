package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// normalize lowercases enum-like fields and expands ~ in paths.
//   - log level "warning" is accepted as "warn"
//   - empty secrets backend means keyring
func (c *Config) normalize() {
	c.Gateway.Endpoint = strings.TrimSpace(c.Gateway.Endpoint)
	c.Secrets.Backend = strings.ToLower(strings.TrimSpace(c.Secrets.Backend))
	if c.Secrets.Backend == "" {
		c.Secrets.Backend = "keyring"
	}
	c.Secrets.Path = ExpandHome(c.Secrets.Path)

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Telemetry.Protocol = strings.ToLower(strings.TrimSpace(c.Telemetry.Protocol))
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := levels[c.Log.Level]; ok {
		return l
	}
	return slog.LevelInfo
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
