package cmd

import (
	"testing"

	"github.com/nextlevelbuilder/discordlite/internal/config"
)

func TestRedactConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Secrets.EncryptionKey = "0123456789abcdef0123456789abcdef"
	cfg.Telemetry.Headers = map[string]string{
		"Authorization": "Bearer abcdefghijklmnop",
		"x-short":       "abc",
	}

	raw := redactConfig(cfg)
	tel := raw["telemetry"].(map[string]any)
	headers := tel["headers"].(map[string]any)
	if got := headers["Authorization"]; got != "Bear****mnop" {
		t.Errorf("Authorization = %v", got)
	}
	if got := headers["x-short"]; got != "****" {
		t.Errorf("x-short = %v", got)
	}
	sec := raw["secrets"].(map[string]any)
	if got := sec["encryptionKey"]; got != "0123****cdef" {
		t.Errorf("encryptionKey = %v", got)
	}
	gw := raw["gateway"].(map[string]any)
	if gw["endpoint"] != cfg.Gateway.Endpoint {
		t.Errorf("endpoint redacted: %v", gw["endpoint"])
	}
}

func TestResolveConfigPath(t *testing.T) {
	defer func() { cfgFile = "" }()

	t.Setenv("DISCORDLITE_CONFIG", "/etc/discordlite.yaml")
	if got := resolveConfigPath(); got != "/etc/discordlite.yaml" {
		t.Errorf("env path = %q", got)
	}
	cfgFile = "/tmp/flag.json5"
	if got := resolveConfigPath(); got != "/tmp/flag.json5" {
		t.Errorf("flag path = %q", got)
	}
}
