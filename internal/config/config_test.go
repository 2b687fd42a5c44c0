package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Gateway.Endpoint != def.Gateway.Endpoint || cfg.Messages.PageSize != 50 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PollInterval() != 2*time.Second || cfg.PollTimeout() != 60*time.Second {
		t.Errorf("poll = %v / %v", cfg.PollInterval(), cfg.PollTimeout())
	}
	if strings.HasPrefix(cfg.Secrets.Path, "~") {
		t.Errorf("secrets path not expanded: %s", cfg.Secrets.Path)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json5", `{
		// comments and trailing commas are fine
		gateway: { endpoint: "chat.example.com:443", },
		messages: { pageSize: 25 },
		log: { level: "DEBUG", format: "json" },
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Endpoint != "chat.example.com:443" || cfg.Messages.PageSize != 25 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	// untouched sections keep defaults
	if cfg.Auth.PollTimeoutSec != 60 {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
gateway:
  endpoint: localhost:9000
auth:
  pollIntervalMs: 500
  pollTimeoutSec: 30
secrets:
  backend: file
  path: /tmp/discordlite-secrets.json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval() != 500*time.Millisecond || cfg.PollTimeout() != 30*time.Second {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Secrets.Backend != "file" || cfg.Secrets.Path != "/tmp/discordlite-secrets.json" {
		t.Errorf("secrets = %+v", cfg.Secrets)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json5", `{ gateway: `)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISCORDLITE_ENDPOINT", "env.example:1")
	t.Setenv("DISCORDLITE_PAGE_SIZE", "10")
	t.Setenv("DISCORDLITE_POLL_INTERVAL_MS", "250")
	t.Setenv("DISCORDLITE_OPEN_BROWSER", "false")
	t.Setenv("DISCORDLITE_SECRETS_BACKEND", "Memory")

	path := writeFile(t, t.TempDir(), "config.json5", `{ gateway: { endpoint: "file.example:2" }, messages: { pageSize: 40 } }`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Endpoint != "env.example:1" || cfg.Messages.PageSize != 10 || cfg.Auth.PollIntervalMs != 250 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Auth.OpenBrowser {
		t.Error("OPEN_BROWSER=false ignored")
	}
	if cfg.Secrets.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Secrets.Backend)
	}
}

func TestEnvOverrideBadNumber(t *testing.T) {
	t.Setenv("DISCORDLITE_PAGE_SIZE", "lots")
	if _, err := Load(filepath.Join(t.TempDir(), "none.json5")); err == nil || !strings.Contains(err.Error(), "DISCORDLITE_PAGE_SIZE") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"page size 1", func(c *Config) { c.Messages.PageSize = 1 }, true},
		{"page size 100", func(c *Config) { c.Messages.PageSize = 100 }, true},
		{"page size 0", func(c *Config) { c.Messages.PageSize = 0 }, false},
		{"page size 101", func(c *Config) { c.Messages.PageSize = 101 }, false},
		{"no endpoint", func(c *Config) { c.Gateway.Endpoint = " " }, false},
		{"zero interval", func(c *Config) { c.Auth.PollIntervalMs = 0 }, false},
		{"negative timeout", func(c *Config) { c.Auth.PollTimeoutSec = -1 }, false},
		{"bad backend", func(c *Config) { c.Secrets.Backend = "vault" }, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok != (err == nil) {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !chat.IsKind(err, chat.InvalidArgument) {
				t.Errorf("kind = %v, want InvalidArgument", chat.KindOf(err))
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.json5", "out.yaml"} {
		cfg := Default()
		cfg.Messages.PageSize = 77
		path := filepath.Join(dir, "nested", name)
		if err := Save(path, cfg); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if got.Messages.PageSize != 77 {
			t.Errorf("%s: page size = %d", name, got.Messages.PageSize)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := map[string]string{
		"~":          home,
		"~/a/b.json": filepath.Join(home, "a", "b.json"),
		"/abs/path":  "/abs/path",
		"rel/~path":  "rel/~path",
	}
	for in, want := range tests {
		if got := ExpandHome(in); got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json5", `{ messages: { pageSize: 20 } }`)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond
	got := make(chan int, 4)
	w.OnChange(func(cfg *Config) { got <- cfg.Messages.PageSize })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// An invalid edit is not delivered.
	writeFile(t, dir, "config.json5", `{ messages: { pageSize: 500 } }`)
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "config.json5", `{ messages: { pageSize: 30 } }`)

	select {
	case n := <-got:
		if n != 30 {
			t.Errorf("page size = %d, want 30", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}
}
