// Package config loads discordlite settings from a JSON5 or YAML file with
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/messages"
	"github.com/nextlevelbuilder/discordlite/internal/secrets"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DISCORDLITE_"

// Config is the full client configuration.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Messages  MessagesConfig  `json:"messages" yaml:"messages"`
	Secrets   SecretsConfig   `json:"secrets" yaml:"secrets"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// GatewayConfig locates the remote gateway.
type GatewayConfig struct {
	Endpoint            string `json:"endpoint" yaml:"endpoint"` // host:port or ws(s):// URL
	Path                string `json:"path,omitempty" yaml:"path,omitempty"`
	CallTimeoutSec      int    `json:"callTimeoutSec,omitempty" yaml:"callTimeoutSec,omitempty"`
	HandshakeTimeoutSec int    `json:"handshakeTimeoutSec,omitempty" yaml:"handshakeTimeoutSec,omitempty"`
	RequestsPerMinute   int    `json:"requestsPerMinute,omitempty" yaml:"requestsPerMinute,omitempty"`
	Burst               int    `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// AuthConfig tunes the login polling loop.
type AuthConfig struct {
	PollIntervalMs int  `json:"pollIntervalMs" yaml:"pollIntervalMs"`
	PollTimeoutSec int  `json:"pollTimeoutSec" yaml:"pollTimeoutSec"`
	OpenBrowser    bool `json:"openBrowser" yaml:"openBrowser"`
}

// MessagesConfig tunes history paging.
type MessagesConfig struct {
	PageSize        int `json:"pageSize" yaml:"pageSize"`
	CacheSize       int `json:"cacheSize,omitempty" yaml:"cacheSize,omitempty"` // guild/channel list cache entries
	CacheTTLSeconds int `json:"cacheTtlSec,omitempty" yaml:"cacheTtlSec,omitempty"`
}

// SecretsConfig selects where the session id is stored.
type SecretsConfig struct {
	Backend     string `json:"backend" yaml:"backend"` // keyring, file, memory
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`

	// EncryptionKey seals stored values (32 bytes raw, hex or base64).
	EncryptionKey string `json:"encryptionKey,omitempty" yaml:"encryptionKey,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// TelemetryConfig configures OTLP trace export (builds with -tags otel).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc, http
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Endpoint:            "localhost:18790",
			Path:                "/ws",
			CallTimeoutSec:      15,
			HandshakeTimeoutSec: 10,
			RequestsPerMinute:   120,
			Burst:               10,
		},
		Auth: AuthConfig{
			PollIntervalMs: 2000,
			PollTimeoutSec: 60,
			OpenBrowser:    true,
		},
		Messages: MessagesConfig{
			PageSize:        messages.DefaultPageSize,
			CacheSize:       64,
			CacheTTLSeconds: 300,
		},
		Secrets: SecretsConfig{
			Backend:     secrets.BackendKeyring,
			ServiceName: secrets.DefaultServiceName,
			Path:        "~/.discordlite/secrets.json",
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "discordlite",
		},
	}
}

// DefaultPath returns ~/.discordlite/config.json5.
func DefaultPath() string {
	return ExpandHome("~/.discordlite/config.json5")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML or JSON depending on the extension.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json5.Unmarshal(data, cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// applyEnv overrides fields from DISCORDLITE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("ENDPOINT", &c.Gateway.Endpoint)
	str("SECRETS_BACKEND", &c.Secrets.Backend)
	str("SECRETS_PATH", &c.Secrets.Path)
	str("SECRETS_KEY", &c.Secrets.EncryptionKey)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)

	return errors.Join(
		num("POLL_INTERVAL_MS", &c.Auth.PollIntervalMs),
		num("POLL_TIMEOUT_SEC", &c.Auth.PollTimeoutSec),
		num("PAGE_SIZE", &c.Messages.PageSize),
		num("REQUESTS_PER_MINUTE", &c.Gateway.RequestsPerMinute),
		flag("OPEN_BROWSER", &c.Auth.OpenBrowser),
		flag("TELEMETRY_ENABLED", &c.Telemetry.Enabled),
	)
}

// Validate checks ranges. Page size errors are chat.InvalidArgument.
func (c *Config) Validate() error {
	if err := messages.ValidatePageSize(c.Messages.PageSize); err != nil {
		return err
	}
	var errs []error
	if strings.TrimSpace(c.Gateway.Endpoint) == "" {
		errs = append(errs, errors.New("gateway.endpoint is required"))
	}
	if c.Auth.PollIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("auth.pollIntervalMs must be > 0, got %d", c.Auth.PollIntervalMs))
	}
	if c.Auth.PollTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("auth.pollTimeoutSec must be > 0, got %d", c.Auth.PollTimeoutSec))
	}
	switch c.Secrets.Backend {
	case secrets.BackendKeyring, secrets.BackendFile, secrets.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("secrets.backend %q is not one of keyring, file, memory", c.Secrets.Backend))
	}
	if _, ok := levels[c.Log.Level]; !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	if len(errs) > 0 {
		return &chat.Error{Kind: chat.InvalidArgument, Op: "config.validate", Err: errors.Join(errs...)}
	}
	return nil
}

// PollInterval returns Auth.PollIntervalMs as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Auth.PollIntervalMs) * time.Millisecond
}

// PollTimeout returns Auth.PollTimeoutSec as a duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Auth.PollTimeoutSec) * time.Second
}

// CallTimeout returns the per-call gateway timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Gateway.CallTimeoutSec) * time.Second
}

// HandshakeTimeout returns the gateway dial timeout.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Gateway.HandshakeTimeoutSec) * time.Second
}

// CacheTTL returns the guild/channel list cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Messages.CacheTTLSeconds) * time.Second
}
