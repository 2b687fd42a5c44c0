package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cli/browser"

	"github.com/nextlevelbuilder/discordlite/internal/auth"
	"github.com/nextlevelbuilder/discordlite/internal/browse"
	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/config"
	"github.com/nextlevelbuilder/discordlite/internal/gateway"
	"github.com/nextlevelbuilder/discordlite/internal/secrets"
)

// app holds the wired components for one command invocation.
type app struct {
	cfgPath  string
	cfg      *config.Config
	store    secrets.Store
	client   *gateway.Client
	guilds   *gateway.GuildService
	messages *gateway.MessageService
	auth     *auth.Coordinator

	shutdownTelemetry func(context.Context) error
}

// newApp loads config and wires the gateway services, the secret store and
// the auth coordinator. No connection is made until the first call.
func newApp(ctx context.Context) (*app, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	store, err := secrets.Open(secretsOptions(cfg))
	if err != nil {
		return nil, err
	}

	client, err := gateway.New(gatewayConfig(cfg))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfgPath:           cfgPath,
		cfg:               cfg,
		store:             store,
		client:            client,
		guilds:            gateway.NewGuildService(client),
		messages:          gateway.NewMessageService(client),
		shutdownTelemetry: initTelemetry(ctx, cfg),
	}
	a.auth = auth.NewCoordinator(gateway.NewSessionService(client), store, auth.Options{
		PollInterval: cfg.PollInterval(),
		PollTimeout:  cfg.PollTimeout(),
		OpenURL:      a.openURL,
	})
	return a, nil
}

func secretsOptions(cfg *config.Config) secrets.Options {
	return secrets.Options{
		Backend:       cfg.Secrets.Backend,
		ServiceName:   cfg.Secrets.ServiceName,
		Path:          cfg.Secrets.Path,
		EncryptionKey: cfg.Secrets.EncryptionKey,
	}
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	return gateway.Config{
		Endpoint:          cfg.Gateway.Endpoint,
		Path:              cfg.Gateway.Path,
		CallTimeout:       cfg.CallTimeout(),
		HandshakeTimeout:  cfg.HandshakeTimeout(),
		RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
		Burst:             cfg.Gateway.Burst,
	}
}

// openURL prints the login URL and, unless disabled, opens the browser.
func (a *app) openURL(url string) error {
	fmt.Fprintf(os.Stderr, "Open this URL to sign in with Discord:\n\n  %s\n\n", url)
	if !a.cfg.Auth.OpenBrowser {
		return nil
	}
	return browser.OpenURL(url)
}

// requireSession restores the stored session or returns errNotLoggedIn.
func (a *app) requireSession(ctx context.Context) (chat.Session, error) {
	st := a.auth.RestoreSession(ctx)
	if !st.Authenticated() {
		return chat.Session{}, errNotLoggedIn
	}
	return st.Session, nil
}

func (a *app) cacheOptions() browse.CacheOptions {
	return browse.CacheOptions{Size: a.cfg.Messages.CacheSize, TTL: a.cfg.CacheTTL()}
}

func (a *app) Close() {
	a.auth.Close()
	if err := a.client.Close(); err != nil {
		slog.Debug("gateway close", "error", err)
	}
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}
}
