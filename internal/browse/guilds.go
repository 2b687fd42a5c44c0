package browse

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

// GuildBrowser lists the session's guilds and tracks the selected one.
type GuildBrowser struct {
	svc       chat.GuildService
	sessionID string
	cache     *listCache[chat.Guild]

	mu       sync.Mutex
	guilds   []chat.Guild
	selected string
}

func NewGuildBrowser(svc chat.GuildService, sessionID string, opts CacheOptions) *GuildBrowser {
	return &GuildBrowser{
		svc:       svc,
		sessionID: sessionID,
		cache:     newListCache[chat.Guild](opts),
	}
}

// Load lists guilds, served from cache unless forceRefresh. The first guild
// is selected when nothing is.
func (b *GuildBrowser) Load(ctx context.Context, forceRefresh bool) ([]chat.Guild, error) {
	slog.Info("loading guilds", "force_refresh", forceRefresh)

	guilds, hit := []chat.Guild(nil), false
	if !forceRefresh {
		guilds, hit = b.cache.get(b.sessionID)
	}
	if !hit {
		var err error
		guilds, err = b.svc.GetGuilds(ctx, b.sessionID, forceRefresh)
		if err != nil {
			slog.Error("failed to load guilds", "error", err)
			return nil, err
		}
		b.cache.put(b.sessionID, guilds)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.guilds = slices.Clone(guilds)
	if b.selected == "" && len(b.guilds) > 0 {
		b.selected = b.guilds[0].ID
	}
	slog.Info("loaded guilds", "count", len(b.guilds), "cached", hit)
	return slices.Clone(b.guilds), nil
}

// Refresh reloads bypassing the cache.
func (b *GuildBrowser) Refresh(ctx context.Context) ([]chat.Guild, error) {
	return b.Load(ctx, true)
}

// Select makes guildID the current guild. It must be in the last listing.
func (b *GuildBrowser) Select(guildID string) (chat.Guild, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.guilds, func(g chat.Guild) bool { return g.ID == guildID })
	if i < 0 {
		return chat.Guild{}, chat.Errorf(chat.InvalidArgument, "guilds.select", "unknown guild %q", guildID)
	}
	b.selected = guildID
	slog.Info("selected guild", "guild", b.guilds[i].Name)
	return b.guilds[i], nil
}

// Selected returns the current guild, if any.
func (b *GuildBrowser) Selected() (chat.Guild, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.guilds {
		if g.ID == b.selected {
			return g, true
		}
	}
	return chat.Guild{}, false
}

// Guilds returns the last listing.
func (b *GuildBrowser) Guilds() []chat.Guild {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.guilds)
}
