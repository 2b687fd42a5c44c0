package browse

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

// ChannelBrowser lists the readable channels of one guild at a time and
// tracks the selected channel.
type ChannelBrowser struct {
	svc       chat.GuildService
	sessionID string
	cache     *listCache[chat.Channel]

	// OnSelect, when set, is called with every newly selected channel,
	// including auto-selection after Load.
	OnSelect func(chat.Channel)

	mu       sync.Mutex
	guildID  string
	channels []chat.Channel
	selected string
}

func NewChannelBrowser(svc chat.GuildService, sessionID string, opts CacheOptions) *ChannelBrowser {
	return &ChannelBrowser{
		svc:       svc,
		sessionID: sessionID,
		cache:     newListCache[chat.Channel](opts),
	}
}

// Load lists the text and announcement channels of guildID. Switching guilds
// clears the selection; the first channel is selected when nothing is.
func (b *ChannelBrowser) Load(ctx context.Context, guildID string, forceRefresh bool) ([]chat.Channel, error) {
	if guildID == "" {
		return nil, chat.Errorf(chat.InvalidArgument, "channels.load", "guild id is required")
	}

	b.mu.Lock()
	if b.guildID != guildID {
		b.guildID = guildID
		b.selected = ""
		b.channels = nil
	}
	b.mu.Unlock()

	slog.Info("loading channels", "guild", guildID, "force_refresh", forceRefresh)

	key := b.sessionID + "/" + guildID
	all, hit := []chat.Channel(nil), false
	if !forceRefresh {
		all, hit = b.cache.get(key)
	}
	if !hit {
		var err error
		all, err = b.svc.GetChannels(ctx, b.sessionID, guildID, forceRefresh)
		if err != nil {
			slog.Error("failed to load channels", "guild", guildID, "error", err)
			return nil, err
		}
		b.cache.put(key, all)
	}

	readable := make([]chat.Channel, 0, len(all))
	for _, ch := range all {
		if ch.Kind.Readable() {
			readable = append(readable, ch)
		}
	}

	b.mu.Lock()
	if b.guildID != guildID {
		// A newer Load switched guilds meanwhile.
		b.mu.Unlock()
		return readable, nil
	}
	b.channels = readable
	var picked *chat.Channel
	if b.selected == "" && len(readable) > 0 {
		b.selected = readable[0].ID
		picked = &readable[0]
	}
	out := slices.Clone(readable)
	b.mu.Unlock()

	slog.Info("loaded text channels", "guild", guildID, "count", len(readable), "cached", hit)
	if picked != nil && b.OnSelect != nil {
		b.OnSelect(*picked)
	}
	return out, nil
}

// Refresh reloads the current guild bypassing the cache.
func (b *ChannelBrowser) Refresh(ctx context.Context) ([]chat.Channel, error) {
	b.mu.Lock()
	guildID := b.guildID
	b.mu.Unlock()
	return b.Load(ctx, guildID, true)
}

// Select makes channelID the current channel. It must be in the last listing.
func (b *ChannelBrowser) Select(channelID string) (chat.Channel, error) {
	b.mu.Lock()
	i := slices.IndexFunc(b.channels, func(c chat.Channel) bool { return c.ID == channelID })
	if i < 0 {
		b.mu.Unlock()
		return chat.Channel{}, chat.Errorf(chat.InvalidArgument, "channels.select", "unknown channel %q", channelID)
	}
	b.selected = channelID
	ch := b.channels[i]
	b.mu.Unlock()

	slog.Info("selected channel", "channel", ch.Name)
	if b.OnSelect != nil {
		b.OnSelect(ch)
	}
	return ch, nil
}

// Selected returns the current channel, if any.
func (b *ChannelBrowser) Selected() (chat.Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.channels {
		if c.ID == b.selected {
			return c, true
		}
	}
	return chat.Channel{}, false
}

// Channels returns the last listing.
func (b *ChannelBrowser) Channels() []chat.Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.channels)
}
