package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/discordlite/internal/browse"
	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/messages"
)

func guildsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "guilds",
		Short: "List the guilds you belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.requireSession(ctx)
			if err != nil {
				return err
			}
			b := browse.NewGuildBrowser(a.guilds, session.ID, a.cacheOptions())
			guilds, err := b.Load(ctx, refresh)
			if err != nil {
				return err
			}
			return printGuilds(os.Stdout, guilds, "")
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass server-side caches")
	return cmd
}

func channelsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "channels <guild-id>",
		Short: "List the text channels of a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.requireSession(ctx)
			if err != nil {
				return err
			}
			b := browse.NewChannelBrowser(a.guilds, session.ID, a.cacheOptions())
			channels, err := b.Load(ctx, args[0], refresh)
			if err != nil {
				return err
			}
			return printChannels(os.Stdout, channels, "")
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass server-side caches")
	return cmd
}

// browseCmd walks guild → channel → history with interactive selects.
func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Pick a guild and channel interactively and show recent messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.requireSession(ctx)
			if err != nil {
				return err
			}

			engine, err := messages.NewEngine(a.messages, session.ID, messages.Options{PageSize: a.cfg.Messages.PageSize})
			if err != nil {
				return err
			}
			defer engine.Close()

			guilds := browse.NewGuildBrowser(a.guilds, session.ID, a.cacheOptions())
			channels := browse.NewChannelBrowser(a.guilds, session.ID, a.cacheOptions())

			for {
				guild, err := pickGuild(ctx, guilds)
				if err != nil {
					return err
				}
				channel, err := pickChannel(ctx, channels, guild)
				if err != nil {
					return err
				}
				if channel.ID == "" {
					fmt.Printf("%s has no text channels.\n", guild.Name)
					continue
				}

				page, err := engine.LoadInitial(ctx, channel.ID, false)
				if err != nil {
					return err
				}
				fmt.Println(styleAuthor.Render(fmt.Sprintf("%s › #%s", guild.Name, channel.Name)))
				if err := printMessages(os.Stdout, page.Messages); err != nil {
					return err
				}

				again, err := promptConfirm("Browse another channel?", true)
				if err != nil || !again {
					return err
				}
			}
		},
	}
}

func pickGuild(ctx context.Context, b *browse.GuildBrowser) (chat.Guild, error) {
	guilds, err := b.Load(ctx, false)
	if err != nil {
		return chat.Guild{}, err
	}
	selected, _ := b.Selected()
	i, err := selectIndex("Guild", guilds, func(g chat.Guild) string { return g.Name }, indexOf(guilds, selected.ID, func(g chat.Guild) string { return g.ID }))
	if errors.Is(err, errNoChoices) {
		return chat.Guild{}, fmt.Errorf("you are not a member of any guild")
	}
	if err != nil {
		return chat.Guild{}, err
	}
	return b.Select(guilds[i].ID)
}

// pickChannel returns a zero Channel when the guild has no readable channels.
func pickChannel(ctx context.Context, b *browse.ChannelBrowser, guild chat.Guild) (chat.Channel, error) {
	channels, err := b.Load(ctx, guild.ID, false)
	if err != nil || len(channels) == 0 {
		return chat.Channel{}, err
	}
	selected, _ := b.Selected()
	i, err := selectIndex("Channel", channels, func(c chat.Channel) string { return "#" + c.Name }, indexOf(channels, selected.ID, func(c chat.Channel) string { return c.ID }))
	if err != nil {
		return chat.Channel{}, err
	}
	return b.Select(channels[i].ID)
}

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, it := range items {
		if key(it) == id {
			return i
		}
	}
	return 0
}
