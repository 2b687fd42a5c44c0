package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/pkg/protocol"
)

// SessionService implements chat.SessionService over the gateway.
type SessionService struct {
	c *Client
}

func NewSessionService(c *Client) *SessionService { return &SessionService{c: c} }

func (s *SessionService) InitAuth(ctx context.Context) (chat.AuthInit, error) {
	var res protocol.AuthInitResult
	if err := s.c.Call(ctx, protocol.MethodAuthInit, nil, &res); err != nil {
		return chat.AuthInit{}, err
	}
	return chat.AuthInit{AuthURL: res.AuthURL, PendingRequestID: res.SessionID}, nil
}

func (s *SessionService) GetAuthStatus(ctx context.Context, pendingRequestID string) (chat.AuthStatusResult, error) {
	var res protocol.AuthStatusResult
	err := s.c.Call(ctx, protocol.MethodAuthStatus, protocol.AuthStatusParams{SessionID: pendingRequestID}, &res)
	if err != nil {
		return chat.AuthStatusResult{}, err
	}

	out := chat.AuthStatusResult{SessionID: res.SessionID, Reason: res.Error}
	switch res.Status {
	case protocol.AuthStatusPending:
		out.Status = chat.AuthPending
	case protocol.AuthStatusAuthenticated:
		out.Status = chat.AuthCompleted
	case protocol.AuthStatusFailed:
		out.Status = chat.AuthFailed
	default:
		slog.Debug("unrecognized auth status from gateway", "status", res.Status)
		out.Status = chat.AuthUnrecognized
	}
	if res.ExpiresAt > 0 {
		t := time.Unix(res.ExpiresAt, 0)
		out.ExpiresAt = &t
	}
	return out, nil
}

func (s *SessionService) RevokeAuth(ctx context.Context, sessionID string) error {
	var res protocol.AuthRevokeResult
	if err := s.c.Call(ctx, protocol.MethodAuthRevoke, protocol.AuthRevokeParams{SessionID: sessionID}, &res); err != nil {
		return err
	}
	if !res.Success {
		return chat.Errorf(chat.Unknown, protocol.MethodAuthRevoke, "server did not revoke the session")
	}
	return nil
}

// GuildService implements chat.GuildService over the gateway.
type GuildService struct {
	c *Client
}

func NewGuildService(c *Client) *GuildService { return &GuildService{c: c} }

func (g *GuildService) GetGuilds(ctx context.Context, sessionID string, forceRefresh bool) ([]chat.Guild, error) {
	var res protocol.GuildsListResult
	err := g.c.Call(ctx, protocol.MethodGuildsList, protocol.GuildsListParams{
		SessionID:    sessionID,
		ForceRefresh: forceRefresh,
	}, &res)
	if err != nil {
		return nil, err
	}

	guilds := make([]chat.Guild, 0, len(res.Guilds))
	for _, p := range res.Guilds {
		guilds = append(guilds, chat.Guild{ID: p.ID, Name: p.Name, IconURL: guildIconURL(p.ID, p.Icon)})
	}
	return guilds, nil
}

func (g *GuildService) GetChannels(ctx context.Context, sessionID, guildID string, forceRefresh bool) ([]chat.Channel, error) {
	var res protocol.ChannelsListResult
	err := g.c.Call(ctx, protocol.MethodChannelsList, protocol.ChannelsListParams{
		SessionID:    sessionID,
		GuildID:      guildID,
		ForceRefresh: forceRefresh,
	}, &res)
	if err != nil {
		return nil, err
	}

	channels := make([]chat.Channel, 0, len(res.Channels))
	for _, p := range res.Channels {
		channels = append(channels, chat.Channel{
			ID:       p.ID,
			Name:     p.Name,
			Kind:     channelKind(discordgo.ChannelType(p.Type)),
			GuildID:  guildID,
			Position: p.Position,
		})
	}
	return channels, nil
}

// MessageService implements chat.MessageService over the gateway.
type MessageService struct {
	c *Client
}

func NewMessageService(c *Client) *MessageService { return &MessageService{c: c} }

func (m *MessageService) GetMessages(ctx context.Context, q chat.MessageQuery) ([]chat.Message, error) {
	var res protocol.MessagesListResult
	err := m.c.Call(ctx, protocol.MethodMessagesList, protocol.MessagesListParams{
		SessionID:    q.SessionID,
		ChannelID:    q.ChannelID,
		Limit:        q.Limit,
		Before:       q.BeforeID,
		ForceRefresh: q.ForceRefresh,
	}, &res)
	if err != nil {
		return nil, err
	}

	msgs := make([]chat.Message, 0, len(res.Messages))
	for _, p := range res.Messages {
		msgs = append(msgs, toMessage(p, q.ChannelID))
	}
	return msgs, nil
}

func (m *MessageService) StreamMessageEvents(ctx context.Context, sessionID string, channelIDs []string) (chat.EventStream, error) {
	sub, err := m.c.Subscribe(ctx, protocol.MethodMessagesSubscribe, protocol.MessagesSubscribeParams{
		SessionID:  sessionID,
		ChannelIDs: channelIDs,
	})
	if err != nil {
		return nil, err
	}
	return &messageStream{sub: sub}, nil
}

// messageStream decodes message events from a subscription.
type messageStream struct {
	sub *Subscription
}

func (s *messageStream) Recv(ctx context.Context) (chat.MessageEvent, error) {
	frame, err := s.sub.Next(ctx)
	if err != nil {
		return chat.MessageEvent{}, err
	}
	return decodeMessageEvent(frame), nil
}

func (s *messageStream) Close() error { return s.sub.Close() }

// decodeMessageEvent turns a frame into a chat event. Frames that cannot be
// decoded become EventUnknown so one bad frame does not end the stream.
func decodeMessageEvent(frame protocol.EventFrame) chat.MessageEvent {
	switch frame.Event {
	case protocol.EventMessageCreate, protocol.EventMessageUpdate:
		var p protocol.MessagePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.ID == "" {
			slog.Warn("undecodable message event", "event", frame.Event, "error", err)
			return chat.MessageEvent{}
		}
		msg := toMessage(p, "")
		if frame.Event == protocol.EventMessageCreate {
			return chat.CreateEvent(msg)
		}
		return chat.UpdateEvent(msg)

	case protocol.EventMessageDelete:
		var p protocol.MessageDeletePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.ID == "" {
			slog.Warn("undecodable message event", "event", frame.Event, "error", err)
			return chat.MessageEvent{}
		}
		return chat.DeleteEvent(p.ChannelID, p.ID)

	default:
		return chat.MessageEvent{}
	}
}

// toMessage maps a wire message. A missing timestamp is recovered from the
// snowflake id; channelID fills in a missing channel.
func toMessage(p protocol.MessagePayload, channelID string) chat.Message {
	m := chat.Message{
		ID:              p.ID,
		AuthorUsername:  p.Author.Username,
		AuthorAvatarURL: p.Author.AvatarURL,
		Content:         p.Content,
		ChannelID:       p.ChannelID,
	}
	if m.ChannelID == "" {
		m.ChannelID = channelID
	}
	if p.Timestamp > 0 {
		m.Timestamp = time.Unix(p.Timestamp, 0)
	} else if ts, err := discordgo.SnowflakeTimestamp(p.ID); err == nil {
		m.Timestamp = ts
	}
	if p.EditedTimestamp > 0 {
		t := time.Unix(p.EditedTimestamp, 0)
		m.EditedAt = &t
	}
	return m
}

func channelKind(t discordgo.ChannelType) chat.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return chat.ChannelText
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return chat.ChannelVoice
	case discordgo.ChannelTypeGuildNews:
		return chat.ChannelAnnouncement
	default:
		return chat.ChannelUnknown
	}
}

// guildIconURL expands a Discord icon hash into a CDN URL. Values that are
// already URLs are returned as-is.
func guildIconURL(guildID, icon string) string {
	if icon == "" || strings.Contains(icon, "://") {
		return icon
	}
	return discordgo.EndpointGuildIcon(guildID, icon)
}

var (
	_ chat.SessionService = (*SessionService)(nil)
	_ chat.GuildService   = (*GuildService)(nil)
	_ chat.MessageService = (*MessageService)(nil)
	_ chat.EventStream    = (*messageStream)(nil)
)
