package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/gateway/gatewaytest"
	"github.com/nextlevelbuilder/discordlite/pkg/protocol"
)

func TestSessionServiceAuthFlow(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Reply(protocol.MethodAuthInit, protocol.AuthInitResult{AuthURL: "https://discord.com/oauth2/authorize?x=1", SessionID: "pend-1"})
	c := dialTest(t, srv)
	svc := NewSessionService(c)

	init, err := svc.InitAuth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if init.PendingRequestID != "pend-1" || !strings.HasPrefix(init.AuthURL, "https://discord.com/") {
		t.Errorf("init = %+v", init)
	}

	tests := []struct {
		wire string
		want chat.AuthStatus
	}{
		{protocol.AuthStatusPending, chat.AuthPending},
		{protocol.AuthStatusAuthenticated, chat.AuthCompleted},
		{protocol.AuthStatusFailed, chat.AuthFailed},
		{"", chat.AuthUnrecognized},
		{"weird", chat.AuthUnrecognized},
	}
	for _, tt := range tests {
		t.Run("status "+tt.wire, func(t *testing.T) {
			srv.Reply(protocol.MethodAuthStatus, protocol.AuthStatusResult{Status: tt.wire, SessionID: "sess", ExpiresAt: 1700000000})
			res, err := svc.GetAuthStatus(context.Background(), "pend-1")
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != tt.want {
				t.Errorf("status = %v, want %v", res.Status, tt.want)
			}
			if res.ExpiresAt == nil || res.ExpiresAt.Unix() != 1700000000 {
				t.Errorf("expires = %v", res.ExpiresAt)
			}
		})
	}

	reqs := srv.Requests()
	var p protocol.AuthStatusParams
	json.Unmarshal(reqs[len(reqs)-1].Params, &p)
	if p.SessionID != "pend-1" {
		t.Errorf("status params = %+v", p)
	}
}

func TestSessionServiceRevoke(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	c := dialTest(t, srv)
	svc := NewSessionService(c)

	srv.Reply(protocol.MethodAuthRevoke, protocol.AuthRevokeResult{Success: true})
	if err := svc.RevokeAuth(context.Background(), "s1"); err != nil {
		t.Errorf("revoke: %v", err)
	}

	srv.Reply(protocol.MethodAuthRevoke, protocol.AuthRevokeResult{Success: false})
	if err := svc.RevokeAuth(context.Background(), "s1"); !chat.IsKind(err, chat.Unknown) || err == nil {
		t.Errorf("revoke unsuccessful: %v", err)
	}

	srv.Fail(protocol.MethodAuthRevoke, protocol.ErrUnauthorized, "expired")
	if err := svc.RevokeAuth(context.Background(), "s1"); !chat.IsKind(err, chat.Unauthorized) {
		t.Errorf("revoke unauthorized: %v", err)
	}
}

func TestGuildServiceMapping(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Reply(protocol.MethodGuildsList, protocol.GuildsListResult{Guilds: []protocol.GuildPayload{
		{ID: "g1", Name: "Gophers", Icon: "a1b2"},
		{ID: "g2", Name: "No Icon"},
		{ID: "g3", Name: "Full URL", Icon: "https://cdn.example/i.png"},
	}})
	srv.Reply(protocol.MethodChannelsList, protocol.ChannelsListResult{Channels: []protocol.ChannelPayload{
		{ID: "c1", Name: "general", Type: int(discordgo.ChannelTypeGuildText)},
		{ID: "c2", Name: "voice", Type: int(discordgo.ChannelTypeGuildVoice)},
		{ID: "c3", Name: "news", Type: int(discordgo.ChannelTypeGuildNews)},
		{ID: "c4", Name: "category", Type: int(discordgo.ChannelTypeGuildCategory)},
	}})
	c := dialTest(t, srv)
	svc := NewGuildService(c)

	guilds, err := svc.GetGuilds(context.Background(), "s", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(guilds) != 3 {
		t.Fatalf("guilds = %+v", guilds)
	}
	if guilds[0].IconURL != discordgo.EndpointGuildIcon("g1", "a1b2") {
		t.Errorf("icon = %q", guilds[0].IconURL)
	}
	if guilds[1].IconURL != "" || guilds[2].IconURL != "https://cdn.example/i.png" {
		t.Errorf("icons = %q, %q", guilds[1].IconURL, guilds[2].IconURL)
	}

	channels, err := svc.GetChannels(context.Background(), "s", "g1", false)
	if err != nil {
		t.Fatal(err)
	}
	want := []chat.ChannelKind{chat.ChannelText, chat.ChannelVoice, chat.ChannelAnnouncement, chat.ChannelUnknown}
	for i, ch := range channels {
		if ch.Kind != want[i] || ch.GuildID != "g1" {
			t.Errorf("channel %s: kind %s guild %s", ch.ID, ch.Kind, ch.GuildID)
		}
	}
}

func TestMessageServiceList(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(protocol.MethodMessagesList, func(_ context.Context, _ *gatewaytest.Peer, req *protocol.RequestFrame) *protocol.ResponseFrame {
		var p protocol.MessagesListParams
		json.Unmarshal(req.Params, &p)
		if p.Limit != 25 || p.Before != "m9" || p.ChannelID != "c1" {
			return protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "unexpected params")
		}
		return protocol.NewOKResponse(req.ID, protocol.MessagesListResult{Messages: []protocol.MessagePayload{
			{ID: "m1", Author: protocol.AuthorPayload{Username: "ana"}, Content: "hi", Timestamp: 1700000000, EditedTimestamp: 1700000060},
			{ID: "175928847299117063", Content: "no timestamp"},
		}})
	})
	c := dialTest(t, srv)
	svc := NewMessageService(c)

	msgs, err := svc.GetMessages(context.Background(), chat.MessageQuery{SessionID: "s", ChannelID: "c1", Limit: 25, BeforeID: "m9"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("msgs = %+v", msgs)
	}
	m := msgs[0]
	if m.AuthorUsername != "ana" || m.ChannelID != "c1" || m.Timestamp.Unix() != 1700000000 || m.EditedAt == nil {
		t.Errorf("first = %+v", m)
	}
	want, _ := discordgo.SnowflakeTimestamp("175928847299117063")
	if !msgs[1].Timestamp.Equal(want) || msgs[1].Timestamp.IsZero() {
		t.Errorf("snowflake timestamp = %v, want %v", msgs[1].Timestamp, want)
	}
}

func TestMessageServiceStream(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	subs := srv.Subscribable(protocol.MethodMessagesSubscribe)
	srv.Reply(protocol.MethodMessagesUnsubscribe, nil)
	c := dialTest(t, srv)
	svc := NewMessageService(c)

	stream, err := svc.StreamMessageEvents(context.Background(), "s", []string{"c1"})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	accepted := <-subs
	var params protocol.MessagesSubscribeParams
	json.Unmarshal(accepted.Params, &params)
	if params.SessionID != "s" || len(params.ChannelIDs) != 1 || params.ChannelIDs[0] != "c1" {
		t.Errorf("subscribe params = %+v", params)
	}

	peer := accepted.Peer
	peer.Event(accepted.ID, protocol.EventMessageCreate, protocol.MessagePayload{ID: "m1", ChannelID: "c1", Content: "new", Timestamp: 1})
	peer.Event(accepted.ID, protocol.EventMessageUpdate, protocol.MessagePayload{ID: "m1", ChannelID: "c1", Content: "edited", Timestamp: 1})
	peer.Event(accepted.ID, protocol.EventMessageDelete, protocol.MessageDeletePayload{ID: "m1", ChannelID: "c1"})
	peer.Event(accepted.ID, "message.reaction", map[string]string{"emoji": "+1"})
	peer.Event(accepted.ID, protocol.EventMessageCreate, "garbage")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wantTypes := []chat.EventType{chat.EventCreate, chat.EventUpdate, chat.EventDelete, chat.EventUnknown, chat.EventUnknown}
	for i, want := range wantTypes {
		ev, err := stream.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		if ev.Type != want {
			t.Errorf("event %d type = %v, want %v", i, ev.Type, want)
		}
		if want != chat.EventUnknown && (ev.MessageID != "m1" || ev.ChannelID != "c1") {
			t.Errorf("event %d = %+v", i, ev)
		}
	}
}

func TestChannelKind(t *testing.T) {
	tests := []struct {
		in   discordgo.ChannelType
		want chat.ChannelKind
	}{
		{discordgo.ChannelTypeGuildText, chat.ChannelText},
		{discordgo.ChannelTypeGuildVoice, chat.ChannelVoice},
		{discordgo.ChannelTypeGuildStageVoice, chat.ChannelVoice},
		{discordgo.ChannelTypeGuildNews, chat.ChannelAnnouncement},
		{discordgo.ChannelTypeDM, chat.ChannelUnknown},
		{discordgo.ChannelTypeGuildForum, chat.ChannelUnknown},
	}
	for _, tt := range tests {
		if got := channelKind(tt.in); got != tt.want {
			t.Errorf("channelKind(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
