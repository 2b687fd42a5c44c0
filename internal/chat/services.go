package chat

import "context"

// SessionService is the remote surface for login and revocation.
type SessionService interface {
	InitAuth(ctx context.Context) (AuthInit, error)
	GetAuthStatus(ctx context.Context, pendingRequestID string) (AuthStatusResult, error)
	RevokeAuth(ctx context.Context, sessionID string) error
}

// MessageQuery selects a page of history. An empty BeforeID asks for the
// most recent messages.
type MessageQuery struct {
	SessionID    string
	ChannelID    string
	Limit        int
	BeforeID     string
	ForceRefresh bool
}

// MessageService is the remote surface for message history and live events.
type MessageService interface {
	GetMessages(ctx context.Context, q MessageQuery) ([]Message, error)

	// StreamMessageEvents opens a live feed for channelIDs. The stream is
	// restartable by calling again.
	StreamMessageEvents(ctx context.Context, sessionID string, channelIDs []string) (EventStream, error)
}

// EventStream is a lazy sequence of message events.
//
// Recv blocks until the next event arrives. It returns io.EOF when the
// server ends the stream cleanly, ctx.Err() when ctx is cancelled, and an
// *Error of kind StreamFailed or Unauthorized when the stream breaks. Close
// releases the subscription and is safe to call more than once.
type EventStream interface {
	Recv(ctx context.Context) (MessageEvent, error)
	Close() error
}

// GuildService lists the guilds and channels visible to a session.
type GuildService interface {
	GetGuilds(ctx context.Context, sessionID string, forceRefresh bool) ([]Guild, error)
	GetChannels(ctx context.Context, sessionID, guildID string, forceRefresh bool) ([]Channel, error)
}
