package protocol

// Auth status values reported by auth.status.
const (
	AuthStatusPending       = "pending"
	AuthStatusAuthenticated = "authenticated"
	AuthStatusFailed        = "failed"
)

// ConnectParams is the handshake sent as the first request on a connection.
type ConnectParams struct {
	Protocol int    `json:"protocol"`
	Client   string `json:"client,omitempty"`
}

// AuthInitResult is returned by auth.init. SessionID identifies the pending
// login request until the user completes the browser flow.
type AuthInitResult struct {
	AuthURL   string `json:"authUrl"`
	SessionID string `json:"sessionId"`
}

type AuthStatusParams struct {
	SessionID string `json:"sessionId"`
}

// AuthStatusResult is returned by auth.status. SessionID and ExpiresAt are
// only set once Status is "authenticated"; when SessionID is empty the pending
// id becomes the session id.
type AuthStatusResult struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"` // unix seconds
	Error     string `json:"error,omitempty"`
}

type AuthRevokeParams struct {
	SessionID string `json:"sessionId"`
}

type AuthRevokeResult struct {
	Success bool `json:"success"`
}

type GuildsListParams struct {
	SessionID    string `json:"sessionId"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

type GuildPayload struct {
	ID   string `json:"discordGuildId"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type GuildsListResult struct {
	Guilds []GuildPayload `json:"guilds"`
}

type ChannelsListParams struct {
	SessionID    string `json:"sessionId"`
	GuildID      string `json:"guildId"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

// ChannelPayload carries Discord's numeric channel type in Type.
type ChannelPayload struct {
	ID       string `json:"discordChannelId"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	Position int    `json:"position,omitempty"`
}

type ChannelsListResult struct {
	Channels []ChannelPayload `json:"channels"`
}

type MessagesListParams struct {
	SessionID    string `json:"sessionId"`
	ChannelID    string `json:"channelId"`
	Limit        int    `json:"limit"`
	Before       string `json:"before,omitempty"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

type AuthorPayload struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// MessagePayload is a message as sent on the wire. Timestamps are unix
// seconds; zero means "not provided".
type MessagePayload struct {
	ID              string        `json:"discordMessageId"`
	ChannelID       string        `json:"channelId"`
	Author          AuthorPayload `json:"author"`
	Content         string        `json:"content"`
	Timestamp       int64         `json:"timestamp,omitempty"`
	EditedTimestamp int64         `json:"editedTimestamp,omitempty"`
}

type MessagesListResult struct {
	Messages []MessagePayload `json:"messages"`
}

type MessagesSubscribeParams struct {
	SessionID  string   `json:"sessionId"`
	ChannelIDs []string `json:"channelIds"`
}

type MessagesSubscribeResult struct {
	SubscriptionID string `json:"subscriptionId"`
}

type MessagesUnsubscribeParams struct {
	SubscriptionID string `json:"subscriptionId"`
}

// MessageDeletePayload is the payload of message.delete events.
type MessageDeletePayload struct {
	ID        string `json:"discordMessageId"`
	ChannelID string `json:"channelId"`
}
