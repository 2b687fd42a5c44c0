package chat

import "time"

// Session is a durable credential for a logged-in user. ID is opaque.
type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session has a known expiry before now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Guild is a community the user belongs to.
type Guild struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

// ChannelKind classifies a channel.
type ChannelKind string

const (
	ChannelText         ChannelKind = "TEXT"
	ChannelVoice        ChannelKind = "VOICE"
	ChannelAnnouncement ChannelKind = "ANNOUNCEMENT"
	ChannelUnknown      ChannelKind = "UNKNOWN"
)

// Readable reports whether the channel carries a message timeline.
func (k ChannelKind) Readable() bool {
	return k == ChannelText || k == ChannelAnnouncement
}

// Channel is an immutable snapshot from the last fetch; identity is ID.
type Channel struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Kind     ChannelKind `json:"kind"`
	GuildID  string      `json:"guild_id"`
	Position int         `json:"position,omitempty"`
}

// Message is a single chat message. Messages order by Timestamp, then ID.
type Message struct {
	ID              string     `json:"id"`
	AuthorUsername  string     `json:"author_username"`
	AuthorAvatarURL string     `json:"author_avatar_url,omitempty"`
	Content         string     `json:"content"`
	Timestamp       time.Time  `json:"timestamp"`
	ChannelID       string     `json:"channel_id"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
}

// EventType tags a MessageEvent.
type EventType int

const (
	EventUnknown EventType = iota
	EventCreate
	EventUpdate
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MessageEvent is a mutation delivered by the live stream. Message is set for
// create and update; MessageID and ChannelID are set for every known type.
type MessageEvent struct {
	Type      EventType
	Message   Message
	MessageID string
	ChannelID string
}

// CreateEvent builds a create event for m.
func CreateEvent(m Message) MessageEvent {
	return MessageEvent{Type: EventCreate, Message: m, MessageID: m.ID, ChannelID: m.ChannelID}
}

// UpdateEvent builds an update event for m.
func UpdateEvent(m Message) MessageEvent {
	return MessageEvent{Type: EventUpdate, Message: m, MessageID: m.ID, ChannelID: m.ChannelID}
}

// DeleteEvent builds a delete event for the message id in channelID.
func DeleteEvent(channelID, messageID string) MessageEvent {
	return MessageEvent{Type: EventDelete, MessageID: messageID, ChannelID: channelID}
}

// AuthStatus is the state of a pending login request on the server.
type AuthStatus int

const (
	AuthUnrecognized AuthStatus = iota
	AuthPending
	AuthCompleted
	AuthFailed
)

func (s AuthStatus) String() string {
	switch s {
	case AuthPending:
		return "pending"
	case AuthCompleted:
		return "completed"
	case AuthFailed:
		return "failed"
	default:
		return "unrecognized"
	}
}

// AuthInit is the result of starting a login: the URL the user opens in a
// browser and the id that correlates status polls with this attempt.
type AuthInit struct {
	AuthURL          string
	PendingRequestID string
}

// AuthStatusResult is one poll answer. SessionID and ExpiresAt are only
// meaningful when Status is AuthCompleted.
type AuthStatusResult struct {
	Status    AuthStatus
	SessionID string
	ExpiresAt *time.Time
	Reason    string
}
