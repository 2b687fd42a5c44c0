// Package messages keeps a channel's history page consistent while merging
// paginated fetches with a live event stream.
package messages

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

// MaxPageSize is the largest page the server accepts.
const MaxPageSize = 100

// Batch is one fetched page, sorted ascending.
type Batch struct {
	Messages []chat.Message
	HasMore  bool   // len(Messages) == requested limit
	OldestID string // id of Messages[0], "" when empty
}

// Repository validates history queries and normalises their results.
type Repository struct {
	svc chat.MessageService
}

func NewRepository(svc chat.MessageService) *Repository {
	return &Repository{svc: svc}
}

// GetMessages fetches up to limit messages of channelID older than beforeID
// (or the most recent when beforeID is empty).
func (r *Repository) GetMessages(ctx context.Context, sessionID, channelID string, limit int, beforeID string, forceRefresh bool) (Batch, error) {
	if channelID == "" {
		return Batch{}, chat.Errorf(chat.InvalidArgument, "messages.get", "channel id is required")
	}
	if err := ValidatePageSize(limit); err != nil {
		return Batch{}, err
	}

	msgs, err := r.svc.GetMessages(ctx, chat.MessageQuery{
		SessionID:    sessionID,
		ChannelID:    channelID,
		Limit:        limit,
		BeforeID:     beforeID,
		ForceRefresh: forceRefresh,
	})
	if err != nil {
		return Batch{}, err
	}

	chat.SortMessages(msgs)
	b := Batch{Messages: msgs, HasMore: len(msgs) == limit}
	if len(msgs) > 0 {
		b.OldestID = msgs[0].ID
	}
	slog.Debug("messages fetched", "channel", channelID, "count", len(msgs), "before", beforeID, "has_more", b.HasMore)
	return b, nil
}

// ValidatePageSize reports an InvalidArgument error unless 1 <= n <= MaxPageSize.
func ValidatePageSize(n int) error {
	if n < 1 || n > MaxPageSize {
		return chat.Errorf(chat.InvalidArgument, "messages.page_size", "page size must be between 1 and %d, got %d", MaxPageSize, n)
	}
	return nil
}
