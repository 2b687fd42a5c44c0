package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/pkg/protocol"
)

// subscriptionBuffer is how many undelivered events a subscription holds
// before it is failed as too slow.
const subscriptionBuffer = 256

// Subscription is a server-side event feed. Next returns events in arrival
// order until the feed ends.
type Subscription struct {
	id          string
	unsubscribe string
	client      *Client
	cn          *conn

	events chan protocol.EventFrame

	endOnce sync.Once
	done    chan struct{}
	err     error

	closeOnce sync.Once
}

func newSubscription(c *Client, cn *conn, id, unsubscribe string) *Subscription {
	return &Subscription{
		id:          id,
		unsubscribe: unsubscribe,
		client:      c,
		cn:          cn,
		events:      make(chan protocol.EventFrame, subscriptionBuffer),
		done:        make(chan struct{}),
	}
}

// ID returns the server-assigned subscription id.
func (s *Subscription) ID() string { return s.id }

// Next blocks for the next event. It returns io.EOF when the server closed
// the feed cleanly, ctx.Err() when ctx is done, and a *chat.Error when the
// feed broke.
func (s *Subscription) Next(ctx context.Context) (protocol.EventFrame, error) {
	// Drain buffered events before reporting the end of the feed.
	select {
	case ev := <-s.events:
		return ev, nil
	default:
	}

	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.done:
		select {
		case ev := <-s.events:
			return ev, nil
		default:
		}
		return protocol.EventFrame{}, s.err
	case <-ctx.Done():
		return protocol.EventFrame{}, ctx.Err()
	}
}

// Close ends the subscription locally and asks the server to drop it.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.terminate(io.EOF)
		s.cn.removeSubscription(s.id)
		if !s.cn.alive() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.client.Call(ctx, s.unsubscribe, protocol.MessagesUnsubscribeParams{SubscriptionID: s.id}, nil)
		if err != nil {
			slog.Debug("unsubscribe failed", "subscription", s.id, "error", err)
		}
	})
	return nil
}

func (s *Subscription) deliver(ev protocol.EventFrame) {
	if ev.Event == protocol.EventSubscriptionClosed {
		s.terminate(closedError(ev))
		return
	}
	select {
	case <-s.done:
	case s.events <- ev:
	default:
		slog.Warn("subscription buffer full, dropping subscription", "subscription", s.id)
		s.cn.removeSubscription(s.id)
		s.terminate(chat.Errorf(chat.StreamFailed, "gateway.stream", "subscriber fell behind"))
	}
}

func (s *Subscription) terminate(err error) {
	s.endOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

// closedError maps a subscription.closed payload: no error means a clean end.
func closedError(ev protocol.EventFrame) error {
	var shape protocol.ErrorShape
	if len(ev.Payload) == 0 || json.Unmarshal(ev.Payload, &shape) != nil || shape.Code == "" {
		return io.EOF
	}
	kind := chat.StreamFailed
	if kindForCode(shape.Code) == chat.Unauthorized {
		kind = chat.Unauthorized
	}
	return &chat.Error{Kind: kind, Op: "gateway.stream", Message: shape.Message}
}
