package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/config"
	"github.com/nextlevelbuilder/discordlite/internal/messages"
	"github.com/nextlevelbuilder/discordlite/internal/retry"
)

func TestFollowerIgnoresSnapshotsBeforePrime(t *testing.T) {
	f := newFollower()
	f.onChange(messages.Page{Status: messages.StatusLoaded, StreamErr: errors.New("boom")})
	select {
	case err := <-f.failures:
		t.Fatalf("failure before prime: %v", err)
	default:
	}
	if len(f.seen) != 0 {
		t.Errorf("seen = %v", f.seen)
	}
}

func TestFollowerTracksNewMessagesAndFailures(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	f := newFollower()
	f.prime(messages.Page{Messages: []chat.Message{{ID: "1"}}})

	f.onChange(messages.Page{Status: messages.StatusLoaded, Messages: []chat.Message{{ID: "1"}, {ID: "2"}}})
	if !f.seen["2"] {
		t.Error("new message not recorded")
	}

	streamErr := chat.Errorf(chat.StreamFailed, "messages.stream", "stream ended")
	page := messages.Page{Status: messages.StatusLoaded, StreamErr: streamErr}
	f.onChange(page)
	f.onChange(page)

	select {
	case err := <-f.failures:
		if !chat.IsKind(err, chat.StreamFailed) {
			t.Errorf("err = %v", err)
		}
	default:
		t.Fatal("stream failure not reported")
	}
	select {
	case err := <-f.failures:
		t.Errorf("same failure reported twice: %v", err)
	default:
	}
}

type stubStream struct {
	errs chan error
}

func (s *stubStream) Recv(ctx context.Context) (chat.MessageEvent, error) {
	select {
	case <-ctx.Done():
		return chat.MessageEvent{}, ctx.Err()
	case err := <-s.errs:
		return chat.MessageEvent{}, err
	}
}

func (s *stubStream) Close() error { return nil }

// stubMessages serves one channel's history, newest limit messages.
type stubMessages struct {
	mu           sync.Mutex
	history      []chat.Message
	queries      []chat.MessageQuery
	streams      []*stubStream
	subscribeErr error
}

func (s *stubMessages) GetMessages(ctx context.Context, q chat.MessageQuery) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	start := max(0, len(s.history)-q.Limit)
	return append([]chat.Message(nil), s.history[start:]...), nil
}

func (s *stubMessages) StreamMessageEvents(ctx context.Context, sessionID string, channelIDs []string) (chat.EventStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	st := &stubStream{errs: make(chan error, 1)}
	s.streams = append(s.streams, st)
	return st, nil
}

func (s *stubMessages) add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		id := len(s.history) + 1
		s.history = append(s.history, chat.Message{
			ID:             fmt.Sprintf("m%02d", id),
			ChannelID:      "c1",
			AuthorUsername: "ana",
			Content:        "hi",
			Timestamp:      time.Date(2025, 3, 1, 12, 0, id, 0, time.UTC),
		})
	}
}

func TestResumeFollowBackfillsGapWithReloadedPageSize(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	svc := &stubMessages{}
	svc.add(3)
	f := newFollower()
	engine, err := messages.NewEngine(svc, "sess", messages.Options{PageSize: 10, OnChange: f.onChange})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()
	page, err := engine.LoadInitial(ctx, "c1", false)
	if err != nil {
		t.Fatal(err)
	}
	f.prime(page)
	if err := engine.AttachStream(ctx, "c1"); err != nil {
		t.Fatal(err)
	}

	svc.streams[0].errs <- chat.Errorf(chat.NetworkError, "gateway", "connection lost")
	select {
	case err := <-f.failures:
		if !chat.IsKind(err, chat.StreamFailed) {
			t.Fatalf("failure = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream failure not reported")
	}

	// Messages sent while detached, and a config edit in the meantime.
	svc.add(2)
	update := pageSizeUpdater(engine)
	bad := config.Default()
	bad.Messages.PageSize = 500
	update(bad)
	good := config.Default()
	good.Messages.PageSize = 20
	update(good)
	if got := engine.PageSize(); got != 20 {
		t.Fatalf("page size = %d, want 20", got)
	}

	cfg := retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	if err := resumeFollow(ctx, engine, cfg, "c1"); err != nil {
		t.Fatalf("resumeFollow: %v", err)
	}

	f.mu.Lock()
	for _, id := range []string{"m04", "m05"} {
		if !f.seen[id] {
			t.Errorf("gap message %s not printed", id)
		}
	}
	f.mu.Unlock()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.streams) != 2 {
		t.Errorf("streams opened = %d, want 2", len(svc.streams))
	}
	last := svc.queries[len(svc.queries)-1]
	if last.Limit != 20 || !last.ForceRefresh {
		t.Errorf("reload query = %+v", last)
	}
}

func TestResumeFollowStopsOnUnauthorized(t *testing.T) {
	svc := &stubMessages{subscribeErr: chat.Errorf(chat.Unauthorized, "messages.subscribe", "session revoked")}
	engine, err := messages.NewEngine(svc, "sess", messages.Options{PageSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	cfg := retry.Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Retryable:  func(err error) bool { return !chat.IsKind(err, chat.Unauthorized) },
	}
	if err := resumeFollow(context.Background(), engine, cfg, "c1"); !chat.IsKind(err, chat.Unauthorized) {
		t.Errorf("err = %v, want Unauthorized", err)
	}
	if len(svc.queries) != 0 {
		t.Errorf("reloaded after failed reattach: %v", svc.queries)
	}
}
