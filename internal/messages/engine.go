package messages

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

// DefaultPageSize is the number of messages fetched per page.
const DefaultPageSize = 50

// Options configures an Engine.
type Options struct {
	PageSize int // messages per fetch, 1..MaxPageSize (default 50)

	// OnChange is called with a fresh snapshot after every page change,
	// outside the engine's lock.
	OnChange func(Page)
}

// Engine tracks one channel at a time. Loads are serialised with each other,
// stream attach/detach is serialised separately, and the page itself is
// guarded by mu so the stream reader can merge events between loads.
type Engine struct {
	repo      *Repository
	svc       chat.MessageService
	sessionID string
	onChange  func(Page)

	opMu     sync.Mutex // LoadInitial, LoadOlder, Refresh
	streamMu sync.Mutex // AttachStream, DetachStream

	mu       sync.Mutex
	pageSize int
	page     *page
	sub      *subscription
}

// subscription is one attached stream and its reader goroutine.
type subscription struct {
	channelID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEngine creates an engine for sessionID. An out-of-range PageSize is an
// InvalidArgument error; zero selects DefaultPageSize.
func NewEngine(svc chat.MessageService, sessionID string, opts Options) (*Engine, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if err := ValidatePageSize(opts.PageSize); err != nil {
		return nil, err
	}
	return &Engine{
		repo:      NewRepository(svc),
		svc:       svc,
		sessionID: sessionID,
		onChange:  opts.OnChange,
		pageSize:  opts.PageSize,
		page:      newPage(""),
	}, nil
}

// Page returns a snapshot of the current page.
func (e *Engine) Page() Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page.snapshot()
}

// PageSize returns the configured fetch size.
func (e *Engine) PageSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pageSize
}

// SetPageSize changes the fetch size used by subsequent loads.
func (e *Engine) SetPageSize(n int) error {
	if err := ValidatePageSize(n); err != nil {
		return err
	}
	e.mu.Lock()
	e.pageSize = n
	e.mu.Unlock()
	return nil
}

// LoadInitial fetches the most recent page of channelID and replaces the
// current page with it. Switching channels resets the page first and detaches
// any stream bound to another channel. On failure the previous contents stay in place and the page
// is marked Failed.
func (e *Engine) LoadInitial(ctx context.Context, channelID string, forceRefresh bool) (Page, error) {
	if channelID == "" {
		return e.Page(), chat.Errorf(chat.InvalidArgument, "messages.load", "channel id is required")
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	changed := e.page.ChannelID != channelID
	e.mu.Unlock()

	if changed {
		e.detachUnless(channelID)
		slog.Debug("switching channel", "channel", channelID)
	}

	e.mu.Lock()
	if changed {
		e.page = newPage(channelID)
	}
	e.page.Status = StatusLoading
	size := e.pageSize
	e.mu.Unlock()
	e.notify()

	batch, err := e.repo.GetMessages(ctx, e.sessionID, channelID, size, "", forceRefresh)

	e.mu.Lock()
	if err != nil {
		e.page.Status = StatusFailed
		e.page.Err = err
	} else {
		e.page.replace(batch)
		e.page.Status = StatusLoaded
		e.page.Err = nil
	}
	snap := e.page.snapshot()
	e.mu.Unlock()
	e.notifyWith(snap)

	if err != nil {
		slog.Error("failed to load messages", "channel", channelID, "error", err)
		return snap, err
	}
	return snap, nil
}

// LoadOlder prepends the page before the oldest loaded message. It does
// nothing unless the last load succeeded and more history is known to exist.
// On failure the page is left unchanged.
func (e *Engine) LoadOlder(ctx context.Context) (Page, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	p := e.page
	if p.Status != StatusLoaded || !p.HasMore || p.OldestID == "" {
		snap := p.snapshot()
		e.mu.Unlock()
		return snap, nil
	}
	channelID, before, size := p.ChannelID, p.OldestID, e.pageSize
	p.Status = StatusLoadingMore
	e.mu.Unlock()
	e.notify()

	batch, err := e.repo.GetMessages(ctx, e.sessionID, channelID, size, before, false)

	e.mu.Lock()
	if err == nil {
		e.page.prepend(batch)
	}
	e.page.Status = StatusLoaded
	snap := e.page.snapshot()
	e.mu.Unlock()
	e.notifyWith(snap)

	if err != nil {
		slog.Error("failed to load older messages", "channel", channelID, "before", before, "error", err)
		return snap, err
	}
	return snap, nil
}

// Refresh reloads the tracked channel, bypassing caches.
func (e *Engine) Refresh(ctx context.Context) (Page, error) {
	e.mu.Lock()
	channelID := e.page.ChannelID
	e.mu.Unlock()

	if channelID == "" {
		return e.Page(), chat.Errorf(chat.InvalidArgument, "messages.refresh", "no channel selected")
	}
	return e.LoadInitial(ctx, channelID, true)
}

// AttachStream subscribes to live events for channelID, replacing any
// existing subscription. The reader runs until DetachStream, ctx
// cancellation, or a stream failure recorded in Page.StreamErr.
func (e *Engine) AttachStream(ctx context.Context, channelID string) error {
	if channelID == "" {
		return chat.Errorf(chat.InvalidArgument, "messages.attach", "channel id is required")
	}

	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	e.detachLocked()

	stream, err := e.svc.StreamMessageEvents(ctx, e.sessionID, []string{channelID})
	if err != nil {
		slog.Error("failed to open message stream", "channel", channelID, "error", err)
		return err
	}

	rctx, cancel := context.WithCancel(ctx)
	sub := &subscription{channelID: channelID, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.sub = sub
	e.page.StreamErr = nil
	e.mu.Unlock()

	slog.Info("message stream attached", "channel", channelID)
	go e.read(rctx, sub, stream)
	return nil
}

// DetachStream cancels the active subscription and waits for its reader to
// exit. Safe to call when nothing is attached.
func (e *Engine) DetachStream() {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	e.detachLocked()
}

// detachUnless drops the subscription unless it already streams channelID.
func (e *Engine) detachUnless(channelID string) {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	e.mu.Lock()
	keep := e.sub != nil && e.sub.channelID == channelID
	e.mu.Unlock()
	if !keep {
		e.detachLocked()
	}
}

func (e *Engine) detachLocked() {
	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub == nil {
		return
	}
	sub.cancel()
	<-sub.done
	slog.Debug("message stream detached", "channel", sub.channelID)
}

// Close detaches the stream and forgets the tracked channel.
func (e *Engine) Close() {
	e.DetachStream()

	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.mu.Lock()
	e.page = newPage("")
	e.mu.Unlock()
}

func (e *Engine) read(ctx context.Context, sub *subscription, stream chat.EventStream) {
	defer close(sub.done)
	defer stream.Close()

	for {
		ev, err := stream.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.streamEnded(sub, err)
			return
		}
		e.handle(sub, ev)
	}
}

func (e *Engine) handle(sub *subscription, ev chat.MessageEvent) {
	if ev.Type == chat.EventUnknown {
		slog.Debug("ignoring unknown message event", "channel", sub.channelID)
		return
	}
	if ch := eventChannel(ev); ch != "" && ch != sub.channelID {
		return
	}

	e.mu.Lock()
	if e.sub != sub || e.page.ChannelID != sub.channelID {
		e.mu.Unlock()
		return
	}
	changed := e.page.apply(ev)
	snap := e.page.snapshot()
	e.mu.Unlock()

	if changed {
		slog.Debug("applied message event", "type", ev.Type, "channel", sub.channelID)
		e.notifyWith(snap)
	}
}

func (e *Engine) streamEnded(sub *subscription, err error) {
	if errors.Is(err, io.EOF) {
		slog.Info("message stream closed by server", "channel", sub.channelID)
		err = chat.Errorf(chat.StreamFailed, "messages.stream", "stream ended")
	} else {
		if k := chat.KindOf(err); k != chat.StreamFailed && k != chat.Unauthorized {
			err = &chat.Error{Kind: chat.StreamFailed, Op: "messages.stream", Err: err}
		}
		slog.Error("message stream failed", "channel", sub.channelID, "error", err)
	}

	e.mu.Lock()
	if e.sub != sub {
		e.mu.Unlock()
		return
	}
	e.page.StreamErr = err
	snap := e.page.snapshot()
	e.mu.Unlock()
	e.notifyWith(snap)
}

func eventChannel(ev chat.MessageEvent) string {
	if ev.ChannelID != "" {
		return ev.ChannelID
	}
	return ev.Message.ChannelID
}

func (e *Engine) notify() {
	if e.onChange == nil {
		return
	}
	e.onChange(e.Page())
}

func (e *Engine) notifyWith(p Page) {
	if e.onChange != nil {
		e.onChange(p)
	}
}
