// Package auth owns the login state machine: browser-based login with status
// polling, cached session restore, cancellation and logout.
//
// States move Unauthenticated → Authenticating → Authenticated or Error.
// Error is recoverable: StartAuth retries, CancelAuth returns to
// Unauthenticated. Logout moves Authenticated back to Unauthenticated.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/secrets"
)

// Defaults for Options.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 60 * time.Second
)

// Options configures a Coordinator.
type Options struct {
	PollInterval time.Duration // delay between status polls (default 2s)
	PollTimeout  time.Duration // wall-clock limit for one polling loop (default 60s)

	// OpenURL opens the login URL in the user's browser. A failure is logged;
	// polling still starts so the user can open the URL by hand.
	OpenURL func(authURL string) error

	// OnChange is called after every state transition, outside the
	// coordinator's lock. Transitions made by different goroutines may be
	// reported out of order; State() always returns the latest.
	OnChange func(State)
}

// Coordinator is safe for concurrent use. Public operations are serialised,
// except CancelAuth and State which never wait on a remote call.
type Coordinator struct {
	sessions chat.SessionService
	store    secrets.Store
	opts     Options

	opMu    sync.Mutex // serialises RestoreSession, StartAuth and Logout
	storeMu sync.Mutex // sequences secret store calls

	mu    sync.Mutex
	state State
	epoch uint64 // bumped by every transition that supersedes in-flight work
	loop  *pollLoop
}

// pollLoop is one polling goroutine bound to a pending request id.
type pollLoop struct {
	pendingID string
	epoch     uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewCoordinator creates a coordinator in the Unauthenticated state.
func NewCoordinator(sessions chat.SessionService, store secrets.Store, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Coordinator{
		sessions: sessions,
		store:    store,
		opts:     opts,
		state:    unauthenticated(),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current session when authenticated.
func (c *Coordinator) Session() (chat.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseAuthenticated {
		return chat.Session{}, false
	}
	return c.state.Session, true
}

// RestoreSession loads a cached session id from the secret store. The id is
// not validated against the server; an invalid session surfaces as
// Unauthorized on the first call that uses it. Store failures degrade to
// Unauthenticated.
func (c *Coordinator) RestoreSession(ctx context.Context) State {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	slog.Info("checking for existing session")
	c.stopPolling()

	c.storeMu.Lock()
	sessionID, ok, err := c.store.Retrieve(secrets.SessionKey)
	c.storeMu.Unlock()

	next := unauthenticated()
	switch {
	case err != nil:
		slog.Warn("session restore failed, starting unauthenticated", "error", err)
	case !ok || sessionID == "":
		slog.Debug("no cached session")
	default:
		next = authenticated(chat.Session{ID: sessionID, CreatedAt: time.Now()})
		slog.Info("restored cached session")
	}
	return c.transition(next)
}

// StartAuth begins a login attempt: it asks the server for a login URL,
// moves to Authenticating, opens the URL and starts polling. Any previous
// polling loop is cancelled first. On failure the state becomes Error and no
// polling starts.
func (c *Coordinator) StartAuth(ctx context.Context) State {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	slog.Info("starting authentication flow")
	c.stopPolling()

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	init, err := c.sessions.InitAuth(ctx)
	if err == nil {
		err = validateInit(init)
	}

	c.mu.Lock()
	if c.epoch != epoch || ctx.Err() != nil {
		// CancelAuth ran while the RPC was in flight.
		current := c.state
		c.mu.Unlock()
		slog.Debug("auth init result discarded after cancellation")
		return current
	}
	if err != nil {
		c.mu.Unlock()
		slog.Error("failed to start auth", "error", err)
		return c.transition(failed(ReasonStartFailed, err))
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.epoch++
	loop := &pollLoop{
		pendingID: init.PendingRequestID,
		epoch:     c.epoch,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.loop = loop
	c.state = authenticating(init.PendingRequestID)
	next := c.state
	c.mu.Unlock()
	c.notify(next)

	if c.opts.OpenURL != nil {
		if err := c.opts.OpenURL(init.AuthURL); err != nil {
			slog.Warn("could not open browser", "url", init.AuthURL, "error", err)
		}
	}

	c.mu.Lock()
	if c.epoch != loop.epoch {
		// CancelAuth ran while the URL was being opened.
		current := c.state
		c.mu.Unlock()
		cancel()
		close(loop.done)
		slog.Debug("auth cancelled before polling started")
		return current
	}
	c.mu.Unlock()

	slog.Info("auth polling started", "pending", init.PendingRequestID,
		"interval", c.opts.PollInterval, "timeout", c.opts.PollTimeout)
	go c.poll(loopCtx, loop)
	return next
}

// CancelAuth stops any polling loop and moves to Unauthenticated regardless
// of the current state. It is idempotent and does not wait for an in-flight
// status call; that call's result is discarded.
func (c *Coordinator) CancelAuth() {
	slog.Info("cancelling authentication")

	c.mu.Lock()
	if c.loop != nil {
		c.loop.cancel()
		c.loop = nil
	}
	c.epoch++
	c.state = unauthenticated()
	next := c.state
	c.mu.Unlock()

	c.notify(next)
}

// Logout revokes the current session and clears it locally. It requires the
// Authenticated state; otherwise it changes nothing and returns an
// InvalidArgument error. Revocation or store failures are logged and do not
// prevent the local transition to Unauthenticated.
func (c *Coordinator) Logout(ctx context.Context) (State, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	slog.Info("logging out")

	session, ok := c.Session()
	if !ok {
		slog.Error("cannot logout: not authenticated")
		return c.State(), chat.Errorf(chat.InvalidArgument, "auth.logout", "not authenticated")
	}

	if err := c.sessions.RevokeAuth(ctx, session.ID); err != nil {
		slog.Error("session revoke failed, clearing local session anyway", "error", err)
	}

	c.storeMu.Lock()
	err := c.store.Delete(secrets.SessionKey)
	c.storeMu.Unlock()
	if err != nil {
		slog.Error("failed to clear session from storage", "error", err)
	}

	c.mu.Lock()
	c.epoch++
	c.state = unauthenticated()
	next := c.state
	c.mu.Unlock()
	c.notify(next)

	slog.Info("logout complete")
	return next, nil
}

// Close cancels any polling loop and waits for it to exit.
func (c *Coordinator) Close() {
	c.stopPolling()
}

// Wait blocks until the current polling loop (if any) has exited or ctx is
// done, then returns the state.
func (c *Coordinator) Wait(ctx context.Context) State {
	c.mu.Lock()
	loop := c.loop
	c.mu.Unlock()

	if loop != nil {
		select {
		case <-loop.done:
		case <-ctx.Done():
		}
	}
	return c.State()
}

// stopPolling cancels the active loop and waits for its goroutine to exit.
func (c *Coordinator) stopPolling() {
	c.mu.Lock()
	loop := c.loop
	c.loop = nil
	if loop != nil {
		loop.cancel()
		c.epoch++
	}
	c.mu.Unlock()

	if loop != nil {
		<-loop.done
	}
}

// transition sets the state and notifies.
func (c *Coordinator) transition(next State) State {
	c.mu.Lock()
	c.epoch++
	c.state = next
	c.mu.Unlock()
	c.notify(next)
	return next
}

func (c *Coordinator) notify(s State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

// current reports whether loop is still the live polling loop.
// Must be called with c.mu held.
func (c *Coordinator) current(loop *pollLoop) bool {
	return c.loop == loop && c.epoch == loop.epoch
}

// finish applies the terminal state of a polling loop unless the loop was
// superseded. Returns false when the result was discarded.
func (c *Coordinator) finish(loop *pollLoop, next State) bool {
	c.mu.Lock()
	if !c.current(loop) {
		c.mu.Unlock()
		return false
	}
	c.loop = nil
	c.epoch++
	c.state = next
	c.mu.Unlock()
	c.notify(next)
	return true
}

func validateInit(init chat.AuthInit) error {
	if init.PendingRequestID == "" {
		return chat.Errorf(chat.Unknown, "auth.init", "server returned no pending request id")
	}
	u, err := url.Parse(init.AuthURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return chat.Errorf(chat.Unknown, "auth.init", "couldn't parse url from server: %q", init.AuthURL)
	}
	return nil
}

// errTimedOut is the cause recorded when a polling loop hits its timeout.
var errTimedOut = errors.New("auth polling timed out")
