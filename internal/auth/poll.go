package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/secrets"
)

// poll runs one polling loop until it reaches a terminal state, times out or
// is cancelled. Results observed after cancellation are dropped.
func (c *Coordinator) poll(ctx context.Context, loop *pollLoop) {
	defer close(loop.done)
	defer loop.cancel()

	tctx, tcancel := context.WithTimeout(ctx, c.opts.PollTimeout)
	defer tcancel()

	timer := time.NewTimer(c.opts.PollInterval)
	defer timer.Stop()

	attempt := 0
	for {
		if tctx.Err() != nil {
			if ctx.Err() == nil {
				c.timedOut(loop)
			}
			return
		}

		attempt++
		res, err := c.sessions.GetAuthStatus(tctx, loop.pendingID)

		if ctx.Err() != nil {
			slog.Debug("auth poll result discarded after cancellation", "attempt", attempt)
			return
		}
		if tctx.Err() != nil {
			c.timedOut(loop)
			return
		}
		if err != nil {
			slog.Error("auth status poll failed", "attempt", attempt, "error", err)
			c.finish(loop, failed(ReasonLoginFailed, err))
			return
		}

		switch res.Status {
		case chat.AuthCompleted:
			c.complete(loop, res)
			return
		case chat.AuthPending:
			slog.Debug("auth still pending", "attempt", attempt)
		case chat.AuthFailed:
			slog.Warn("auth failed on server", "reason", res.Reason)
			c.finish(loop, failed(ReasonLoginFailed, chat.Errorf(chat.Unauthorized, "auth.status", "%s", failedCause(res))))
			return
		default:
			slog.Warn("unrecognized auth status", "attempt", attempt)
			c.finish(loop, failed(ReasonLoginFailed, chat.Errorf(chat.Unknown, "auth.status", "unrecognized status")))
			return
		}

		timer.Reset(c.opts.PollInterval)
		select {
		case <-ctx.Done():
			return
		case <-tctx.Done():
			// re-checked at the top of the loop
		case <-timer.C:
		}
	}
}

func (c *Coordinator) timedOut(loop *pollLoop) {
	slog.Warn("auth polling timed out", "timeout", c.opts.PollTimeout)
	c.finish(loop, failed(ReasonTimedOut, errTimedOut))
}

// complete persists the new session and commits Authenticated. When the loop
// was cancelled meanwhile, the stored id is rolled back.
func (c *Coordinator) complete(loop *pollLoop, res chat.AuthStatusResult) {
	c.mu.Lock()
	live := c.current(loop)
	c.mu.Unlock()
	if !live {
		slog.Debug("auth completion discarded after cancellation")
		return
	}

	session := chat.Session{
		ID:        res.SessionID,
		CreatedAt: time.Now(),
		ExpiresAt: res.ExpiresAt,
	}
	if session.ID == "" {
		session.ID = loop.pendingID
	}

	c.storeMu.Lock()
	err := c.store.Save(secrets.SessionKey, session.ID)
	c.storeMu.Unlock()
	if err != nil {
		// The session still works for this run; it just won't survive a restart.
		slog.Warn("failed to persist session", "error", err)
	}

	if c.finish(loop, authenticated(session)) {
		slog.Info("authentication complete")
		return
	}
	if err == nil {
		c.rollback(session.ID)
	}
}

// rollback removes sessionID from the store if it is still the stored value.
func (c *Coordinator) rollback(sessionID string) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	stored, ok, err := c.store.Retrieve(secrets.SessionKey)
	if err != nil || !ok || stored != sessionID {
		return
	}
	if err := c.store.Delete(secrets.SessionKey); err != nil {
		slog.Warn("failed to roll back cancelled session", "error", err)
	}
}

func failedCause(res chat.AuthStatusResult) string {
	if res.Reason != "" {
		return res.Reason
	}
	return "login rejected"
}
