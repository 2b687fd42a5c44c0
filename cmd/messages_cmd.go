package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/internal/config"
	"github.com/nextlevelbuilder/discordlite/internal/messages"
	"github.com/nextlevelbuilder/discordlite/internal/retry"
)

const (
	// reattachDelay is the base pause before reopening a failed live stream.
	reattachDelay = 2 * time.Second
	// stableStream resets the reattach backoff once a stream has lived this long.
	stableStream = time.Minute
)

func messagesCmd() *cobra.Command {
	var (
		limit   int
		older   int
		refresh bool
		follow  bool
	)
	cmd := &cobra.Command{
		Use:   "messages <channel-id>",
		Short: "Show recent messages of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.requireSession(ctx)
			if err != nil {
				return err
			}

			pageSize := a.cfg.Messages.PageSize
			if cmd.Flags().Changed("limit") {
				if err := messages.ValidatePageSize(limit); err != nil {
					return err
				}
				pageSize = limit
			}
			var f *follower
			opts := messages.Options{PageSize: pageSize}
			if follow {
				f = newFollower()
				opts.OnChange = f.onChange
			}
			engine, err := messages.NewEngine(a.messages, session.ID, opts)
			if err != nil {
				return err
			}
			defer engine.Close()

			channelID := args[0]
			page, err := engine.LoadInitial(ctx, channelID, refresh)
			if err != nil {
				return err
			}
			for i := 0; i < older && page.HasMore; i++ {
				if page, err = engine.LoadOlder(ctx); err != nil {
					return err
				}
			}

			if !follow {
				if err := printMessages(os.Stdout, page.Messages); err != nil {
					return err
				}
				if page.HasMore && !jsonOutput {
					fmt.Println(styleMuted.Render("(older messages available, use --older N)"))
				}
				return nil
			}
			f.prime(page)
			printMessagesPlain(page.Messages)
			return followChannel(ctx, a, engine, f, channelID)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", messages.DefaultPageSize, "messages per page (1-100)")
	cmd.Flags().IntVar(&older, "older", 0, "also load this many older pages")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass server-side caches")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new messages as they arrive")
	return cmd
}

func printMessagesPlain(msgs []chat.Message) {
	for _, m := range msgs {
		printMessage(os.Stdout, m)
	}
}

// followChannel attaches the live stream and prints new messages until ctx
// is done. A failed stream is reopened with backoff unless the session is
// no longer valid, and the page is then reloaded so messages sent during the
// gap are printed. Page size changes in the config file apply to that reload.
func followChannel(ctx context.Context, a *app, engine *messages.Engine, f *follower, channelID string) error {
	if w, err := config.NewWatcher(a.cfgPath); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		w.OnChange(pageSizeUpdater(engine))
		if err := w.Start(); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		}
		defer w.Stop()
	}

	if err := engine.AttachStream(ctx, channelID); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, styleMuted.Render("Following, Ctrl-C to stop."))

	reattach := retry.DefaultConfig()
	reattach.Retryable = func(err error) bool { return !chat.IsKind(err, chat.Unauthorized) }

	var (
		streak   int
		lastFail time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-f.failures:
			if chat.IsKind(err, chat.Unauthorized) {
				return err
			}
			if time.Since(lastFail) > stableStream {
				streak = 0
			}
			lastFail = time.Now()
			delay := retry.Backoff(reattachDelay, reattach.MaxDelay, streak)
			streak++
			slog.Warn("live updates interrupted, reattaching", "error", err, "in", delay)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			if err := resumeFollow(ctx, engine, reattach, channelID); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// pageSizeUpdater applies the page size of a reloaded config to engine.
func pageSizeUpdater(engine *messages.Engine) config.ChangeHandler {
	return func(cfg *config.Config) {
		if err := engine.SetPageSize(cfg.Messages.PageSize); err != nil {
			slog.Warn("ignoring page size from config", "error", err)
			return
		}
		slog.Info("page size updated", "pageSize", cfg.Messages.PageSize)
	}
}

// resumeFollow reopens the stream and reloads the channel. The reload's
// snapshot reaches the follower, which prints what arrived while detached.
func resumeFollow(ctx context.Context, engine *messages.Engine, cfg retry.Config, channelID string) error {
	attempts, err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		return engine.AttachStream(ctx, channelID)
	})
	if err != nil {
		return err
	}
	slog.Info("live updates resumed", "channel", channelID, "attempts", attempts)

	if _, err := engine.Refresh(ctx); err != nil {
		if chat.IsKind(err, chat.Unauthorized) {
			return err
		}
		slog.Warn("could not backfill messages after reattach", "channel", channelID, "error", err)
	}
	return nil
}

// follower prints messages that appear in page snapshots after the initial
// load. Engine callbacks run on the stream goroutine, so stream failures are
// handed to the command loop through failures.
type follower struct {
	mu       sync.Mutex
	primed   bool
	seen     map[string]bool
	failures chan error
	lastErr  error
}

func newFollower() *follower {
	return &follower{seen: make(map[string]bool), failures: make(chan error, 1)}
}

// prime marks the initial history as printed. Snapshots before prime are
// ignored.
func (f *follower) prime(p messages.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primed = true
	for _, m := range p.Messages {
		f.seen[m.ID] = true
	}
}

func (f *follower) onChange(p messages.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.primed || p.Status != messages.StatusLoaded {
		return
	}
	for _, m := range p.Messages {
		if f.seen[m.ID] {
			continue
		}
		f.seen[m.ID] = true
		printMessage(os.Stdout, m)
	}
	if p.StreamErr != nil && p.StreamErr != f.lastErr {
		f.lastErr = p.StreamErr
		select {
		case f.failures <- p.StreamErr:
		default:
		}
	}
}
