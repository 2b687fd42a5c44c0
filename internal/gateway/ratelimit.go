package gateway

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces outbound requests with a token bucket so a chatty UI cannot
// trip the server's per-session rate limit.
type pacer struct {
	limiter *rate.Limiter
}

// newPacer creates a pacer. rpm is requests per minute, burst is the max
// burst allowed. If rpm <= 0, pacing is disabled.
func newPacer(rpm, burst int) *pacer {
	if rpm <= 0 {
		return &pacer{}
	}
	if burst <= 0 {
		burst = 5
	}
	return &pacer{limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)}
}

// wait blocks until a request may be sent or ctx is done.
func (p *pacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	r := p.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	slog.Debug("gateway request paced", "delay", delay)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func (p *pacer) enabled() bool { return p.limiter != nil }
