package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	attempts, err := Do(context.Background(), fastConfig(3), func(context.Context) error { return nil })
	if err != nil || attempts != 1 {
		t.Errorf("Do = %d, %v", attempts, err)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("fail-%d", calls)
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("Do = %d, %v", attempts, err)
	}
}

func TestDo_Exhausted(t *testing.T) {
	attempts, err := Do(context.Background(), fastConfig(2), func(context.Context) error { return errors.New("down") })
	if err == nil || err.Error() != "down" || attempts != 3 {
		t.Errorf("Do = %d, %v", attempts, err)
	}
}

func TestDo_NotRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, fatal) }
	attempts, err := Do(context.Background(), cfg, func(context.Context) error { return fatal })
	if !errors.Is(err, fatal) || attempts != 1 {
		t.Errorf("Do = %d, %v", attempts, err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: -1, BaseDelay: time.Hour, MaxDelay: time.Hour}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, func(context.Context) error { return errors.New("down") })
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestBackoff(t *testing.T) {
	base, max := 100*time.Millisecond, time.Second
	tests := []struct {
		attempt  int
		min, top time.Duration
	}{
		{0, 75 * time.Millisecond, 125 * time.Millisecond},
		{2, 300 * time.Millisecond, 500 * time.Millisecond},
		{10, 750 * time.Millisecond, 1250 * time.Millisecond},
		{100, 750 * time.Millisecond, 1250 * time.Millisecond},
	}
	for _, tt := range tests {
		for i := 0; i < 50; i++ {
			d := Backoff(base, max, tt.attempt)
			if d < tt.min || d > tt.top {
				t.Fatalf("Backoff(attempt=%d) = %v, want in [%v, %v]", tt.attempt, d, tt.min, tt.top)
			}
		}
	}
}
