// Package retry implements the bounded retry executor used around provider
// calls. Only transient faults are retried; everything else fails on the
// first attempt.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tellatale/engine/internal/fault"
)

// Policy bounds retries for one pipeline stage.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; subsequent delays
	// double, capped at MaxDelay when set.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay time.Duration
}

// Stage policies per the pipeline's upstream rate limits.
var (
	TextPolicy  = Policy{MaxAttempts: 5, BaseDelay: 10 * time.Second, MaxDelay: 60 * time.Second}
	MetaPolicy  = Policy{MaxAttempts: 5, BaseDelay: 120 * time.Second, MaxDelay: 1000 * time.Second}
	AudioPolicy = Policy{MaxAttempts: 3, BaseDelay: 120 * time.Second}
)

// Do runs fn with bounded exponential backoff. Transient faults are retried
// up to MaxAttempts total attempts; any other fault returns immediately.
// On exhaustion the last error is returned.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	} else {
		b.MaxInterval = backoff.Stop - 1
	}
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !fault.IsRetryable(err) {
			return err
		}
		if attempt >= attempts {
			return err
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return err
		}
		slog.Warn("transient fault, retrying",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
