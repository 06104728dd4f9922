package feed

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
)

// Backoff configures [Retry].
type Backoff struct {
	// Initial is the first delay. Zero selects one second.
	Initial time.Duration
	// Max caps the delay. Zero selects one minute.
	Max time.Duration
	// Attempts bounds the number of calls. Zero retries forever.
	Attempts int
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = time.Second
	}
	if b.Max <= 0 {
		b.Max = time.Minute
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	return b
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempt budget is spent or ctx is cancelled. Cancellation returns nil. Only errors for which
// [errs.Retryable] reports true trigger another attempt.
//
// The delay doubles after every failure up to Max. A call that ran for
// longer than Max before failing counts as a healthy session and resets the
// delay, so a long-lived connection that drops reconnects quickly.
func Retry(ctx context.Context, b Backoff, logger *log.Logger, fn func(ctx context.Context) error) error {
	b = b.withDefaults()
	delay := b.Initial

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := fn(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		if !errs.Retryable(err) {
			return err
		}
		if b.Attempts > 0 && attempt >= b.Attempts {
			return err
		}
		if time.Since(start) > b.Max {
			delay = b.Initial
		}
		if logger != nil {
			logger.Warn("feed disconnected, retrying", "attempt", attempt, "in", delay, "err", err)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		delay = min(delay*2, b.Max)
	}
}
