package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
)

var fast = Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond}

func TestRetry(t *testing.T) {
	netErr := errs.New(errs.ErrCodeNetwork, "connection refused")
	fatal := errs.New(errs.ErrCodeInvalidConfig, "bad url")

	tests := []struct {
		name      string
		backoff   Backoff
		results   []error
		wantCalls int
		wantErr   error
	}{
		{"success first try", fast, []error{nil}, 1, nil},
		{"retry then success", fast, []error{netErr, netErr, nil}, 3, nil},
		{"non-retryable stops", fast, []error{netErr, fatal}, 2, fatal},
		{"attempt budget", Backoff{Initial: time.Millisecond, Attempts: 2}, []error{netErr, netErr, nil}, 2, netErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.backoff, nil, func(context.Context) error {
				r := tt.results[calls]
				calls++
				return r
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Backoff{Initial: time.Hour}, nil, func(context.Context) error {
		calls++
		cancel()
		return errs.New(errs.ErrCodeNetwork, "reset")
	})
	if err != nil || calls != 1 {
		t.Errorf("Retry() = %v after %d calls, want nil after 1", err, calls)
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := Backoff{Initial: time.Minute * 2}.withDefaults()
	if b.Max != 2*time.Minute {
		t.Errorf("Max = %v, want clamped to Initial", b.Max)
	}
	b = Backoff{}.withDefaults()
	if b.Initial != time.Second || b.Max != time.Minute {
		t.Errorf("defaults = %+v", b)
	}
}
