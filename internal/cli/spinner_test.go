package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDrawsLiveStatus(t *testing.T) {
	var out syncBuffer
	var n atomic.Int64
	s := newSpinner(context.Background(), &out, func() string {
		return "recorded " + strings.Repeat("x", int(n.Add(1)))
	})
	s.Start()
	time.Sleep(5 * spinnerInterval)
	s.Stop()

	got := out.String()
	if !strings.Contains(got, "recorded x") {
		t.Errorf("output %q should contain the status", got)
	}
	if n.Load() < 2 {
		t.Errorf("status evaluated %d times, want a redraw per frame", n.Load())
	}
	if !strings.HasSuffix(got, "\r") {
		t.Errorf("output should end by clearing the line, got %q", got)
	}
}

func TestSpinnerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	s := newSpinner(ctx, &out, staticStatus("waiting"))
	s.Start()
	cancel()

	select {
	case <-s.stopped:
	case <-time.After(time.Second):
		t.Fatal("spinner did not stop after cancellation")
	}
	s.Stop()
}

func TestSpinnerStop(t *testing.T) {
	tests := []struct {
		name  string
		start bool
	}{
		{"after start", true},
		{"without start", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out syncBuffer
			s := newSpinner(context.Background(), &out, staticStatus("x"))
			if tt.start {
				s.Start()
			}
			s.Stop()
			s.Stop()
			s.Start()
			if !tt.start && out.String() != "" {
				t.Errorf("unstarted spinner wrote %q", out.String())
			}
		})
	}
}
