package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner redraws a one-line status on w until stopped or ctx is done.
// The status function is evaluated on every frame, so counters stay live.
type Spinner struct {
	w      io.Writer
	status func() string
	ctx    context.Context
	cancel context.CancelFunc

	once    sync.Once
	stopped chan struct{}

	mu    sync.Mutex
	width int
}

// newSpinner creates a spinner with a live status line.
func newSpinner(ctx context.Context, w io.Writer, status func() string) *Spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       w,
		status:  status,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// staticStatus returns a status function for a fixed message.
func staticStatus(msg string) func() string {
	return func() string { return msg }
}

// Start begins drawing. Calling Start more than once has no effect.
func (s *Spinner) Start() {
	s.once.Do(func() {
		go s.run()
	})
}

func (s *Spinner) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.ctx.Done():
			s.clearLine()
			return
		case <-ticker.C:
			s.draw(spinnerFrames[i%len(spinnerFrames)])
		}
	}
}

func (s *Spinner) draw(frame string) {
	line := styleIconSpinner.Render(frame) + " " + StyleDim.Render(s.status())
	s.mu.Lock()
	defer s.mu.Unlock()
	pad := max(s.width-lipgloss.Width(line), 0)
	fmt.Fprintf(s.w, "\r%s%*s", line, pad, "")
	s.width = lipgloss.Width(line)
}

// Stop halts the animation and clears the line. It is safe to call more
// than once and before Start.
func (s *Spinner) Stop() {
	s.cancel()
	s.once.Do(func() { close(s.stopped) })
	<-s.stopped
	s.clearLine()
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == 0 {
		return
	}
	fmt.Fprintf(s.w, "\r%*s\r", s.width, "")
	s.width = 0
}

// StopWithError stops the spinner and prints msg as an error.
func (s *Spinner) StopWithError(msg string) {
	s.Stop()
	printError("%s", msg)
}
