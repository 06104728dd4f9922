package visualizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// ErrStopped is returned by [Runner.Query] once the runner has stopped.
var ErrStopped = errors.New("visualizer: runner stopped")

// DefaultSearchDebounce is the search debounce used when none is configured.
const DefaultSearchDebounce = 250 * time.Millisecond

// RunnerOptions configures a [Runner].
type RunnerOptions struct {
	// SearchDebounce delays search evaluation until input has been quiet
	// this long. Zero selects [DefaultSearchDebounce]; a negative value
	// evaluates every pattern immediately.
	SearchDebounce time.Duration

	// QueueSize is the number of operations that can be pending before
	// callers block. Zero selects 64.
	QueueSize int
}

// Runner owns a [Visualizer] and serializes every operation on it through a
// single goroutine. Each operation runs to completion, including its render
// cycle, before the next one starts.
//
// Operations posted after [Runner.Stop] are dropped.
type Runner struct {
	viz      *Visualizer
	debounce time.Duration
	ops      chan func()
	done     chan struct{}

	startOnce sync.Once
	cancel    context.CancelFunc

	// Owned by the loop goroutine.
	searchTimer   *time.Timer
	searchC       <-chan time.Time
	searchPending string
}

// NewRunner wraps v. Call [Runner.Start] before posting operations.
func NewRunner(v *Visualizer, opts RunnerOptions) *Runner {
	debounce := opts.SearchDebounce
	if debounce == 0 {
		debounce = DefaultSearchDebounce
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 64
	}
	return &Runner{
		viz:      v,
		debounce: max(debounce, 0),
		ops:      make(chan func(), queue),
		done:     make(chan struct{}),
	}
}

// Start launches the event loop. It returns immediately; the loop runs until
// ctx is cancelled or [Runner.Stop] is called. Calling Start more than once
// has no effect.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		go r.loop(ctx)
	})
}

// Stop cancels pending timers, detaches the render port and waits for the
// loop to exit. No port call happens after Stop returns.
func (r *Runner) Stop() {
	r.startOnce.Do(func() { close(r.done) })
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

// Done is closed when the loop has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	defer r.viz.Detach()
	defer func() {
		if r.searchTimer != nil {
			r.searchTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.ops:
			op()
		case <-r.searchC:
			r.searchC = nil
			r.viz.SetSearchPattern(r.searchPending)
		}
	}
}

func (r *Runner) post(op func()) {
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.ops <- op:
	case <-r.done:
	}
}

// PushItems queues a feed batch.
func (r *Runner) PushItems(items []tangle.Payload) {
	r.post(func() { r.viz.Ingest(items) })
}

// PushMetadata queues a metadata update.
func (r *Runner) PushMetadata(updates map[string]tangle.MetadataDelta) {
	r.post(func() { r.viz.ApplyMetadata(updates) })
}

// Select queues a selection change. See [Visualizer.Select].
func (r *Runner) Select(id string) {
	r.post(func() { r.viz.Select(id) })
}

// Search queues a search pattern. Patterns arriving within the debounce
// window replace each other; only the last one is evaluated.
func (r *Runner) Search(pattern string) {
	r.post(func() {
		if r.debounce == 0 {
			r.viz.SetSearchPattern(pattern)
			return
		}
		r.searchPending = pattern
		if r.searchTimer == nil {
			r.searchTimer = time.NewTimer(r.debounce)
		} else {
			r.searchTimer.Reset(r.debounce)
		}
		r.searchC = r.searchTimer.C
	})
}

// SetMaxItems queues a retention cap change. Values below 1 are ignored.
func (r *Runner) SetMaxItems(n int) {
	r.post(func() { r.viz.SetMaxItems(n) })
}

// SetPalette queues a palette change.
func (r *Runner) SetPalette(p style.Palette) {
	p = p.Clone()
	r.post(func() { r.viz.SetPalette(p) })
}

// Reset queues a full reset.
func (r *Runner) Reset() {
	r.post(func() { r.viz.Reset() })
}

// Query runs fn on the loop goroutine and waits for it to return. fn must
// not retain v.
func (r *Runner) Query(ctx context.Context, fn func(v *Visualizer)) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn(r.viz)
	}
	select {
	case r.ops <- op:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		// The loop may have run op just before exiting.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns [Visualizer.Snapshot] from the loop.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.Query(ctx, func(v *Visualizer) { snap = v.Snapshot() })
	return snap, err
}

// Stats returns [Visualizer.Stats] from the loop.
func (r *Runner) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.Query(ctx, func(v *Visualizer) { st = v.Stats() })
	return st, err
}

// Recent returns [Visualizer.Recent] from the loop.
func (r *Runner) Recent(ctx context.Context, n int) ([]NodeView, error) {
	var out []NodeView
	err := r.Query(ctx, func(v *Visualizer) { out = v.Recent(n) })
	return out, err
}
