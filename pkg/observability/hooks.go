// Package observability provides hooks for metrics and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on a specific observability backend to the core packages.
// Consumers register hooks at startup to receive events about ingestion,
// eviction, search and feed transport.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// [Prometheus] is the bundled backend; it is what `tanglescope serve`
// exposes on /metrics.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := observability.NewPrometheus(prometheus.DefaultRegisterer)
//	    observability.SetVisualizerHooks(m)
//	    observability.SetFeedHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Visualizer().OnIngest(instance, stats, time.Since(start))
package observability

import (
	"sync"
	"time"
)

// =============================================================================
// Visualizer Hooks
// =============================================================================

// IngestStats summarizes one committed batch.
type IngestStats struct {
	Added      int
	Filled     int
	Edges      int
	Evicted    int
	Dropped    int
	Duplicates int
	Priming    bool
}

// VisualizerHooks receives events from a visualizer instance. The instance
// argument identifies which visualizer emitted the event.
type VisualizerHooks interface {
	// OnIngest records a committed feed batch.
	OnIngest(instance string, stats IngestStats, duration time.Duration)

	// OnMetadata records a metadata batch and how many live nodes it touched.
	OnMetadata(instance string, updates, touched int)

	// OnSearch records a search evaluation.
	OnSearch(instance string, matched int, invalid bool, duration time.Duration)

	// OnGraphSize records the graph size after a render cycle.
	OnGraphSize(instance string, nodes, edges int)

	// OnRenderError records a failed render cycle commit.
	OnRenderError(instance string, err error)
}

// =============================================================================
// Feed Hooks
// =============================================================================

// FeedHooks receives events from feed sources.
type FeedHooks interface {
	// OnConnect records a successful (re)connection.
	OnConnect(source string)

	// OnDisconnect records a lost connection. err is nil on clean shutdown.
	OnDisconnect(source string, err error)

	// OnMessage records a decoded feed message of the given kind
	// ("items" or "metadata") and its size in bytes.
	OnMessage(source, kind string, size int)

	// OnDecodeError records a message that could not be decoded.
	OnDecodeError(source string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopVisualizerHooks is a no-op implementation of VisualizerHooks.
type NoopVisualizerHooks struct{}

func (NoopVisualizerHooks) OnIngest(string, IngestStats, time.Duration) {}
func (NoopVisualizerHooks) OnMetadata(string, int, int)                 {}
func (NoopVisualizerHooks) OnSearch(string, int, bool, time.Duration)   {}
func (NoopVisualizerHooks) OnGraphSize(string, int, int)                {}
func (NoopVisualizerHooks) OnRenderError(string, error)                 {}

// NoopFeedHooks is a no-op implementation of FeedHooks.
type NoopFeedHooks struct{}

func (NoopFeedHooks) OnConnect(string)              {}
func (NoopFeedHooks) OnDisconnect(string, error)    {}
func (NoopFeedHooks) OnMessage(string, string, int) {}
func (NoopFeedHooks) OnDecodeError(string, error)   {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	visualizerHooks VisualizerHooks = NoopVisualizerHooks{}
	feedHooks       FeedHooks       = NoopFeedHooks{}
	hooksMu         sync.RWMutex
)

// SetVisualizerHooks registers custom visualizer hooks.
// This should be called once at application startup before any visualizer
// is created. Nil is ignored.
func SetVisualizerHooks(h VisualizerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		visualizerHooks = h
	}
}

// SetFeedHooks registers custom feed hooks.
// This should be called once at application startup before any feed runs.
// Nil is ignored.
func SetFeedHooks(h FeedHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		feedHooks = h
	}
}

// Visualizer returns the registered visualizer hooks.
func Visualizer() VisualizerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return visualizerHooks
}

// Feed returns the registered feed hooks.
func Feed() FeedHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return feedHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	visualizerHooks = NoopVisualizerHooks{}
	feedHooks = NoopFeedHooks{}
}
