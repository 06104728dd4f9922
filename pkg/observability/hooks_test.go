package observability

import (
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	v := NoopVisualizerHooks{}
	v.OnIngest("viz", IngestStats{Added: 3, Priming: true}, time.Millisecond)
	v.OnMetadata("viz", 4, 2)
	v.OnSearch("viz", 10, false, time.Millisecond)
	v.OnGraphSize("viz", 100, 150)
	v.OnRenderError("viz", errors.New("boom"))

	f := NoopFeedHooks{}
	f.OnConnect("redis")
	f.OnDisconnect("redis", nil)
	f.OnMessage("redis", "items", 512)
	f.OnDecodeError("redis", errors.New("bad json"))
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Visualizer().(NoopVisualizerHooks); !ok {
		t.Error("Visualizer() should return NoopVisualizerHooks by default")
	}
	if _, ok := Feed().(NoopFeedHooks); !ok {
		t.Error("Feed() should return NoopFeedHooks by default")
	}

	customViz := &testVisualizerHooks{}
	SetVisualizerHooks(customViz)
	if Visualizer() != customViz {
		t.Error("SetVisualizerHooks should set custom hooks")
	}

	customFeed := &testFeedHooks{}
	SetFeedHooks(customFeed)
	if Feed() != customFeed {
		t.Error("SetFeedHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Visualizer().(NoopVisualizerHooks); !ok {
		t.Error("Reset() should restore NoopVisualizerHooks")
	}
	if _, ok := Feed().(NoopFeedHooks); !ok {
		t.Error("Reset() should restore NoopFeedHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testVisualizerHooks{}
	SetVisualizerHooks(custom)

	// Setting nil should be ignored
	SetVisualizerHooks(nil)
	SetFeedHooks(nil)

	if Visualizer() != custom {
		t.Error("SetVisualizerHooks(nil) should be ignored")
	}
	if _, ok := Feed().(NoopFeedHooks); !ok {
		t.Error("SetFeedHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testVisualizerHooks struct{ NoopVisualizerHooks }
type testFeedHooks struct{ NoopFeedHooks }
