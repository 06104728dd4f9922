// Package feedtest provides a recording feed sink for tests.
package feedtest

import (
	"sync"

	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Sink records everything pushed into it. It is safe for concurrent use.
type Sink struct {
	mu       sync.Mutex
	items    [][]tangle.Payload
	metadata []map[string]tangle.MetadataDelta
	notify   chan struct{}
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{notify: make(chan struct{}, 1)}
}

func (s *Sink) PushItems(items []tangle.Payload) {
	s.mu.Lock()
	s.items = append(s.items, items)
	s.mu.Unlock()
	s.signal()
}

func (s *Sink) PushMetadata(updates map[string]tangle.MetadataDelta) {
	s.mu.Lock()
	s.metadata = append(s.metadata, updates)
	s.mu.Unlock()
	s.signal()
}

func (s *Sink) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Notify receives a value after each push (coalesced).
func (s *Sink) Notify() <-chan struct{} { return s.notify }

// Items returns every item batch received.
func (s *Sink) Items() [][]tangle.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]tangle.Payload(nil), s.items...)
}

// Metadata returns every metadata batch received.
func (s *Sink) Metadata() []map[string]tangle.MetadataDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]tangle.MetadataDelta(nil), s.metadata...)
}

// IDs returns all item ids received, in order.
func (s *Sink) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, batch := range s.items {
		for _, p := range batch {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
