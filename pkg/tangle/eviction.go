package tangle

// Eviction records one node removed by an eviction pass together with the
// edges that were removed with it.
type Eviction struct {
	ID    string
	Edges []Edge
}

// Evictor bounds the size of a store.
type Evictor interface {
	// Enforce removes nodes until s.Len() <= max and reports what it removed.
	Enforce(s *Store, max int) []Eviction
}

// FIFO evicts the oldest-inserted nodes first. It ignores selection,
// highlighting and graph position: age is the only criterion.
//
// Popping the oldest node is O(1) because the store keeps its nodes in an
// insertion-ordered list.
type FIFO struct{}

// Enforce implements [Evictor]. A negative max is treated as zero.
func (FIFO) Enforce(s *Store, max int) []Eviction {
	if max < 0 {
		max = 0
	}
	var evicted []Eviction
	for s.Len() > max {
		oldest, ok := s.Oldest()
		if !ok {
			break
		}
		evicted = append(evicted, Eviction{ID: oldest.ID, Edges: s.RemoveNode(oldest.ID)})
	}
	return evicted
}

var _ Evictor = FIFO{}
