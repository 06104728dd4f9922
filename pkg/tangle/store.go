package tangle

import (
	"container/list"
	"iter"
	"slices"
	"time"
)

// Payload is a single feed item as delivered by a ledger source.
// Only ID is required; items without an ID are dropped by the [Ingester].
type Payload struct {
	ID         string            `json:"id"`
	ParentIDs  []string          `json:"parentIds,omitempty"`
	Value      uint64            `json:"value,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	AddedAt    time.Time         `json:"addedAt,omitzero"`
}

// Node is a vertex in the transaction graph. A node whose Payload is nil is a
// placeholder: it was referenced as a parent before its own payload arrived.
//
// Nodes are owned by the [Store]; callers may read them but must only mutate
// Meta through [ApplyMetadata].
type Node struct {
	ID        string
	Payload   *Payload
	Meta      Metadata
	Seq       uint64    // insertion sequence, unique for the lifetime of the store
	FirstSeen time.Time // when the node (or its placeholder) was created

	elem *list.Element
}

// IsPlaceholder reports whether the node has no payload yet.
func (n *Node) IsPlaceholder() bool { return n.Payload == nil }

// Value returns the payload value, or 0 for placeholders.
func (n *Node) Value() uint64 {
	if n.Payload == nil {
		return 0
	}
	return n.Payload.Value
}

// Edge is a directed causal link: From is an immediate predecessor of To.
// The ordered pair is the edge's identity.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ID returns the string form of the edge identity, "from->to".
func (e Edge) ID() string { return e.From + "->" + e.To }

// Direction selects which side of an edge a traversal follows.
type Direction int

const (
	// Predecessors follows edges into a node ("what confirms this").
	Predecessors Direction = iota
	// Successors follows edges out of a node ("what this confirms").
	Successors
)

// String returns "predecessors" or "successors".
func (d Direction) String() string {
	if d == Successors {
		return "successors"
	}
	return "predecessors"
}

// Store is the bounded graph's node and edge collection.
//
// Node lookup and edge membership are O(1) on average. Nodes are kept in a
// doubly linked list in insertion order, which gives deterministic iteration
// and O(1) access to the oldest node for eviction.
//
// The zero value is not usable - use [NewStore]. Store is not safe for
// concurrent use.
type Store struct {
	nodes    map[string]*Node
	order    *list.List // *Node, front = oldest
	edges    map[Edge]struct{}
	outgoing map[string][]string // nodeID -> child IDs
	incoming map[string][]string // nodeID -> parent IDs
	seq      uint64
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes:    make(map[string]*Node),
		order:    list.New(),
		edges:    make(map[Edge]struct{}),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		now:      time.Now,
	}
}

// AddNode inserts a node for id with the given payload (nil for a placeholder).
// It returns false without changes if id is empty or already present.
func (s *Store) AddNode(id string, p *Payload) bool {
	if id == "" {
		return false
	}
	if _, exists := s.nodes[id]; exists {
		return false
	}
	s.seq++
	n := &Node{ID: id, Payload: p, Seq: s.seq, FirstSeen: s.now()}
	n.elem = s.order.PushBack(n)
	s.nodes[id] = n
	return true
}

// Fill attaches a payload to an existing placeholder node. It returns false if
// the node is absent or already has a payload; a payload is never replaced.
// The node keeps its position in the insertion order.
func (s *Store) Fill(id string, p *Payload) bool {
	n, ok := s.nodes[id]
	if !ok || n.Payload != nil || p == nil {
		return false
	}
	n.Payload = p
	return true
}

// AddEdge adds the edge from→to, creating placeholder nodes for any endpoint
// that does not exist yet. It returns true if the edge is new. Empty ids and
// self-loops are ignored.
func (s *Store) AddEdge(from, to string) bool {
	if from == "" || to == "" || from == to {
		return false
	}
	e := Edge{From: from, To: to}
	if _, exists := s.edges[e]; exists {
		return false
	}
	s.AddNode(from, nil)
	s.AddNode(to, nil)
	s.edges[e] = struct{}{}
	s.outgoing[from] = append(s.outgoing[from], to)
	s.incoming[to] = append(s.incoming[to], from)
	return true
}

// HasEdge reports whether the edge from→to exists.
func (s *Store) HasEdge(from, to string) bool {
	_, ok := s.edges[Edge{From: from, To: to}]
	return ok
}

// Node returns the node with the given id.
func (s *Store) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// RemoveNode removes the node and every edge where it is an endpoint, and
// returns the removed edges. Neighbours left without edges are kept. Unknown
// ids are a no-op and return nil.
func (s *Store) RemoveNode(id string) []Edge {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}

	removed := make([]Edge, 0, len(s.outgoing[id])+len(s.incoming[id]))
	for _, child := range s.outgoing[id] {
		e := Edge{From: id, To: child}
		delete(s.edges, e)
		s.incoming[child] = slices.DeleteFunc(s.incoming[child], func(p string) bool { return p == id })
		if len(s.incoming[child]) == 0 {
			delete(s.incoming, child)
		}
		removed = append(removed, e)
	}
	for _, parent := range s.incoming[id] {
		e := Edge{From: parent, To: id}
		delete(s.edges, e)
		s.outgoing[parent] = slices.DeleteFunc(s.outgoing[parent], func(c string) bool { return c == id })
		if len(s.outgoing[parent]) == 0 {
			delete(s.outgoing, parent)
		}
		removed = append(removed, e)
	}
	delete(s.outgoing, id)
	delete(s.incoming, id)

	s.order.Remove(n.elem)
	n.elem = nil
	delete(s.nodes, id)
	return removed
}

// Oldest returns the node that was inserted first among the live nodes.
func (s *Store) Oldest() (*Node, bool) {
	front := s.order.Front()
	if front == nil {
		return nil, false
	}
	return front.Value.(*Node), true
}

// Len returns the number of nodes, placeholders included.
func (s *Store) Len() int { return len(s.nodes) }

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int { return len(s.edges) }

// Nodes iterates nodes from oldest to newest. The store must not be mutated
// during iteration.
func (s *Store) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for e := s.order.Front(); e != nil; e = e.Next() {
			if !yield(e.Value.(*Node)) {
				return
			}
		}
	}
}

// Newest iterates nodes from newest to oldest.
func (s *Store) Newest() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for e := s.order.Back(); e != nil; e = e.Prev() {
			if !yield(e.Value.(*Node)) {
				return
			}
		}
	}
}

// Edges iterates all edges, grouped by source node in insertion order.
func (s *Store) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for n := range s.Nodes() {
			for _, child := range s.outgoing[n.ID] {
				if !yield(Edge{From: n.ID, To: child}) {
					return
				}
			}
		}
	}
}

// Neighbors iterates the ids adjacent to id in the given direction: parents
// for [Predecessors], children for [Successors].
func (s *Store) Neighbors(id string, dir Direction) iter.Seq[string] {
	adj := s.incoming[id]
	if dir == Successors {
		adj = s.outgoing[id]
	}
	return slices.Values(adj)
}

// Parents returns the ids of the node's immediate predecessors.
// The returned slice must not be modified.
func (s *Store) Parents(id string) []string { return s.incoming[id] }

// Children returns the ids of the node's immediate successors.
// The returned slice must not be modified.
func (s *Store) Children(id string) []string { return s.outgoing[id] }

// Reset removes every node and edge. Sequence numbers keep increasing.
func (s *Store) Reset() {
	clear(s.nodes)
	clear(s.edges)
	clear(s.outgoing)
	clear(s.incoming)
	s.order.Init()
}
