package dot

import (
	"sync"

	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Node is a node as last drawn.
type Node struct {
	ID    string
	Style style.Style
}

// Edge is an edge as last drawn. An empty Color means the port never
// received one.
type Edge struct {
	tangle.Edge
	Color string
}

// Graph is a point-in-time copy of a [Mirror]. Nodes are in the order they
// were added; edges are grouped by their source node in that order.
type Graph struct {
	Nodes []Node
	Edges []Edge
	Cycle render.Cycle
}

// Mirror is a [render.Port] that records the current drawing.
// It is safe to read from other goroutines while a visualizer drives it.
type Mirror struct {
	mu    sync.RWMutex
	seq   uint64
	nodes map[string]*mirrorNode
	edges map[tangle.Edge]string
	cycle render.Cycle

	// incident indexes edges by both endpoints so RemoveNode only touches
	// the node's own edges.
	incident map[string]map[tangle.Edge]struct{}
}

type mirrorNode struct {
	seq   uint64
	style style.Style
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		nodes: make(map[string]*mirrorNode),
		edges:    make(map[tangle.Edge]string),
		incident: make(map[string]map[tangle.Edge]struct{}),
	}
}

func (m *Mirror) AddNode(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; ok {
		return
	}
	m.seq++
	m.nodes[id] = &mirrorNode{seq: m.seq}
}

func (m *Mirror) RemoveNode(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
	for e := range m.incident[id] {
		m.removeEdgeLocked(e)
	}
}

func (m *Mirror) AddEdge(e tangle.Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[e]; ok {
		return
	}
	m.edges[e] = ""
	m.link(e.From, e)
	m.link(e.To, e)
}

func (m *Mirror) RemoveEdge(e tangle.Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeEdgeLocked(e)
}

func (m *Mirror) link(id string, e tangle.Edge) {
	set, ok := m.incident[id]
	if !ok {
		set = make(map[tangle.Edge]struct{})
		m.incident[id] = set
	}
	set[e] = struct{}{}
}

func (m *Mirror) unlink(id string, e tangle.Edge) {
	set := m.incident[id]
	delete(set, e)
	if len(set) == 0 {
		delete(m.incident, id)
	}
}

func (m *Mirror) removeEdgeLocked(e tangle.Edge) {
	if _, ok := m.edges[e]; !ok {
		return
	}
	delete(m.edges, e)
	m.unlink(e.From, e)
	m.unlink(e.To, e)
}

func (m *Mirror) SetNodeStyle(id string, s style.Style) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		n.style = s
	}
}

func (m *Mirror) SetEdgeColor(e tangle.Edge, color string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[e]; ok {
		m.edges[e] = color
	}
}

// Commit records the last completed cycle. It never fails.
func (m *Mirror) Commit(c render.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle = c
	return nil
}

// Len returns the number of nodes and edges currently mirrored.
func (m *Mirror) Len() (nodes, edges int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes), len(m.edges)
}

// Graph returns a copy of the current drawing.
func (m *Mirror) Graph() Graph {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := Graph{
		Nodes: make([]Node, 0, len(m.nodes)),
		Edges: make([]Edge, 0, len(m.edges)),
		Cycle: m.cycle,
	}
	for id, n := range m.nodes {
		g.Nodes = append(g.Nodes, Node{ID: id, Style: n.style})
	}
	rank := func(id string) uint64 {
		if n, ok := m.nodes[id]; ok {
			return n.seq
		}
		return 0
	}
	sortBy(g.Nodes, func(n Node) uint64 { return rank(n.ID) }, func(n Node) string { return n.ID })

	for e, c := range m.edges {
		g.Edges = append(g.Edges, Edge{Edge: e, Color: c})
	}
	sortEdges(g.Edges, rank)
	return g
}
