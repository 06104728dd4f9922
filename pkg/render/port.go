package render

import (
	"errors"

	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Port receives topology and style deltas.
//
// Calls never reference an element that was not added first: a node is added
// before any edge touching it and before its first style, and edges are
// removed before their endpoints.
type Port interface {
	AddNode(id string)
	RemoveNode(id string)
	AddEdge(e tangle.Edge)
	RemoveEdge(e tangle.Edge)
	SetNodeStyle(id string, s style.Style)
	SetEdgeColor(e tangle.Edge, color string)
}

// Cycle describes a completed render cycle.
type Cycle struct {
	// Seq increases by one per cycle of the same visualizer.
	Seq uint64 `json:"seq"`
	// Priming marks the cycle of the first feed batch. Ports that animate
	// incremental changes may skip animation for it.
	Priming bool `json:"priming,omitzero"`
	// Reason names the operation: "ingest", "metadata", "select",
	// "search", "max_items", "palette" or "replay".
	Reason string `json:"reason"`
}

// Committer is implemented by ports that want to know where a render cycle
// ends. A Commit error does not roll anything back; the caller logs it and
// the state can be re-sent with a full replay.
type Committer interface {
	Commit(c Cycle) error
}

// Commit calls p.Commit if p implements [Committer].
func Commit(p Port, c Cycle) error {
	if cm, ok := p.(Committer); ok {
		return cm.Commit(c)
	}
	return nil
}

// Discard is a Port that drops every call.
var Discard Port = discard{}

type discard struct{}

func (discard) AddNode(string)                   {}
func (discard) RemoveNode(string)                {}
func (discard) AddEdge(tangle.Edge)              {}
func (discard) RemoveEdge(tangle.Edge)           {}
func (discard) SetNodeStyle(string, style.Style) {}
func (discard) SetEdgeColor(tangle.Edge, string) {}

// Multi returns a Port that forwards every call to each of ports in order.
// Its Commit commits every port that is a [Committer] and joins the errors.
func Multi(ports ...Port) Port {
	all := make([]Port, 0, len(ports))
	for _, p := range ports {
		if m, ok := p.(*multi); ok {
			all = append(all, m.ports...)
		} else if p != nil {
			all = append(all, p)
		}
	}
	return &multi{ports: all}
}

type multi struct {
	ports []Port
}

func (m *multi) AddNode(id string) {
	for _, p := range m.ports {
		p.AddNode(id)
	}
}

func (m *multi) RemoveNode(id string) {
	for _, p := range m.ports {
		p.RemoveNode(id)
	}
}

func (m *multi) AddEdge(e tangle.Edge) {
	for _, p := range m.ports {
		p.AddEdge(e)
	}
}

func (m *multi) RemoveEdge(e tangle.Edge) {
	for _, p := range m.ports {
		p.RemoveEdge(e)
	}
}

func (m *multi) SetNodeStyle(id string, s style.Style) {
	for _, p := range m.ports {
		p.SetNodeStyle(id, s)
	}
}

func (m *multi) SetEdgeColor(e tangle.Edge, color string) {
	for _, p := range m.ports {
		p.SetEdgeColor(e, color)
	}
}

func (m *multi) Commit(c Cycle) error {
	var errs []error
	for _, p := range m.ports {
		errs = append(errs, Commit(p, c))
	}
	return errors.Join(errs...)
}
