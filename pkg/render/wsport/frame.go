package wsport

import (
	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Op names.
const (
	OpAddNode    = "addNode"
	OpRemoveNode = "removeNode"
	OpAddEdge    = "addEdge"
	OpRemoveEdge = "removeEdge"
	OpStyle      = "style"
	OpEdgeColor  = "edgeColor"
)

// Op is one port call.
type Op struct {
	Op    string       `json:"op"`
	ID    string       `json:"id,omitzero"`
	From  string       `json:"from,omitzero"`
	To    string       `json:"to,omitzero"`
	Style *style.Style `json:"style,omitzero"`
	Color string       `json:"color,omitzero"`
}

// Frame is the message sent for one render cycle.
type Frame struct {
	Cycle render.Cycle `json:"cycle"`
	// Full marks a frame that replaces the client's whole graph.
	Full bool `json:"full,omitzero"`
	Ops  []Op `json:"ops"`
}

// Apply replays the frame's ops onto p.
func (f Frame) Apply(p render.Port) {
	for _, op := range f.Ops {
		e := tangle.Edge{From: op.From, To: op.To}
		switch op.Op {
		case OpAddNode:
			p.AddNode(op.ID)
		case OpRemoveNode:
			p.RemoveNode(op.ID)
		case OpAddEdge:
			p.AddEdge(e)
		case OpRemoveEdge:
			p.RemoveEdge(e)
		case OpStyle:
			if op.Style != nil {
				p.SetNodeStyle(op.ID, *op.Style)
			}
		case OpEdgeColor:
			p.SetEdgeColor(e, op.Color)
		}
	}
}

// builder collects port calls into a frame.
type builder struct {
	ops []Op
}

func (b *builder) AddNode(id string)    { b.ops = append(b.ops, Op{Op: OpAddNode, ID: id}) }
func (b *builder) RemoveNode(id string) { b.ops = append(b.ops, Op{Op: OpRemoveNode, ID: id}) }

func (b *builder) AddEdge(e tangle.Edge) {
	b.ops = append(b.ops, Op{Op: OpAddEdge, From: e.From, To: e.To})
}

func (b *builder) RemoveEdge(e tangle.Edge) {
	b.ops = append(b.ops, Op{Op: OpRemoveEdge, From: e.From, To: e.To})
}

func (b *builder) SetNodeStyle(id string, s style.Style) {
	b.ops = append(b.ops, Op{Op: OpStyle, ID: id, Style: &s})
}

func (b *builder) SetEdgeColor(e tangle.Edge, color string) {
	b.ops = append(b.ops, Op{Op: OpEdgeColor, From: e.From, To: e.To, Color: color})
}

// take returns the collected ops and resets the builder.
func (b *builder) take() []Op {
	ops := b.ops
	b.ops = nil
	return ops
}

// snapshot records a replay as a full frame.
type snapshot struct {
	builder
	frame Frame
}

func (s *snapshot) Commit(c render.Cycle) error {
	s.frame = Frame{Cycle: c, Full: true, Ops: s.take()}
	return nil
}
