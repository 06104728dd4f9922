package visualizer

import (
	"time"

	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// NodeView is a node together with its resolved visual state.
type NodeView struct {
	ID          string            `json:"id"`
	State       string            `json:"state"`
	Style       style.Style       `json:"style"`
	Placeholder bool              `json:"placeholder,omitzero"`
	Highlighted bool              `json:"highlighted,omitzero"`
	Value       uint64            `json:"value,omitzero"`
	Parents     []string          `json:"parents,omitzero"`
	Properties  map[string]string `json:"properties,omitzero"`
	Meta        tangle.Metadata   `json:"meta"`
	Seq         uint64            `json:"seq"`
	FirstSeen   time.Time         `json:"first_seen,omitzero"`
}

// EdgeView is an edge together with its resolved color and highlight role.
type EdgeView struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Color string `json:"color"`
	Role  Role   `json:"role,omitzero"`
}

// SearchView describes the active search.
type SearchView struct {
	Pattern string `json:"pattern,omitzero"`
	Active  bool   `json:"active"`
	Invalid bool   `json:"invalid,omitzero"`
	Matches int    `json:"matches"`
}

// Snapshot is a complete, self-contained copy of the visualizer state.
type Snapshot struct {
	Instance string     `json:"instance"`
	Cycle    uint64     `json:"cycle"`
	Primed   bool       `json:"primed"`
	MaxItems int        `json:"max_items"`
	Selected string     `json:"selected,omitzero"`
	Search   SearchView `json:"search"`
	Nodes    []NodeView `json:"nodes"`
	Edges    []EdgeView `json:"edges"`
}

// Stats summarizes the graph for status displays.
type Stats struct {
	Nodes        int            `json:"nodes"`
	Edges        int            `json:"edges"`
	Placeholders int            `json:"placeholders"`
	MaxItems     int            `json:"max_items"`
	States       map[string]int `json:"states"`
	Selected     string         `json:"selected,omitzero"`
	ConeEdges    int            `json:"cone_edges"`
	Search       SearchView     `json:"search"`
	Cycles       uint64         `json:"cycles"`
	Totals       Totals         `json:"totals"`
}

func (v *Visualizer) view(n *tangle.Node) NodeView {
	hl := v.matched[n.ID]
	nv := NodeView{
		ID:          n.ID,
		State:       style.Classify(n, hl).String(),
		Style:       v.nodeStyle(n),
		Placeholder: n.IsPlaceholder(),
		Highlighted: hl,
		Value:       n.Value(),
		Meta:        n.Meta,
		Seq:         n.Seq,
		FirstSeen:   n.FirstSeen,
	}
	if n.Payload != nil {
		nv.Parents = n.Payload.ParentIDs
		nv.Properties = n.Payload.Properties
	}
	return nv
}

func (v *Visualizer) searchView() SearchView {
	return SearchView{
		Pattern: v.search.pattern,
		Active:  v.search.active,
		Invalid: v.search.invalid,
		Matches: len(v.matched),
	}
}

// Snapshot returns the full state. Nodes are in insertion order.
func (v *Visualizer) Snapshot() Snapshot {
	snap := Snapshot{
		Instance: v.id,
		Cycle:    v.cycle,
		Primed:   v.ingester.Primed(),
		MaxItems: v.ingester.MaxItems(),
		Selected: v.selected,
		Search:   v.searchView(),
		Nodes:    make([]NodeView, 0, v.store.Len()),
		Edges:    make([]EdgeView, 0, v.store.EdgeCount()),
	}
	for n := range v.store.Nodes() {
		snap.Nodes = append(snap.Nodes, v.view(n))
	}
	for e := range v.store.Edges() {
		snap.Edges = append(snap.Edges, EdgeView{From: e.From, To: e.To, Color: v.edgeColor(e), Role: v.edgeRole(e)})
	}
	return snap
}

// Stats returns counts per visual state and lifetime totals.
func (v *Visualizer) Stats() Stats {
	st := Stats{
		Nodes:     v.store.Len(),
		Edges:     v.store.EdgeCount(),
		MaxItems:  v.ingester.MaxItems(),
		States:    make(map[string]int, len(style.States)),
		Selected:  v.selected,
		ConeEdges: len(v.pred) + len(v.succ),
		Search:    v.searchView(),
		Cycles:    v.cycle,
		Totals:    v.totals,
	}
	for n := range v.store.Nodes() {
		if n.IsPlaceholder() {
			st.Placeholders++
		}
		st.States[style.Classify(n, v.matched[n.ID]).String()]++
	}
	return st
}

// Recent returns up to n of the newest nodes, newest first.
func (v *Visualizer) Recent(n int) []NodeView {
	if n <= 0 {
		return nil
	}
	out := make([]NodeView, 0, min(n, v.store.Len()))
	for node := range v.store.Newest() {
		if len(out) == n {
			break
		}
		out = append(out, v.view(node))
	}
	return out
}
