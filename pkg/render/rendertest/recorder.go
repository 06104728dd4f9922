// Package rendertest provides a recording render port for tests.
package rendertest

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Recorder is a [render.Port] and [render.Committer] that logs every call
// and mirrors the resulting state. It fails on calls that would corrupt a
// real surface, such as styling a node that was never added.
//
// A Recorder is safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	// CommitErr, when set, is returned by Commit.
	CommitErr error

	calls      []string
	cycles     []render.Cycle
	nodes      map[string]style.Style
	edges      map[tangle.Edge]string
	violations []string
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{
		nodes: make(map[string]style.Style),
		edges: make(map[tangle.Edge]string),
	}
}

func (r *Recorder) log(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *Recorder) violate(format string, args ...any) {
	r.violations = append(r.violations, fmt.Sprintf(format, args...))
}

func (r *Recorder) AddNode(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("add %s", id)
	if _, ok := r.nodes[id]; ok {
		r.violate("node %s added twice", id)
	}
	r.nodes[id] = style.Style{}
}

func (r *Recorder) RemoveNode(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("remove %s", id)
	if _, ok := r.nodes[id]; !ok {
		r.violate("unknown node %s removed", id)
	}
	for e := range r.edges {
		if e.From == id || e.To == id {
			r.violate("node %s removed before edge %s", id, e.ID())
		}
	}
	delete(r.nodes, id)
}

func (r *Recorder) AddEdge(e tangle.Edge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("add %s", e.ID())
	if _, ok := r.edges[e]; ok {
		r.violate("edge %s added twice", e.ID())
	}
	for _, id := range []string{e.From, e.To} {
		if _, ok := r.nodes[id]; !ok {
			r.violate("edge %s added before node %s", e.ID(), id)
		}
	}
	r.edges[e] = ""
}

func (r *Recorder) RemoveEdge(e tangle.Edge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("remove %s", e.ID())
	if _, ok := r.edges[e]; !ok {
		r.violate("unknown edge %s removed", e.ID())
	}
	delete(r.edges, e)
}

func (r *Recorder) SetNodeStyle(id string, s style.Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("style %s %s %g", id, s.Color, s.Size)
	if _, ok := r.nodes[id]; !ok {
		r.violate("style for unknown node %s", id)
		return
	}
	r.nodes[id] = s
}

func (r *Recorder) SetEdgeColor(e tangle.Edge, color string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("color %s %s", e.ID(), color)
	if _, ok := r.edges[e]; !ok {
		r.violate("color for unknown edge %s", e.ID())
		return
	}
	r.edges[e] = color
}

func (r *Recorder) Commit(c render.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("commit %s", c.Reason)
	r.cycles = append(r.cycles, c)
	return r.CommitErr
}

// Calls returns the logged calls and clears the log.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls
	r.calls = nil
	return calls
}

// Cycles returns every committed cycle.
func (r *Recorder) Cycles() []render.Cycle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cycles)
}

// Violations returns protocol violations seen so far.
func (r *Recorder) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.violations)
}

// Style returns the last style set for id.
func (r *Recorder) Style(id string) (style.Style, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.nodes[id]
	return s, ok
}

// EdgeColor returns the last color set for e.
func (r *Recorder) EdgeColor(e tangle.Edge) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.edges[e]
	return c, ok
}

// Nodes returns the ids currently on the surface, sorted.
func (r *Recorder) Nodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.nodes))
}

// Edges returns the edge ids currently on the surface, sorted.
func (r *Recorder) Edges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.edges))
	for e := range r.edges {
		ids = append(ids, e.ID())
	}
	slices.Sort(ids)
	return ids
}
