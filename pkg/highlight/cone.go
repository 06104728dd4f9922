// Package highlight computes the derived highlight sets shown on top of the
// transaction graph: causal cones around a selected node and search matches.
//
// Nothing here mutates the store. Results are plain id/edge lists that the
// visualizer diffs against the previous highlight state.
package highlight

import "github.com/matzehuels/tanglescope/pkg/tangle"

// Cone returns the edges reachable from start by following causal links in
// one direction: [tangle.Predecessors] walks edges into each visited node
// ("what confirms this"), [tangle.Successors] walks edges out of it ("what
// this confirms"). Unknown start ids yield nil.
//
// Cone is ConeDepth with no depth limit.
func Cone(s *tangle.Store, start string, dir tangle.Direction) []tangle.Edge {
	return ConeDepth(s, start, dir, 0)
}

// ConeDepth is a breadth-first walk from start limited to maxDepth hops
// (0 means unlimited; 1 yields only the edges touching start).
//
// Every node is enqueued at most once. When a node is expanded, each edge in
// the requested direction whose far endpoint has not been expanded yet is
// collected, so reconverging paths contribute all of their edges while cycles
// still terminate.
func ConeDepth(s *tangle.Store, start string, dir tangle.Direction, maxDepth int) []tangle.Edge {
	if _, ok := s.Node(start); !ok {
		return nil
	}

	type item struct {
		id    string
		depth int
	}
	queued := map[string]bool{start: true}
	expanded := make(map[string]bool)
	queue := []item{{id: start}}
	var edges []tangle.Edge

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		expanded[cur.id] = true

		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for next := range s.Neighbors(cur.id, dir) {
			if expanded[next] {
				continue
			}
			if dir == tangle.Successors {
				edges = append(edges, tangle.Edge{From: cur.id, To: next})
			} else {
				edges = append(edges, tangle.Edge{From: next, To: cur.id})
			}
			if !queued[next] {
				queued[next] = true
				queue = append(queue, item{id: next, depth: cur.depth + 1})
			}
		}
	}
	return edges
}

// Cones holds both directions of a selection's cone.
type Cones struct {
	Predecessors []tangle.Edge
	Successors   []tangle.Edge
}

// Len returns the total number of edges in both directions.
func (c Cones) Len() int { return len(c.Predecessors) + len(c.Successors) }

// Both computes the predecessor and successor cones of start, each limited
// to maxDepth hops (0 = unlimited).
func Both(s *tangle.Store, start string, maxDepth int) Cones {
	return Cones{
		Predecessors: ConeDepth(s, start, tangle.Predecessors, maxDepth),
		Successors:   ConeDepth(s, start, tangle.Successors, maxDepth),
	}
}
