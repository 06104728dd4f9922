// Package visualizer ties the transaction graph to a render port.
//
// # Overview
//
// A [Visualizer] owns one [tangle.Store], its [tangle.Ingester], the color
// palette, the current selection and the current search. Every operation
// (a feed batch, a metadata update, a selection or search change, a new
// retention cap or palette) mutates that state and pushes the resulting
// deltas to a [render.Port]:
//
//   - new nodes are added and styled, then new edges are added and colored
//   - evicted edges are removed before their nodes
//   - nodes and edges are re-styled only when their style actually changed
//
// Each operation ends one render cycle, committed with [render.Commit].
//
// # Highlights
//
// Selecting a node highlights its causal cones: edges reachable backwards
// (predecessors) and forwards (successors). Cones are recomputed after every
// batch while a selection exists, so they grow with the graph. Evicting the
// selected node clears the selection.
//
// A search pattern highlights every node whose id or properties match, plus
// the edges touching them. New nodes are matched as they arrive.
//
// Edge colors follow a fixed precedence: successor cone, predecessor cone,
// search, default.
//
// # Concurrency
//
// A Visualizer is not safe for concurrent use. [Runner] serializes access
// through a single event-loop goroutine and debounces search input:
//
//	r := visualizer.NewRunner(visualizer.New(port, opts), visualizer.RunnerOptions{})
//	r.Start(ctx)
//	defer r.Stop()
//	r.PushItems(batch)
//	r.Search("^9f")
//
// [tangle.Store]: github.com/matzehuels/tanglescope/pkg/tangle#Store
// [tangle.Ingester]: github.com/matzehuels/tanglescope/pkg/tangle#Ingester
// [render.Port]: github.com/matzehuels/tanglescope/pkg/render#Port
// [render.Commit]: github.com/matzehuels/tanglescope/pkg/render#Commit
package visualizer
