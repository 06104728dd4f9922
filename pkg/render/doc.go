// Package render defines the port through which the visualizer drives a
// drawing surface.
//
// # Overview
//
// The visualizer never draws. It computes topology and style deltas and
// pushes them to a [Port]:
//
//   - AddNode / RemoveNode and AddEdge / RemoveEdge for topology
//   - SetNodeStyle for node color and size
//   - SetEdgeColor for edge color
//
// Deltas of one logical operation (a feed batch, a metadata update, a
// selection change) form a render cycle. Ports that batch work implement
// [Committer] and receive a [Cycle] after the last delta of each cycle.
//
// # Implementations
//
//   - [Discard] drops everything (headless runs, benchmarks)
//   - [Multi] fans out to several ports
//   - [dot] mirrors the graph and exports Graphviz DOT/SVG snapshots
//   - [wsport] streams cycles to browser clients over websockets
//
// Ports are called from a single goroutine. Implementations that are read
// from elsewhere (HTTP handlers, websocket writers) synchronize internally.
//
// [dot]: github.com/matzehuels/tanglescope/pkg/render/dot
// [wsport]: github.com/matzehuels/tanglescope/pkg/render/wsport
package render
