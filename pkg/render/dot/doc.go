// Package dot mirrors the rendered transaction graph and exports it as
// Graphviz DOT or SVG.
//
// # Overview
//
// [Mirror] is a [render.Port] that keeps the last known topology and styles
// in memory. Attach it next to an interactive port (or alone, for batch
// runs) and take snapshots at any time:
//
//	m := dot.NewMirror()
//	viz := visualizer.New(render.Multi(hub, m), opts)
//	// ... ingest ...
//	src := dot.ToDOT(m.Graph(), dot.Options{})
//	svg, err := dot.RenderSVG(ctx, src)
//
// # DOT Format
//
// The generated DOT lays the graph out left to right, oldest transactions
// first, with filled circles sized and colored by their resolved style.
// Edge colors carry cone and search highlights.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. No external Graphviz installation is needed.
//
// [render.Port]: github.com/matzehuels/tanglescope/pkg/render#Port
package dot
