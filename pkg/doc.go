// Package pkg provides the core libraries for Tanglescope, a live viewer for
// transaction graphs (tangles) where every transaction references one or
// more earlier transactions as parents.
//
// # Overview
//
// The pkg directory is organized by concern:
//
//  1. [tangle] - Bounded graph store, ingestion, FIFO eviction, metadata merge
//  2. [style] - Node state classification and color palettes
//  3. [highlight] - Predecessor/successor cones and regex search
//  4. [visualizer] - Selection, search and style diffing on top of a store
//  5. [render] - The drawing port plus DOT/SVG and websocket implementations
//  6. [feed] - Redis, websocket and replay sources that deliver batches
//  7. [server] - HTTP API, streaming endpoint and metrics
//  8. [config], [cache], [errors], [observability] - Supporting infrastructure
//
// # Architecture
//
// The typical data flow:
//
//	Feed (Redis / websocket / recording)
//	         ↓
//	    [feed] package (decode envelopes)
//	         ↓
//	    [visualizer] Runner (single event loop)
//	         ↓
//	    [tangle] store + [highlight] + [style]
//	         ↓
//	    [render] Port (DOT mirror, websocket clients)
//
// # Quick Start
//
// Drive a visualizer directly:
//
//	import (
//	    "github.com/matzehuels/tanglescope/pkg/render/dot"
//	    "github.com/matzehuels/tanglescope/pkg/tangle"
//	    "github.com/matzehuels/tanglescope/pkg/visualizer"
//	)
//
//	mirror := dot.NewMirror()
//	viz := visualizer.New(mirror, visualizer.Options{MaxItems: 5000})
//	viz.Ingest([]tangle.Payload{{ID: "a"}, {ID: "b", ParentIDs: []string{"a"}}})
//	viz.Select("b")
//	fmt.Println(dot.ToDOT(mirror.Graph(), dot.Options{}))
//
// [tangle]: github.com/matzehuels/tanglescope/pkg/tangle
// [style]: github.com/matzehuels/tanglescope/pkg/style
// [highlight]: github.com/matzehuels/tanglescope/pkg/highlight
// [visualizer]: github.com/matzehuels/tanglescope/pkg/visualizer
// [render]: github.com/matzehuels/tanglescope/pkg/render
// [feed]: github.com/matzehuels/tanglescope/pkg/feed
// [server]: github.com/matzehuels/tanglescope/pkg/server
// [config]: github.com/matzehuels/tanglescope/pkg/config
// [cache]: github.com/matzehuels/tanglescope/pkg/cache
// [errors]: github.com/matzehuels/tanglescope/pkg/errors
// [observability]: github.com/matzehuels/tanglescope/pkg/observability
package pkg
