// Package tangle provides the bounded, in-memory transaction graph that backs
// the live visualizer.
//
// # Overview
//
// A ledger feed delivers a continuous stream of newly-seen items. Each item may
// reference parent items it confirms, and confirmation metadata arrives later
// and independently of the item itself. This package keeps the most recent
// items as a directed graph whose edges point from parent to child
// (parent → child means "parent is an immediate causal predecessor").
//
// The package is split along the stages of the ingestion flow:
//
//   - [Store] owns nodes and edges. Lookup by id is O(1) on average and nodes
//     are iterated in insertion order.
//   - [FIFO] bounds the store by evicting the oldest-inserted nodes.
//   - [Ingester] turns feed batches into store mutations, creates placeholder
//     nodes for unknown parents and runs one eviction pass per batch.
//   - [ApplyMetadata] merges asynchronous metadata deltas into existing nodes.
//
// Every stage receives the store explicitly, so each one can be exercised in
// isolation.
//
// # Basic Usage
//
//	s := tangle.NewStore()
//	in := tangle.NewIngester(s, 5000)
//	res := in.Ingest([]tangle.Payload{
//	    {ID: "t1"},
//	    {ID: "t2", ParentIDs: []string{"t1"}},
//	})
//	fmt.Println(res.Priming, s.Len(), s.EdgeCount()) // true 2 1
//
//	tangle.ApplyMetadata(s, map[string]tangle.MetadataDelta{
//	    "t1": {Confirmed: tangle.Bool(true)},
//	})
//
// # Invariants
//
// The store maintains the following at all times:
//
//   - every edge endpoint exists as a node (placeholders are created eagerly)
//   - removing a node removes every edge touching it
//   - insertion order is fixed at creation; metadata updates and placeholder
//     fills never move a node in the eviction queue
//   - an id names at most one live node; re-inserting an evicted id creates a
//     fresh node at the back of the queue
//
// The [Ingester] additionally guarantees that the node count never exceeds its
// configured maximum once a batch has been committed.
//
// # Concurrency
//
// Store, FIFO and Ingester are not safe for concurrent use. The visualizer
// drives them from a single event-loop goroutine.
package tangle
