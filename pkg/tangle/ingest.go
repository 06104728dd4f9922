package tangle

import (
	"maps"
	"slices"
)

// DefaultMaxItems is the retention cap used when none is configured.
const DefaultMaxItems = 5000

// IngestResult describes the net effect of one batch on the store.
//
// Nodes and edges that were created and evicted within the same batch are
// netted out: they appear in none of the lists, so a render target never sees
// an add immediately followed by a remove of the same element.
type IngestResult struct {
	// Added lists new nodes in creation order, placeholders included.
	Added []string
	// Filled lists placeholders that received their payload in this batch.
	Filled []string
	// Edges lists new edges.
	Edges []Edge
	// Evicted lists nodes removed to enforce the size cap, with their edges.
	Evicted []Eviction
	// Dropped counts malformed payloads (empty id).
	Dropped int
	// Duplicates counts payloads whose id already had a payload.
	Duplicates int
	// Priming is true for the first batch after construction or Reset.
	Priming bool
}

// Ingester applies feed batches to a store and keeps it bounded.
//
// Ingestion is idempotent per id: once a node has a payload, later payloads
// with the same id are ignored, including their parent references.
type Ingester struct {
	store    *Store
	evictor  Evictor
	maxItems int
	primed   bool
}

// NewIngester creates an ingester that keeps at most maxItems nodes in s using
// [FIFO] eviction. A maxItems below 1 selects [DefaultMaxItems].
func NewIngester(s *Store, maxItems int) *Ingester {
	if maxItems < 1 {
		maxItems = DefaultMaxItems
	}
	return &Ingester{store: s, evictor: FIFO{}, maxItems: maxItems}
}

// Store returns the store the ingester writes to.
func (in *Ingester) Store() *Store { return in.store }

// MaxItems returns the current retention cap.
func (in *Ingester) MaxItems() int { return in.maxItems }

// Primed reports whether the first batch has been committed.
func (in *Ingester) Primed() bool { return in.primed }

// SetMaxItems changes the retention cap and immediately evicts down to it.
// Values below 1 are ignored and return nil.
func (in *Ingester) SetMaxItems(n int) []Eviction {
	if n < 1 {
		return nil
	}
	in.maxItems = n
	return in.evictor.Enforce(in.store, n)
}

// Reset empties the store and marks the ingester as not primed, so the next
// batch is treated as priming data again.
func (in *Ingester) Reset() {
	in.store.Reset()
	in.primed = false
}

// Ingest applies a batch in arrival order and then runs a single eviction
// pass. Payloads without an id are dropped and counted; the rest of the batch
// is still processed.
func (in *Ingester) Ingest(batch []Payload) IngestResult {
	res := IngestResult{Priming: !in.primed}
	s := in.store

	for i := range batch {
		p := &batch[i]
		if p.ID == "" {
			res.Dropped++
			continue
		}

		switch n, ok := s.Node(p.ID); {
		case !ok:
			s.AddNode(p.ID, clonePayload(p))
			res.Added = append(res.Added, p.ID)
		case n.IsPlaceholder():
			s.Fill(p.ID, clonePayload(p))
			res.Filled = append(res.Filled, p.ID)
		default:
			res.Duplicates++
			continue
		}

		for _, parent := range p.ParentIDs {
			_, known := s.Node(parent)
			if !s.AddEdge(parent, p.ID) {
				continue
			}
			if !known {
				res.Added = append(res.Added, parent)
			}
			res.Edges = append(res.Edges, Edge{From: parent, To: p.ID})
		}
	}

	res.Evicted = in.evictor.Enforce(s, in.maxItems)
	in.primed = true
	if len(res.Evicted) > 0 {
		netOut(&res)
	}
	return res
}

// netOut removes from res everything that was both created and evicted by the
// same batch.
func netOut(res *IngestResult) {
	created := make(map[string]bool, len(res.Added))
	for _, id := range res.Added {
		created[id] = true
	}
	newEdges := make(map[Edge]bool, len(res.Edges))
	for _, e := range res.Edges {
		newEdges[e] = true
	}

	gone := make(map[string]bool, len(res.Evicted))
	evicted := res.Evicted[:0]
	for _, ev := range res.Evicted {
		gone[ev.ID] = true
		ev.Edges = dropEdges(ev.Edges, newEdges)
		if created[ev.ID] {
			continue
		}
		evicted = append(evicted, ev)
	}
	res.Evicted = evicted

	res.Added = dropIDs(res.Added, gone)
	res.Filled = dropIDs(res.Filled, gone)
	res.Edges = dropEdgesTouching(res.Edges, gone)
}

func dropIDs(ids []string, gone map[string]bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if !gone[id] {
			out = append(out, id)
		}
	}
	return out
}

func dropEdges(edges []Edge, drop map[Edge]bool) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if !drop[e] {
			out = append(out, e)
		}
	}
	return out
}

func dropEdgesTouching(edges []Edge, gone map[string]bool) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if !gone[e.From] && !gone[e.To] {
			out = append(out, e)
		}
	}
	return out
}

// clonePayload copies p so later mutation of the caller's batch cannot reach
// into the store.
func clonePayload(p *Payload) *Payload {
	c := *p
	c.ParentIDs = slices.Clone(p.ParentIDs)
	c.Properties = maps.Clone(p.Properties)
	return &c
}
