package visualizer

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/tanglescope/pkg/highlight"
	"github.com/matzehuels/tanglescope/pkg/observability"
	"github.com/matzehuels/tanglescope/pkg/render"
	"github.com/matzehuels/tanglescope/pkg/style"
	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Options configures a [Visualizer].
type Options struct {
	// MaxItems caps the number of nodes held. Zero selects
	// [tangle.DefaultMaxItems].
	MaxItems int

	// ConeDepth limits cone highlighting to this many hops from the
	// selected node. Zero means unlimited.
	ConeDepth int

	// Palette overrides the default colors.
	Palette *style.Palette

	// Logger receives debug and warning output. Nil discards it.
	Logger *log.Logger

	// Hooks receives instrumentation events. Nil selects the globally
	// registered [observability.Visualizer] hooks.
	Hooks observability.VisualizerHooks
}

// Totals are counters accumulated over the visualizer's lifetime.
type Totals struct {
	Batches         uint64 `json:"batches"`
	Items           uint64 `json:"items"`
	Added           uint64 `json:"added"`
	Filled          uint64 `json:"filled"`
	Evicted         uint64 `json:"evicted"`
	Dropped         uint64 `json:"dropped"`
	Duplicates      uint64 `json:"duplicates"`
	MetadataUpdates uint64 `json:"metadata_updates"`
	MetadataApplied uint64 `json:"metadata_applied"`
}

// Visualizer maintains the graph and its highlight state and pushes changes
// to a render port. It is not safe for concurrent use; see [Runner].
type Visualizer struct {
	id        string
	store     *tangle.Store
	ingester  *tangle.Ingester
	port      render.Port
	palette   style.Palette
	coneDepth int
	logger    *log.Logger
	hooks     observability.VisualizerHooks

	// What the port currently shows.
	styles map[string]style.Style
	colors map[tangle.Edge]string

	selected string
	pred     map[tangle.Edge]bool
	succ     map[tangle.Edge]bool

	search  searchState
	matched map[string]bool

	calls  int
	cycle  uint64
	totals Totals
}

type searchState struct {
	pattern string
	active  bool
	invalid bool
	matcher *highlight.Matcher
}

// New creates a visualizer that draws on port. A nil port discards output.
func New(port render.Port, opts Options) *Visualizer {
	if port == nil {
		port = render.Discard
	}
	palette := style.DefaultPalette()
	if opts.Palette != nil {
		palette = opts.Palette.Clone()
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = observability.Visualizer()
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("viz", id[:8])

	store := tangle.NewStore()
	return &Visualizer{
		id:        id,
		store:     store,
		ingester:  tangle.NewIngester(store, opts.MaxItems),
		port:      port,
		palette:   palette,
		coneDepth: max(opts.ConeDepth, 0),
		logger:    logger,
		hooks:     hooks,
		styles:    make(map[string]style.Style),
		colors:    make(map[tangle.Edge]string),
		matched:   make(map[string]bool),
	}
}

// ID returns the instance id used in logs and metrics.
func (v *Visualizer) ID() string { return v.id }

// Store exposes the underlying graph for read-only inspection.
func (v *Visualizer) Store() *tangle.Store { return v.store }

// Selected returns the selected node id, or "" if none.
func (v *Visualizer) Selected() string { return v.selected }

// Primed reports whether the first batch has been ingested.
func (v *Visualizer) Primed() bool { return v.ingester.Primed() }

// MaxItems returns the current retention cap.
func (v *Visualizer) MaxItems() int { return v.ingester.MaxItems() }

// Palette returns a copy of the current palette.
func (v *Visualizer) Palette() style.Palette { return v.palette.Clone() }

// Totals returns the lifetime counters.
func (v *Visualizer) Totals() Totals { return v.totals }

// Detach replaces the render port with [render.Discard]. The visualizer
// keeps working, but nothing is drawn any more.
func (v *Visualizer) Detach() { v.port = render.Discard }

// Ingest applies a feed batch and draws the result as one render cycle.
func (v *Visualizer) Ingest(batch []tangle.Payload) tangle.IngestResult {
	start := time.Now()
	res := v.ingester.Ingest(batch)

	v.totals.Batches++
	v.totals.Items += uint64(len(batch))
	v.totals.Added += uint64(len(res.Added))
	v.totals.Filled += uint64(len(res.Filled))
	v.totals.Evicted += uint64(len(res.Evicted))
	v.totals.Dropped += uint64(res.Dropped)
	v.totals.Duplicates += uint64(res.Duplicates)

	hadSelection := v.selected != ""
	v.erase(res.Evicted)

	for _, id := range res.Added {
		v.matchNode(id)
	}
	var newlyMatched []string
	for _, id := range res.Filled {
		if v.matchNode(id) {
			newlyMatched = append(newlyMatched, id)
		}
	}

	for _, id := range res.Added {
		if n, ok := v.store.Node(id); ok {
			v.drawNode(n)
		}
	}
	for _, e := range res.Edges {
		v.drawEdge(e)
	}
	for _, id := range res.Filled {
		v.restyle(id)
	}
	for _, id := range newlyMatched {
		v.recolorAround(id)
	}

	if hadSelection || len(v.pred)+len(v.succ) > 0 {
		v.updateCones()
	}

	if hadSelection && v.selected == "" {
		v.logger.Debug("selection evicted")
	}
	if res.Dropped > 0 {
		v.logger.Debug("dropped malformed payloads", "count", res.Dropped)
	}
	v.logger.Debug("ingest",
		"added", len(res.Added), "filled", len(res.Filled), "edges", len(res.Edges),
		"evicted", len(res.Evicted), "nodes", v.store.Len(), "priming", res.Priming)

	v.finish("ingest", res.Priming)
	v.hooks.OnIngest(v.id, observability.IngestStats{
		Added:      len(res.Added),
		Filled:     len(res.Filled),
		Edges:      len(res.Edges),
		Evicted:    len(res.Evicted),
		Dropped:    res.Dropped,
		Duplicates: res.Duplicates,
		Priming:    res.Priming,
	}, time.Since(start))
	return res
}

// ApplyMetadata merges metadata deltas into live nodes and restyles those
// whose state changed. Updates for unknown ids are dropped. It returns the
// touched ids, sorted.
func (v *Visualizer) ApplyMetadata(updates map[string]tangle.MetadataDelta) []string {
	touched := tangle.ApplyMetadata(v.store, updates)
	for _, id := range touched {
		v.restyle(id)
	}
	v.totals.MetadataUpdates += uint64(len(updates))
	v.totals.MetadataApplied += uint64(len(touched))
	v.hooks.OnMetadata(v.id, len(updates), len(touched))
	v.finish("metadata", false)
	return touched
}

// Select changes the selection and returns the new selected id.
//
// Selecting the selected node or "" clears the selection. Selecting an id
// that is not in the graph changes nothing.
func (v *Visualizer) Select(id string) string {
	switch {
	case id == "" || id == v.selected:
		v.selected = ""
	default:
		if _, ok := v.store.Node(id); !ok {
			return v.selected
		}
		v.selected = id
	}
	v.updateCones()
	v.finish("select", false)
	return v.selected
}

// SetSearchPattern replaces the search and returns its matches. Only nodes
// and edges whose highlight changed are restyled.
func (v *Visualizer) SetSearchPattern(pattern string) highlight.Matches {
	start := time.Now()
	st := searchState{pattern: pattern}
	var res highlight.Matches
	if strings.TrimSpace(pattern) != "" {
		st.active = true
		res = highlight.Matches{Pattern: pattern, Active: true}
		m, err := highlight.Compile(pattern)
		if err != nil {
			st.invalid = true
			res.Invalid = true
			v.logger.Debug("invalid search pattern", "pattern", pattern, "err", err)
		} else {
			st.matcher = m
			res = m.Search(v.store, res)
		}
	}

	old := v.matched
	v.matched = res.NodeSet()
	v.search = st

	for id := range old {
		if !v.matched[id] {
			v.restyle(id)
			v.recolorAround(id)
		}
	}
	for id := range v.matched {
		if !old[id] {
			v.restyle(id)
			v.recolorAround(id)
		}
	}

	v.hooks.OnSearch(v.id, len(res.Nodes), res.Invalid, time.Since(start))
	v.finish("search", false)
	return res
}

// Search returns the current search state.
func (v *Visualizer) Search() (pattern string, active, invalid bool) {
	return v.search.pattern, v.search.active, v.search.invalid
}

// SetMaxItems changes the retention cap and evicts down to it immediately.
// Values below 1 are ignored. It returns the number of evicted nodes.
func (v *Visualizer) SetMaxItems(n int) int {
	evicted := v.ingester.SetMaxItems(n)
	if len(evicted) == 0 {
		return 0
	}
	v.totals.Evicted += uint64(len(evicted))
	v.erase(evicted)
	v.updateCones()
	v.logger.Debug("max items changed", "max", n, "evicted", len(evicted))
	v.finish("max_items", false)
	return len(evicted)
}

// SetPalette replaces the color table and restyles everything that changed.
func (v *Visualizer) SetPalette(p style.Palette) {
	v.palette = p.Clone()
	for n := range v.store.Nodes() {
		v.restyle(n.ID)
	}
	for e := range v.store.Edges() {
		v.recolor(e)
	}
	v.finish("palette", false)
}

// Reset removes everything from the graph and the port. The next batch is
// treated as priming data again. The search pattern is kept.
func (v *Visualizer) Reset() {
	for e := range v.store.Edges() {
		v.eraseEdge(e)
	}
	for n := range v.store.Nodes() {
		v.eraseNode(n.ID)
	}
	v.ingester.Reset()
	v.selected = ""
	v.pred, v.succ = nil, nil
	clear(v.matched)
	v.finish("reset", false)
}

// Replay draws the complete current state on p, which must be empty, and
// commits it as a "replay" cycle.
func (v *Visualizer) Replay(p render.Port) error {
	for n := range v.store.Nodes() {
		p.AddNode(n.ID)
		p.SetNodeStyle(n.ID, v.styles[n.ID])
	}
	for e := range v.store.Edges() {
		p.AddEdge(e)
		p.SetEdgeColor(e, v.colors[e])
	}
	return render.Commit(p, render.Cycle{Seq: v.cycle, Reason: "replay"})
}

// erase removes evicted nodes and their edges from the port and from the
// highlight state.
func (v *Visualizer) erase(evicted []tangle.Eviction) {
	for _, ev := range evicted {
		for _, e := range ev.Edges {
			v.eraseEdge(e)
			delete(v.pred, e)
			delete(v.succ, e)
		}
		v.eraseNode(ev.ID)
		delete(v.matched, ev.ID)
		if ev.ID == v.selected {
			v.selected = ""
		}
	}
}

// matchNode evaluates the active search against a node and reports whether
// it newly matched.
func (v *Visualizer) matchNode(id string) bool {
	if v.search.matcher == nil || v.matched[id] {
		return false
	}
	n, ok := v.store.Node(id)
	if !ok || !v.search.matcher.MatchNode(n) {
		return false
	}
	v.matched[id] = true
	return true
}

// updateCones recomputes the cones of the current selection and recolors
// every drawn edge that entered or left them.
func (v *Visualizer) updateCones() {
	oldPred, oldSucc := v.pred, v.succ
	v.pred, v.succ = nil, nil
	if v.selected != "" {
		c := highlight.Both(v.store, v.selected, v.coneDepth)
		v.pred = edgeSet(c.Predecessors)
		v.succ = edgeSet(c.Successors)
	}

	seen := make(map[tangle.Edge]bool, len(oldPred)+len(oldSucc)+len(v.pred)+len(v.succ))
	for _, set := range []map[tangle.Edge]bool{oldPred, oldSucc, v.pred, v.succ} {
		for e := range set {
			if !seen[e] {
				seen[e] = true
				v.recolor(e)
			}
		}
	}
}

func edgeSet(edges []tangle.Edge) map[tangle.Edge]bool {
	if len(edges) == 0 {
		return nil
	}
	set := make(map[tangle.Edge]bool, len(edges))
	for _, e := range edges {
		set[e] = true
	}
	return set
}

// Role is the highlight role of an edge.
type Role string

const (
	RoleNone        Role = ""
	RoleSuccessor   Role = "successor"
	RolePredecessor Role = "predecessor"
	RoleSearch      Role = "search"
)

func (v *Visualizer) edgeRole(e tangle.Edge) Role {
	switch {
	case v.succ[e]:
		return RoleSuccessor
	case v.pred[e]:
		return RolePredecessor
	case v.matched[e.From] || v.matched[e.To]:
		return RoleSearch
	default:
		return RoleNone
	}
}

func (v *Visualizer) edgeColor(e tangle.Edge) string {
	switch v.edgeRole(e) {
	case RoleSuccessor:
		return v.palette.EdgeSuccessor
	case RolePredecessor:
		return v.palette.EdgePredecessor
	case RoleSearch:
		return v.palette.EdgeSearch
	default:
		return v.palette.Edge
	}
}

func (v *Visualizer) nodeStyle(n *tangle.Node) style.Style {
	return v.palette.Resolve(n, v.matched[n.ID])
}

func (v *Visualizer) drawNode(n *tangle.Node) {
	if _, ok := v.styles[n.ID]; ok {
		return
	}
	s := v.nodeStyle(n)
	v.port.AddNode(n.ID)
	v.port.SetNodeStyle(n.ID, s)
	v.styles[n.ID] = s
	v.calls += 2
}

func (v *Visualizer) eraseNode(id string) {
	if _, ok := v.styles[id]; !ok {
		return
	}
	v.port.RemoveNode(id)
	delete(v.styles, id)
	v.calls++
}

func (v *Visualizer) drawEdge(e tangle.Edge) {
	if _, ok := v.colors[e]; ok {
		return
	}
	c := v.edgeColor(e)
	v.port.AddEdge(e)
	v.port.SetEdgeColor(e, c)
	v.colors[e] = c
	v.calls += 2
}

func (v *Visualizer) eraseEdge(e tangle.Edge) {
	if _, ok := v.colors[e]; !ok {
		return
	}
	v.port.RemoveEdge(e)
	delete(v.colors, e)
	v.calls++
}

// restyle pushes a node's style if it differs from what is drawn.
func (v *Visualizer) restyle(id string) {
	cur, drawn := v.styles[id]
	n, ok := v.store.Node(id)
	if !drawn || !ok {
		return
	}
	if s := v.nodeStyle(n); s != cur {
		v.port.SetNodeStyle(id, s)
		v.styles[id] = s
		v.calls++
	}
}

// recolor pushes an edge's color if it differs from what is drawn.
func (v *Visualizer) recolor(e tangle.Edge) {
	cur, drawn := v.colors[e]
	if !drawn {
		return
	}
	if c := v.edgeColor(e); c != cur {
		v.port.SetEdgeColor(e, c)
		v.colors[e] = c
		v.calls++
	}
}

func (v *Visualizer) recolorAround(id string) {
	for p := range v.store.Neighbors(id, tangle.Predecessors) {
		v.recolor(tangle.Edge{From: p, To: id})
	}
	for c := range v.store.Neighbors(id, tangle.Successors) {
		v.recolor(tangle.Edge{From: id, To: c})
	}
}

// finish ends the render cycle. Cycles without port calls are not committed,
// except the priming cycle, which ports rely on to know the initial data is
// complete.
func (v *Visualizer) finish(reason string, priming bool) {
	if v.calls == 0 && !priming {
		return
	}
	v.calls = 0
	v.cycle++
	c := render.Cycle{Seq: v.cycle, Priming: priming, Reason: reason}
	if err := render.Commit(v.port, c); err != nil {
		v.logger.Warn("render commit failed", "cycle", c.Seq, "reason", reason, "err", err)
		v.hooks.OnRenderError(v.id, err)
	}
	v.hooks.OnGraphSize(v.id, v.store.Len(), v.store.EdgeCount())
}

