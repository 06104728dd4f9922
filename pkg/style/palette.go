package style

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// Default node sizes.
const (
	DefaultBaseSize     = 10.0
	DefaultEnlargedSize = 20.0
)

// Edge color keys accepted by [Palette.Set] next to the state names.
const (
	EdgeDefault     = "edge"
	EdgePredecessor = "edge_predecessor"
	EdgeSuccessor   = "edge_successor"
	EdgeSearch      = "edge_search"
)

// Palette holds the color table for node states and edge roles.
// The zero value is not usable - start from [DefaultPalette].
type Palette struct {
	Nodes        map[State]string
	BaseSize     float64
	EnlargedSize float64

	Edge            string
	EdgePredecessor string
	EdgeSuccessor   string
	EdgeSearch      string
}

// DefaultPalette returns the built-in colors.
func DefaultPalette() Palette {
	return Palette{
		Nodes: map[State]string{
			StatePending:        "#9aadce",
			StateHighlight:      "#e79c18",
			StateMilestone:      "#d92121",
			StateConflicting:    "#ff8b5c",
			StateConfirmedValue: "#3f985a",
			StateConfirmedZero:  "#0fc1b7",
			StateIncluded:       "#4caaff",
			StateReferenced:     "#61e884",
		},
		BaseSize:        DefaultBaseSize,
		EnlargedSize:    DefaultEnlargedSize,
		Edge:            "#d9d9d9",
		EdgePredecessor: "#ff5aaa",
		EdgeSuccessor:   "#00f3ff",
		EdgeSearch:      "#e79c18",
	}
}

// Clone returns a deep copy of p.
func (p Palette) Clone() Palette {
	c := p
	c.Nodes = maps.Clone(p.Nodes)
	return c
}

// Resolve returns the style for n.
func (p Palette) Resolve(n *tangle.Node, highlighted bool) Style {
	return p.StyleOf(Classify(n, highlighted))
}

// StyleOf returns the color and size for a state.
func (p Palette) StyleOf(s State) Style {
	size := p.BaseSize
	if s.Enlarged() {
		size = p.EnlargedSize
	}
	return Style{Color: p.Nodes[s], Size: size}
}

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Set assigns a color by key. Keys are state names ("milestone",
// "confirmed_zero", ...) or edge keys ([EdgeDefault], [EdgePredecessor],
// [EdgeSuccessor], [EdgeSearch]). Colors must be hex (#rgb, #rrggbb or
// #rrggbbaa).
func (p *Palette) Set(key, color string) error {
	if !colorRe.MatchString(color) {
		return fmt.Errorf("color %q for %q: want #rgb, #rrggbb or #rrggbbaa", color, key)
	}
	switch key {
	case EdgeDefault:
		p.Edge = color
	case EdgePredecessor:
		p.EdgePredecessor = color
	case EdgeSuccessor:
		p.EdgeSuccessor = color
	case EdgeSearch:
		p.EdgeSearch = color
	default:
		s, ok := ParseState(key)
		if !ok {
			return fmt.Errorf("unknown color key %q (valid: %s)", key, strings.Join(Keys(), ", "))
		}
		p.Nodes[s] = color
	}
	return nil
}

// Apply sets every color in overrides. It stops at the first invalid entry,
// in sorted key order.
func (p *Palette) Apply(overrides map[string]string) error {
	for _, k := range slices.Sorted(maps.Keys(overrides)) {
		if err := p.Set(k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists every key accepted by [Palette.Set].
func Keys() []string {
	keys := make([]string, 0, len(States)+4)
	for _, s := range States {
		keys = append(keys, s.String())
	}
	return append(keys, EdgeDefault, EdgePredecessor, EdgeSuccessor, EdgeSearch)
}
