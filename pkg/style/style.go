// Package style maps transaction graph nodes to visual styles.
//
// Resolution is a pure function of a node and its search-highlight flag. The
// node's state is chosen by walking a fixed priority list and taking the first
// match, so a milestone that is also conflicting still renders as a milestone:
//
//  1. placeholder (no payload yet)  → pending, base size
//  2. search highlight              → highlight, enlarged
//  3. milestone index set           → milestone, enlarged
//  4. conflicting                   → conflicting, base size
//  5. confirmed with value ≠ 0      → confirmed-value, enlarged
//  6. confirmed with value = 0      → confirmed-zero, base size
//  7. included                      → included, enlarged
//  8. referenced                    → referenced, base size
//  9. otherwise                     → pending, base size
package style

import (
	"fmt"

	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// State is the visual state of a node.
type State int

const (
	StatePending State = iota
	StateHighlight
	StateMilestone
	StateConflicting
	StateConfirmedValue
	StateConfirmedZero
	StateIncluded
	StateReferenced
)

var stateNames = [...]string{
	StatePending:        "pending",
	StateHighlight:      "highlight",
	StateMilestone:      "milestone",
	StateConflicting:    "conflicting",
	StateConfirmedValue: "confirmed_value",
	StateConfirmedZero:  "confirmed_zero",
	StateIncluded:       "included",
	StateReferenced:     "referenced",
}

// States lists every state in priority order.
var States = []State{
	StatePending, StateHighlight, StateMilestone, StateConflicting,
	StateConfirmedValue, StateConfirmedZero, StateIncluded, StateReferenced,
}

// String returns the state's config/wire name, e.g. "confirmed_zero".
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState is the inverse of [State.String].
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// Enlarged reports whether nodes in this state are drawn at the enlarged size.
func (s State) Enlarged() bool {
	switch s {
	case StateHighlight, StateMilestone, StateConfirmedValue, StateIncluded:
		return true
	}
	return false
}

// Style is what a render target needs to draw a node.
type Style struct {
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

// Classify returns the node's state by the fixed priority list.
func Classify(n *tangle.Node, highlighted bool) State {
	switch {
	case n.IsPlaceholder():
		return StatePending
	case highlighted:
		return StateHighlight
	case n.Meta.IsMilestone():
		return StateMilestone
	case n.Meta.Conflicting:
		return StateConflicting
	case n.Meta.Confirmed && n.Value() != 0:
		return StateConfirmedValue
	case n.Meta.Confirmed:
		return StateConfirmedZero
	case n.Meta.Included:
		return StateIncluded
	case n.Meta.Referenced:
		return StateReferenced
	default:
		return StatePending
	}
}

// Resolve classifies n and looks the state up in the default palette.
func Resolve(n *tangle.Node, highlighted bool) Style {
	return DefaultPalette().Resolve(n, highlighted)
}
