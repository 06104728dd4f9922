package highlight

import (
	"encoding/hex"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/matzehuels/tanglescope/pkg/tangle"
)

// MatchTimeout bounds a single pattern evaluation. Patterns are live user
// input, and a backtracking pattern must not stall the event loop.
const MatchTimeout = 25 * time.Millisecond

// Matches is the result of a search.
//
// Active distinguishes "no search" (blank pattern) from "search that matched
// nothing". Invalid is set when the pattern did not compile; such a search is
// active with no matches.
type Matches struct {
	Pattern string
	Active  bool
	Invalid bool
	Nodes   []string
	Edges   []tangle.Edge
}

// NodeSet returns the matched node ids as a set.
func (m Matches) NodeSet() map[string]bool {
	set := make(map[string]bool, len(m.Nodes))
	for _, id := range m.Nodes {
		set[id] = true
	}
	return set
}

// EdgeSet returns the matched edges as a set.
func (m Matches) EdgeSet() map[tangle.Edge]bool {
	set := make(map[tangle.Edge]bool, len(m.Edges))
	for _, e := range m.Edges {
		set[e] = true
	}
	return set
}

// Matcher tests nodes against a compiled user pattern.
// The zero value and a nil *Matcher match nothing.
type Matcher struct {
	re *regexp2.Regexp
}

// Compile parses pattern with JavaScript regular-expression semantics,
// case-insensitively. Users type these patterns into a browser search box, so
// ECMAScript syntax (lookarounds, backreferences) is accepted.
func Compile(pattern string) (*Matcher, error) {
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript|regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = MatchTimeout
	return &Matcher{re: re}, nil
}

// MatchString reports whether s matches. Evaluation errors (timeouts) count
// as no match.
func (m *Matcher) MatchString(s string) bool {
	if m == nil || m.re == nil {
		return false
	}
	ok, err := m.re.MatchString(s)
	return err == nil && ok
}

// MatchNode reports whether the node's id matches, or any payload property
// matches either as stored or after decoding it from hex to text.
func (m *Matcher) MatchNode(n *tangle.Node) bool {
	if m.MatchString(n.ID) {
		return true
	}
	if n.Payload == nil {
		return false
	}
	for _, k := range slices.Sorted(maps.Keys(n.Payload.Properties)) {
		v := n.Payload.Properties[k]
		if m.MatchString(v) {
			return true
		}
		if text, ok := DecodeHexText(v); ok && m.MatchString(text) {
			return true
		}
	}
	return false
}

// DecodeHexText interprets s as hex-encoded UTF-8 text, with or without a
// "0x" prefix. It reports false for anything that is not valid hex or does
// not decode to valid, non-empty UTF-8.
func DecodeHexText(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s)%2 != 0 {
		return "", false
	}
	b, err := hex.DecodeString(s)
	if err != nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// Search runs pattern over every node currently in the store.
//
// A blank pattern returns an inactive result. A pattern that fails to compile
// returns an active, invalid result with no matches; it is never reported as
// an error because it is re-evaluated on every keystroke. An edge matches
// when either of its endpoints matches.
func Search(s *tangle.Store, pattern string) Matches {
	if strings.TrimSpace(pattern) == "" {
		return Matches{}
	}
	res := Matches{Pattern: pattern, Active: true}
	m, err := Compile(pattern)
	if err != nil {
		res.Invalid = true
		return res
	}
	return m.Search(s, res)
}

// Search matches every node in s and fills res with the results.
func (m *Matcher) Search(s *tangle.Store, res Matches) Matches {
	matched := make(map[string]bool)
	for n := range s.Nodes() {
		if m.MatchNode(n) {
			matched[n.ID] = true
			res.Nodes = append(res.Nodes, n.ID)
		}
	}
	if len(matched) == 0 {
		return res
	}
	for e := range s.Edges() {
		if matched[e.From] || matched[e.To] {
			res.Edges = append(res.Edges, e)
		}
	}
	return res
}
