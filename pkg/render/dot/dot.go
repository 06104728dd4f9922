package dot

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
)

// Options configures DOT generation.
type Options struct {
	// LabelLength truncates node labels to this many characters. Zero keeps
	// the default of 8; a negative value disables labels.
	LabelLength int

	// PixelsPerInch converts style sizes to Graphviz inches. Zero selects
	// 24, which keeps 8-character labels readable at the base size.
	PixelsPerInch float64
}

const defaultLabelLength = 8

// ToDOT converts a mirrored graph to Graphviz DOT source.
// The result can be rendered with [RenderSVG].
func ToDOT(g Graph, opts Options) string {
	ppi := opts.PixelsPerInch
	if ppi <= 0 {
		ppi = 24
	}

	var buf bytes.Buffer
	buf.WriteString("digraph tangle {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, fontsize=8, penwidth=0];\n")
	buf.WriteString("  edge [arrowsize=0.4];\n")
	buf.WriteString("  ranksep=0.3;\n")
	buf.WriteString("  nodesep=0.15;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts.LabelLength, ppi), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		if e.Color == "" {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [color=%q];\n", e.From, e.To, e.Color)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n Node, labelLen int, ppi float64) []string {
	label := ""
	switch {
	case labelLen < 0:
	case labelLen == 0:
		label = truncate(n.ID, defaultLabelLength)
	default:
		label = truncate(n.ID, labelLen)
	}
	attrs := []string{fmt.Sprintf("label=%q", label), fmt.Sprintf("tooltip=%q", n.ID)}
	if n.Style.Color != "" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", n.Style.Color))
	}
	if n.Style.Size > 0 {
		attrs = append(attrs, "width="+strconv.FormatFloat(n.Style.Size/ppi, 'f', 2, 64))
	}
	return attrs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one whose
// viewBox starts at the origin so browsers scale the image cleanly.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}

func sortBy[T any](s []T, rank func(T) uint64, key func(T) string) {
	slices.SortFunc(s, func(a, b T) int {
		return cmp.Or(cmp.Compare(rank(a), rank(b)), strings.Compare(key(a), key(b)))
	})
}

func sortEdges(edges []Edge, rank func(string) uint64) {
	slices.SortFunc(edges, func(a, b Edge) int {
		return cmp.Or(
			cmp.Compare(rank(a.From), rank(b.From)),
			cmp.Compare(rank(a.To), rank(b.To)),
		)
	})
}
