package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/peergraph/pkg/depgraph"
)

// Rank directions accepted in [Options.Rankdir].
const (
	RankTopBottom = "TB"
	RankLeftRight = "LR"
)

// Options configures DOT generation.
type Options struct {
	// Rankdir is the Graphviz rank direction. Defaults to "TB".
	Rankdir string

	// HideVersions labels nodes with the package name only.
	HideVersions bool

	// Root is the "name@version" of a node to draw highlighted.
	Root string
}

// ValidRankdir reports whether dir is a supported rank direction.
func ValidRankdir(dir string) bool {
	return dir == "" || dir == RankTopBottom || dir == RankLeftRight
}

// ToDOT converts g to Graphviz DOT. Node identifiers are the output IDs, so
// packages installed once per peer context stay distinct.
func ToDOT(g depgraph.Graph, opts Options) string {
	rankdir := opts.Rankdir
	if rankdir == "" {
		rankdir = RankTopBottom
	}

	copies := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		copies[n.Name+"@"+n.Version]++
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [arrowsize=0.7];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		key := n.Name + "@" + n.Version
		label := n.Name
		if !opts.HideVersions {
			label = n.Name + "\n" + n.Version
		}
		attrs := fmt.Sprintf("label=%q", label)
		switch {
		case key == opts.Root:
			attrs += ", fillcolor=\"#dbeafe\", penwidth=2"
		case copies[key] > 1:
			attrs += ", style=\"rounded,filled,dashed\", fillcolor=\"#f3f4f6\""
		}
		fmt.Fprintf(&buf, "  n%d [%s];\n", n.ID, attrs)
	}

	buf.WriteString("\n")
	for _, l := range g.Links {
		fmt.Fprintf(&buf, "  n%d -> n%d;\n", l.SourceID, l.TargetID)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG lays out dot with Graphviz and returns the SVG document.
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

// normalizeViewBox rewrites the root element so the drawing scales with its
// container instead of Graphviz's point-based width and height.
func normalizeViewBox(svg []byte) []byte {
	m := viewBoxRe.FindSubmatch(svg)
	if m == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(m[3]), 64)
	h, _ := strconv.ParseFloat(string(m[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
