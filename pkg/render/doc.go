// Package render draws serialized dependency graphs as node-link diagrams.
//
// [ToDOT] converts a [depgraph.Graph] to Graphviz DOT. [RenderSVG] lays the
// DOT out with the embedded Graphviz build from github.com/goccy/go-graphviz,
// so no system Graphviz installation is needed.
//
//	dot := render.ToDOT(g, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
//
// Packages installed more than once (one node per peer context) are drawn
// with a dashed outline so duplicated installs stand out.
//
// [depgraph.Graph]: github.com/matzehuels/peergraph/pkg/depgraph.Graph
package render
