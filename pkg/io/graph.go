package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/peergraph/pkg/depgraph"
	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
)

// Report is a graph together with the diagnostics of the build that
// produced it. It encodes as the graph's keys plus "diagnostics".
type Report struct {
	depgraph.Graph
	Diagnostics []depgraph.Diagnostic `json:"diagnostics"`
}

// WriteGraph writes g as indented JSON.
func WriteGraph(w io.Writer, g depgraph.Graph) error {
	return encode(w, g)
}

// WriteReport writes g and diags as indented JSON.
func WriteReport(w io.Writer, g depgraph.Graph, diags []depgraph.Diagnostic) error {
	if diags == nil {
		diags = []depgraph.Diagnostic{}
	}
	return encode(w, Report{Graph: g, Diagnostics: diags})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportGraph writes g to a JSON file at path.
func ExportGraph(g depgraph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteGraph(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadGraph decodes a graph written by [WriteGraph] or [WriteReport]. Any
// diagnostics are discarded. Node IDs must equal their positions and links
// must reference existing nodes.
func ReadGraph(r io.Reader) (depgraph.Graph, error) {
	var g depgraph.Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return depgraph.Graph{}, pgerrors.Wrap(pgerrors.ErrCodeInvalidFormat, err, "decode graph")
	}
	for i, n := range g.Nodes {
		if n.ID != i {
			return depgraph.Graph{}, pgerrors.New(pgerrors.ErrCodeInvalidFormat,
				"node %s@%s: id %d at position %d", n.Name, n.Version, n.ID, i)
		}
	}
	for _, l := range g.Links {
		if _, ok := g.Node(l.SourceID); !ok {
			return depgraph.Graph{}, pgerrors.New(pgerrors.ErrCodeInvalidFormat, "link %d->%d: unknown source", l.SourceID, l.TargetID)
		}
		if _, ok := g.Node(l.TargetID); !ok {
			return depgraph.Graph{}, pgerrors.New(pgerrors.ErrCodeInvalidFormat, "link %d->%d: unknown target", l.SourceID, l.TargetID)
		}
	}
	if g.Links == nil {
		g.Links = []depgraph.Link{}
	}
	return g, nil
}

// ImportGraph reads a graph from the JSON file at path.
func ImportGraph(path string) (depgraph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return depgraph.Graph{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}
