package io

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/peergraph/pkg/depgraph"
	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
)

const jsonInput = `{
  "manifests": [
    {"name": "A", "version": "1.0.0", "dependencies": {"B": "^1.0.0", "C": "^1.0.0"}},
    {"name": "B", "version": "1.1.0", "peerDependencies": {"C": "^1.0.0"}},
    {"name": "C", "version": "1.0.1"}
  ],
  "resolutions": {"B": {"^1.0.0": "1.1.0"}, "C": {"^1.0.0": "1.0.1"}}
}`

const yamlInput = `
manifests:
  - name: A
    version: 1.0.0
    dependencies:
      B: ^1.0.0
      C: ^1.0.0
  - name: B
    version: 1.1.0
    peerDependencies:
      C: ^1.0.0
    peerDependenciesMeta:
      D:
        optional: true
  - name: C
    version: 1.0.1
resolutions:
  B:
    ^1.0.0: 1.1.0
  C:
    ^1.0.0: 1.0.1
failOnMissingPeerDependencies: false
`

func TestReadInputJSON(t *testing.T) {
	in, err := ReadInput(strings.NewReader(jsonInput), FormatJSON)
	if err != nil {
		t.Fatalf("ReadInput: %v", err)
	}
	if len(in.Manifests) != 3 {
		t.Fatalf("manifests = %d, want 3", len(in.Manifests))
	}
	if in.Root() != "A@1.0.0" {
		t.Errorf("Root = %q", in.Root())
	}
	if v, _ := in.Resolutions.Lookup("C", "^1.0.0"); v != "1.0.1" {
		t.Errorf("resolution C ^1.0.0 = %q", v)
	}
	if !in.FailOnMissingPeers() {
		t.Error("policy should default to fail")
	}
	if in.Options().AllowMissingPeers {
		t.Error("Options should not allow missing peers by default")
	}
}

func TestReadInputYAML(t *testing.T) {
	in, err := ReadInput(strings.NewReader(yamlInput), FormatYAML)
	if err != nil {
		t.Fatalf("ReadInput: %v", err)
	}
	b := in.Manifests[1]
	if b.Version != "1.1.0" || b.PeerDependencies["C"] != "^1.0.0" {
		t.Errorf("manifest B decoded wrong: %+v", b)
	}
	if !b.PeerDependenciesMeta["D"].Optional {
		t.Error("peerDependenciesMeta not decoded")
	}
	if in.FailOnMissingPeers() {
		t.Error("explicit false policy ignored")
	}
	if !in.Options().AllowMissingPeers {
		t.Error("Options should allow missing peers")
	}
}

func TestJSONAndYAMLAgree(t *testing.T) {
	j, err := ParseInput([]byte(jsonInput), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	y, err := ParseInput([]byte(yamlInput), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	rj, err := depgraph.Build(j.Manifests, j.Resolutions, j.Options())
	if err != nil {
		t.Fatal(err)
	}
	ry, err := depgraph.Build(y.Manifests, y.Resolutions, y.Options())
	if err != nil {
		t.Fatal(err)
	}

	var bj, by bytes.Buffer
	_ = WriteGraph(&bj, rj.Graph)
	_ = WriteGraph(&by, ry.Graph)
	if bj.String() != by.String() {
		t.Errorf("graphs differ:\njson: %s\nyaml: %s", bj.String(), by.String())
	}
}

func TestParseInputErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   pgerrors.Code
	}{
		{"malformed json", `{"manifests": [`, FormatJSON, pgerrors.ErrCodeInvalidFormat},
		{"malformed yaml", "manifests: [unclosed", FormatYAML, pgerrors.ErrCodeInvalidFormat},
		{"no manifests", `{"manifests": []}`, FormatJSON, pgerrors.ErrCodeInvalidInput},
		{"unknown format", `{}`, Format("toml"), pgerrors.ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput([]byte(tt.data), tt.format)
			if got := pgerrors.GetCode(err); got != tt.want {
				t.Errorf("code = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"in.json":       FormatJSON,
		"in.yaml":       FormatYAML,
		"IN.YML":        FormatYAML,
		"noext":         FormatJSON,
		"dir.yaml/file": FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLoadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.yml")
	if err := os.WriteFile(path, []byte(yamlInput), 0o644); err != nil {
		t.Fatal(err)
	}
	in, err := LoadInput(path)
	if err != nil {
		t.Fatalf("LoadInput: %v", err)
	}
	if len(in.Manifests) != 3 {
		t.Errorf("manifests = %d", len(in.Manifests))
	}

	_, err = LoadInput(filepath.Join(dir, "missing.json"))
	if !pgerrors.Is(err, pgerrors.ErrCodeFileNotFound) {
		t.Errorf("missing file: err = %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{"), 0o644)
	if _, err := LoadInput(bad); !pgerrors.Is(err, pgerrors.ErrCodeInvalidFormat) {
		t.Errorf("bad file: err = %v", err)
	}

	if _, err := LoadInput(""); !pgerrors.Is(err, pgerrors.ErrCodeInvalidPath) {
		t.Errorf("empty path: err = %v", err)
	}
}

func sampleGraph() depgraph.Graph {
	return depgraph.Graph{
		Nodes: []depgraph.GraphNode{
			{ID: 0, Name: "A", Version: "1.0.0"},
			{ID: 1, Name: "B", Version: "1.1.0"},
		},
		Links: []depgraph.Link{{SourceID: 0, TargetID: 1}},
	}
}

func TestWriteGraph(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGraph(&buf, sampleGraph()); err != nil {
		t.Fatalf("WriteGraph: %v", err)
	}
	want := `{
  "nodes": [
    {
      "id": 0,
      "name": "A",
      "version": "1.0.0"
    },
    {
      "id": 1,
      "name": "B",
      "version": "1.1.0"
    }
  ],
  "links": [
    {
      "sourceId": 0,
      "targetId": 1
    }
  ]
}
`
	if buf.String() != want {
		t.Errorf("WriteGraph output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteReportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	diags := []depgraph.Diagnostic{{Code: pgerrors.ErrCodeVersionRangeMismatch, Peer: "B"}}
	if err := WriteReport(&buf, sampleGraph(), diags); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if !strings.Contains(buf.String(), `"diagnostics"`) {
		t.Error("report missing diagnostics key")
	}

	g, err := ReadGraph(&buf)
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Links) != 1 {
		t.Errorf("round trip lost data: %+v", g)
	}
}

func TestWriteReportEmptyDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteReport(&buf, sampleGraph(), nil)
	if !strings.Contains(buf.String(), `"diagnostics": []`) {
		t.Errorf("nil diagnostics should encode as []: %s", buf.String())
	}
}

func TestReadGraphValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"nodes":`},
		{"id mismatch", `{"nodes":[{"id":1,"name":"a","version":"1"}],"links":[]}`},
		{"unknown source", `{"nodes":[{"id":0,"name":"a","version":"1"}],"links":[{"sourceId":3,"targetId":0}]}`},
		{"unknown target", `{"nodes":[{"id":0,"name":"a","version":"1"}],"links":[{"sourceId":0,"targetId":-1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGraph(strings.NewReader(tt.data))
			if !pgerrors.Is(err, pgerrors.ErrCodeInvalidFormat) {
				t.Errorf("err = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestExportImportGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := ExportGraph(sampleGraph(), path); err != nil {
		t.Fatalf("ExportGraph: %v", err)
	}
	g, err := ImportGraph(path)
	if err != nil {
		t.Fatalf("ImportGraph: %v", err)
	}
	if g.Nodes[1].Name != "B" {
		t.Errorf("imported graph wrong: %+v", g)
	}
	if _, err := ImportGraph(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("ImportGraph of missing file should fail")
	}
}
