package depgraph_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/peergraph/pkg/depgraph"
	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
)

func deps(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

func links(pairs ...int) []depgraph.Link {
	out := make([]depgraph.Link, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, depgraph.Link{SourceID: pairs[i], TargetID: pairs[i+1]})
	}
	return out
}

func names(g depgraph.Graph) []string {
	out := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.Name + "@" + n.Version
	}
	return out
}

func siblingInput() ([]depgraph.Manifest, depgraph.Resolutions) {
	return []depgraph.Manifest{
			{Name: "A", Version: "1.0.0", Dependencies: deps("B", "^1.0.0", "C", "^1.0.0")},
			{Name: "B", Version: "1.1.0", PeerDependencies: deps("C", "^1.0.0")},
			{Name: "C", Version: "1.0.1"},
		}, depgraph.Resolutions{
			"B": {"^1.0.0": "1.1.0"},
			"C": {"^1.0.0": "1.0.1"},
		}
}

func TestBuildSiblingScenario(t *testing.T) {
	manifests, res := siblingInput()
	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)

	assert.Equal(t, []depgraph.GraphNode{
		{ID: 0, Name: "A", Version: "1.0.0"},
		{ID: 1, Name: "B", Version: "1.1.0"},
		{ID: 2, Name: "C", Version: "1.0.1"},
	}, out.Graph.Nodes)
	assert.Equal(t, links(0, 1, 0, 2, 1, 2), out.Graph.Links)
	assert.Empty(t, out.Diagnostics)

	assert.Equal(t, 3, out.Stats.BaseNodes)
	assert.Equal(t, 1, out.Stats.VirtualNodes)
	assert.Equal(t, 1, out.Stats.Pruned, "base variant of B is orphaned")
	assert.False(t, out.Stats.Stalled)

	data, err := json.Marshal(out.Graph)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nodes": [
			{"id": 0, "name": "A", "version": "1.0.0"},
			{"id": 1, "name": "B", "version": "1.1.0"},
			{"id": 2, "name": "C", "version": "1.0.1"}
		],
		"links": [
			{"sourceId": 0, "targetId": 1},
			{"sourceId": 0, "targetId": 2},
			{"sourceId": 1, "targetId": 2}
		]
	}`, string(data))
}

func TestBuildDeterministic(t *testing.T) {
	manifests, res := siblingInput()
	first, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)

	reordered := []depgraph.Manifest{manifests[0], manifests[2], manifests[1]}
	second, err := depgraph.Build(reordered, res, depgraph.Options{})
	require.NoError(t, err)

	a, _ := json.Marshal(first.Graph)
	b, _ := json.Marshal(second.Graph)
	assert.Equal(t, string(a), string(b))
}

func TestBuildEdgeCountWithoutPeers(t *testing.T) {
	manifests := []depgraph.Manifest{
		{
			Name: "root", Version: "1.0.0", IsLocal: true,
			Dependencies:         deps("a", "^1"),
			DevDependencies:      deps("b", "^1"),
			OptionalDependencies: deps("c", "^1", "fsevents", "^2", "ghost", "^1"),
		},
		// Non-local devDependencies are never linked, even when unresolvable.
		{Name: "a", Version: "1.0.0", Dependencies: deps("c", "^1"), DevDependencies: deps("nowhere", "^9")},
		{Name: "b", Version: "1.0.0"},
		{Name: "c", Version: "1.0.0"},
	}
	res := depgraph.Resolutions{
		"a":     {"^1": "1.0.0"},
		"b":     {"^1": "1.0.0"},
		"c":     {"^1": "1.0.0"},
		"ghost": {"^1": "1.0.0"}, // resolved but not installed
	}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)

	// root: 1 dependency + 1 devDependency + 1 resolvable optional; a: 1 dependency
	assert.Len(t, out.Graph.Links, 4)
	assert.Equal(t, []string{"a@1.0.0", "b@1.0.0", "c@1.0.0", "root@1.0.0"}, names(out.Graph))
	assert.Equal(t, 0, out.Stats.VirtualNodes)
}

func TestBuildAncestorPeer(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "A", Version: "1.0.0", Dependencies: deps("B", "^1")},
		{Name: "B", Version: "1.0.0", PeerDependencies: deps("A", "^1")},
	}
	res := depgraph.Resolutions{"B": {"^1": "1.0.0"}}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A@1.0.0", "B@1.0.0"}, names(out.Graph))
	assert.Equal(t, links(0, 1, 1, 0), out.Graph.Links)
}

func pluginInput(secondHostVersion string) ([]depgraph.Manifest, depgraph.Resolutions) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("X", "^1", "Y", "^1")},
		{Name: "X", Version: "1.0.0", Dependencies: deps("L", "^1", "P", "^1")},
		{Name: "Y", Version: "1.0.0", Dependencies: deps("L", "^1", "P", "^"+secondHostVersion[:1])},
		{Name: "L", Version: "1.0.0", PeerDependencies: deps("P", "*")},
		{Name: "P", Version: "1.0.0"},
	}
	res := depgraph.Resolutions{
		"X": {"^1": "1.0.0"},
		"Y": {"^1": "1.0.0"},
		"L": {"^1": "1.0.0"},
		"P": {"^1": "1.0.0"},
	}
	if secondHostVersion != "1.0.0" {
		manifests = append(manifests, depgraph.Manifest{Name: "P", Version: secondHostVersion})
		res["P"]["^"+secondHostVersion[:1]] = secondHostVersion
	}
	return manifests, res
}

func TestBuildVirtualFanOut(t *testing.T) {
	manifests, res := pluginInput("2.0.0")
	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"L@1.0.0", "L@1.0.0", "P@1.0.0", "P@2.0.0", "R@1.0.0", "X@1.0.0", "Y@1.0.0",
	}, names(out.Graph))
	assert.Equal(t, links(
		0, 2, // L (for X) → P@1
		1, 3, // L (for Y) → P@2
		4, 5,
		4, 6,
		5, 0,
		5, 2,
		6, 1,
		6, 3,
	), out.Graph.Links)
	assert.Equal(t, 2, out.Stats.VirtualNodes)
}

func TestBuildVirtualDedup(t *testing.T) {
	manifests, res := pluginInput("1.0.0")
	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"L@1.0.0", "P@1.0.0", "R@1.0.0", "X@1.0.0", "Y@1.0.0"}, names(out.Graph))
	assert.Equal(t, links(0, 1, 2, 3, 2, 4, 3, 0, 3, 1, 4, 0, 4, 1), out.Graph.Links)
	assert.Equal(t, 1, out.Stats.VirtualNodes, "both consumers share one variant")
}

func TestBuildPrunesUnreachable(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("A", "^1")},
		{Name: "A", Version: "1.0.0"},
		{Name: "Z", Version: "1.0.0", Dependencies: deps("A", "^1")},
	}
	res := depgraph.Resolutions{"A": {"^1": "1.0.0"}}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A@1.0.0", "R@1.0.0"}, names(out.Graph))
	assert.Equal(t, links(1, 0), out.Graph.Links)
	assert.Equal(t, 1, out.Stats.Pruned)
}

func TestBuildUnmetPeer(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("B", "^1")},
		{Name: "B", Version: "1.0.0", PeerDependencies: deps("C", "^1")},
	}
	res := depgraph.Resolutions{"B": {"^1": "1.0.0"}}

	t.Run("fatal by default", func(t *testing.T) {
		out, err := depgraph.Build(manifests, res, depgraph.Options{})
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, pgerrors.Is(err, pgerrors.ErrCodeUnmetPeerDependency), "got %v", err)
	})

	t.Run("diagnostic when allowed", func(t *testing.T) {
		out, err := depgraph.Build(manifests, res, depgraph.Options{AllowMissingPeers: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"B@1.0.0", "R@1.0.0"}, names(out.Graph))
		assert.Equal(t, links(1, 0), out.Graph.Links)

		require.Len(t, out.Diagnostics, 1)
		d := out.Diagnostics[0]
		assert.Equal(t, pgerrors.ErrCodeUnmetPeerDependency, d.Code)
		assert.Equal(t, "B@1.0.0", d.Package)
		assert.Equal(t, "R@1.0.0", d.Parent)
		assert.Equal(t, "C", d.Peer)
		assert.Equal(t, "^1", d.Range)
	})
}

func TestBuildOptionalPeerIgnored(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("B", "^1")},
		{
			Name: "B", Version: "1.0.0",
			PeerDependenciesMeta: map[string]depgraph.PeerMeta{"C": {Optional: true}},
		},
	}
	res := depgraph.Resolutions{"B": {"^1": "1.0.0"}}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pgerrors.ErrCodeIgnoredOptionalPeer, out.Diagnostics[0].Code)
	assert.Equal(t, "*", out.Diagnostics[0].Range, "meta-only peers get an implicit range")
	assert.False(t, pgerrors.IsFatal(out.Diagnostics[0].Code))
}

func TestBuildVersionRangeMismatch(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("B", "^1", "C", "^2")},
		{Name: "B", Version: "1.0.0", PeerDependencies: deps("C", "^1.0.0")},
		{Name: "C", Version: "2.0.0"},
	}
	res := depgraph.Resolutions{"B": {"^1": "1.0.0"}, "C": {"^2": "2.0.0"}}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)
	assert.Equal(t, links(0, 1, 2, 0, 2, 1), out.Graph.Links, "mismatch never blocks resolution")

	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pgerrors.ErrCodeVersionRangeMismatch, out.Diagnostics[0].Code)
	assert.Equal(t, "2.0.0", out.Diagnostics[0].Resolved)
}

func TestBuildCustomSatisfies(t *testing.T) {
	manifests, res := siblingInput()
	var calls int
	out, err := depgraph.Build(manifests, res, depgraph.Options{
		Satisfies: func(version, rng string) bool {
			calls++
			return false
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pgerrors.ErrCodeVersionRangeMismatch, out.Diagnostics[0].Code)
}

func TestBuildCyclicPeers(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("A", "^1", "B", "^1")},
		{Name: "A", Version: "1.0.0", PeerDependencies: deps("B", "^1")},
		{Name: "B", Version: "1.0.0", PeerDependencies: deps("A", "^1")},
	}
	res := depgraph.Resolutions{"A": {"^1": "1.0.0"}, "B": {"^1": "1.0.0"}}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A@1.0.0", "B@1.0.0", "R@1.0.0"}, names(out.Graph))
	assert.Equal(t, links(0, 1, 1, 0, 2, 0, 2, 1), out.Graph.Links)
	assert.Empty(t, out.Diagnostics)
}

func TestBuildRequeueUntilParentResolved(t *testing.T) {
	// L needs P from M, but M only gains P once its own peer on P is
	// resolved against R.
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("M", "^1", "P", "^1")},
		{Name: "M", Version: "1.0.0", Dependencies: deps("L", "^1"), PeerDependencies: deps("P", "^1")},
		{Name: "L", Version: "1.0.0", PeerDependencies: deps("P", "^1")},
		{Name: "P", Version: "1.0.0"},
	}
	res := depgraph.Resolutions{
		"M": {"^1": "1.0.0"},
		"L": {"^1": "1.0.0"},
		"P": {"^1": "1.0.0"},
	}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err, "unmet requirements in orphaned contexts must not fail the build")
	assert.Equal(t, []string{"L@1.0.0", "M@1.0.0", "P@1.0.0", "R@1.0.0"}, names(out.Graph))
	assert.Equal(t, links(0, 2, 1, 0, 1, 2, 3, 1, 3, 2), out.Graph.Links)
	assert.Empty(t, out.Diagnostics)
	assert.Equal(t, 1, out.Stats.Requeued)
}

func TestBuildStallTerminates(t *testing.T) {
	// A and C wait on each other's pending peers and neither peer exists.
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("A", "^1")},
		{Name: "A", Version: "1.0.0", Dependencies: deps("C", "^1"), PeerDependencies: deps("x", "^1")},
		{Name: "C", Version: "1.0.0", Dependencies: deps("A", "^1"), PeerDependencies: deps("y", "^1")},
	}
	res := depgraph.Resolutions{"A": {"^1": "1.0.0"}, "C": {"^1": "1.0.0"}}

	_, err := depgraph.Build(manifests, res, depgraph.Options{})
	assert.True(t, pgerrors.Is(err, pgerrors.ErrCodeUnmetPeerDependency), "got %v", err)

	out, err := depgraph.Build(manifests, res, depgraph.Options{AllowMissingPeers: true})
	require.NoError(t, err)
	assert.True(t, out.Stats.Stalled)
	require.Len(t, out.Diagnostics, 3)
	for _, d := range out.Diagnostics {
		assert.Equal(t, pgerrors.ErrCodeUnmetPeerDependency, d.Code)
	}
	assert.Equal(t, links(0, 1, 1, 0, 2, 0), out.Graph.Links)
}

func TestBuildPeerAlreadyDirectDependency(t *testing.T) {
	// B pins its own C@1 while A provides C@2; B's own edge wins and no
	// variant is needed.
	manifests := []depgraph.Manifest{
		{Name: "A", Version: "1.0.0", Dependencies: deps("B", "^1", "C", "^2")},
		{Name: "B", Version: "1.0.0", Dependencies: deps("C", "^1"), PeerDependencies: deps("C", "*")},
		{Name: "C", Version: "1.0.0"},
		{Name: "C", Version: "2.0.0"},
	}
	res := depgraph.Resolutions{
		"B": {"^1": "1.0.0"},
		"C": {"^1": "1.0.0", "^2": "2.0.0"},
	}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A@1.0.0", "B@1.0.0", "C@1.0.0", "C@2.0.0"}, names(out.Graph))
	assert.Equal(t, links(0, 1, 0, 3, 1, 2), out.Graph.Links)
	assert.Equal(t, 0, out.Stats.VirtualNodes)
	assert.Empty(t, out.Diagnostics)
}

func TestBuildSelfPeer(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", Dependencies: deps("B", "^1")},
		{Name: "B", Version: "1.0.0", PeerDependencies: deps("B", "^1")},
	}
	res := depgraph.Resolutions{"B": {"^1": "1.0.0"}}

	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B@1.0.0", "R@1.0.0"}, names(out.Graph))
	assert.Equal(t, links(1, 0), out.Graph.Links, "a package never gets an edge to itself")
	assert.Equal(t, 0, out.Stats.VirtualNodes)
	assert.Empty(t, out.Diagnostics)
}

// denseInput wires every package to most later packages through regular and
// peer dependencies, which produces many variants per (name, version).
func denseInput(n int) ([]depgraph.Manifest, depgraph.Resolutions) {
	manifests := make([]depgraph.Manifest, n)
	res := depgraph.Resolutions{}
	for i := range manifests {
		name := fmt.Sprintf("p%d", i)
		m := depgraph.Manifest{
			Name:             name,
			Version:          "1.0.0",
			Dependencies:     map[string]string{},
			PeerDependencies: map[string]string{},
		}
		for j := i + 1; j < n; j++ {
			dep := fmt.Sprintf("p%d", j)
			if (i+j)%3 != 0 {
				m.Dependencies[dep] = "^1"
			} else {
				m.PeerDependencies[dep] = "^1"
			}
		}
		manifests[i] = m
		res[name] = map[string]string{"^1": "1.0.0"}
	}
	return manifests, res
}

func TestBuildDenseInput(t *testing.T) {
	manifests, res := denseInput(8)
	first, err := depgraph.Build(manifests, res, depgraph.Options{AllowMissingPeers: true})
	require.NoError(t, err)
	second, err := depgraph.Build(manifests, res, depgraph.Options{AllowMissingPeers: true})
	require.NoError(t, err)
	assert.Equal(t, first.Graph, second.Graph)
	assert.NotEmpty(t, first.Graph.Links)
}

func BenchmarkBuildDense(b *testing.B) {
	manifests, res := denseInput(8)
	opts := depgraph.Options{AllowMissingPeers: true}
	for b.Loop() {
		if _, err := depgraph.Build(manifests, res, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func TestBuildPeerOnUnreferencedPackage(t *testing.T) {
	manifests := []depgraph.Manifest{
		{Name: "R", Version: "1.0.0", PeerDependencies: deps("missing", "^1")},
	}
	out, err := depgraph.Build(manifests, nil, depgraph.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"R@1.0.0"}, names(out.Graph))
	assert.Empty(t, out.Graph.Links)
	assert.Empty(t, out.Diagnostics)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name      string
		manifests []depgraph.Manifest
		res       depgraph.Resolutions
		want      pgerrors.Code
	}{
		{
			name: "no manifests",
			want: pgerrors.ErrCodeInvalidInput,
		},
		{
			name:      "empty name",
			manifests: []depgraph.Manifest{{Version: "1.0.0"}},
			want:      pgerrors.ErrCodeInvalidManifest,
		},
		{
			name:      "empty version",
			manifests: []depgraph.Manifest{{Name: "R"}},
			want:      pgerrors.ErrCodeInvalidManifest,
		},
		{
			name: "duplicate manifest",
			manifests: []depgraph.Manifest{
				{Name: "R", Version: "1.0.0"},
				{Name: "A", Version: "1.0.0"},
				{Name: "A", Version: "1.0.0"},
			},
			want: pgerrors.ErrCodeInvalidManifest,
		},
		{
			name: "unresolved dependency",
			manifests: []depgraph.Manifest{
				{Name: "R", Version: "1.0.0", Dependencies: deps("A", "^1")},
			},
			want: pgerrors.ErrCodeUnresolvableDependency,
		},
		{
			name: "resolved dependency without manifest",
			manifests: []depgraph.Manifest{
				{Name: "R", Version: "1.0.0", Dependencies: deps("A", "^1")},
			},
			res:  depgraph.Resolutions{"A": {"^1": "1.0.0"}},
			want: pgerrors.ErrCodeUnresolvableDependency,
		},
		{
			name: "local devDependency",
			manifests: []depgraph.Manifest{
				{Name: "R", Version: "1.0.0", IsLocal: true, DevDependencies: deps("lint", "^1")},
			},
			want: pgerrors.ErrCodeUnresolvableDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := depgraph.Build(tt.manifests, tt.res, depgraph.Options{})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.want, pgerrors.GetCode(err), "err = %v", err)
			assert.True(t, pgerrors.IsFatal(pgerrors.GetCode(err)))
		})
	}
}

func TestBuildLogger(t *testing.T) {
	manifests, res := siblingInput()
	var lines int
	_, err := depgraph.Build(manifests, res, depgraph.Options{
		Logger: func(string, ...any) { lines++ },
	})
	require.NoError(t, err)
	assert.Positive(t, lines)
}

func TestGraphAccessors(t *testing.T) {
	manifests, res := siblingInput()
	out, err := depgraph.Build(manifests, res, depgraph.Options{})
	require.NoError(t, err)

	n, ok := out.Graph.Node(1)
	require.True(t, ok)
	assert.Equal(t, "B", n.Name)
	_, ok = out.Graph.Node(3)
	assert.False(t, ok)

	var got []string
	for _, d := range out.Graph.Dependencies(0) {
		got = append(got, d.Name)
	}
	assert.Equal(t, []string{"B", "C"}, got)
}
