package depgraph

import (
	"fmt"

	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
	"github.com/matzehuels/peergraph/pkg/semver"
)

// Manifest describes one resolved package. The first manifest passed to
// [Build] is the graph root.
type Manifest struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`

	// IsLocal marks packages that live in the repository. Only local
	// packages contribute devDependencies.
	IsLocal bool `json:"isLocal,omitempty" yaml:"isLocal,omitempty"`

	Dependencies         map[string]string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DevDependencies      map[string]string   `json:"devDependencies,omitempty" yaml:"devDependencies,omitempty"`
	OptionalDependencies map[string]string   `json:"optionalDependencies,omitempty" yaml:"optionalDependencies,omitempty"`
	PeerDependencies     map[string]string   `json:"peerDependencies,omitempty" yaml:"peerDependencies,omitempty"`
	PeerDependenciesMeta map[string]PeerMeta `json:"peerDependenciesMeta,omitempty" yaml:"peerDependenciesMeta,omitempty"`
}

// PeerMeta carries per-peer flags from peerDependenciesMeta.
type PeerMeta struct {
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// String returns "name@version".
func (m Manifest) String() string { return m.Name + "@" + m.Version }

// Resolutions maps a package name to a table of range → concrete version.
type Resolutions map[string]map[string]string

// Lookup returns the concrete version chosen for name at rng.
func (r Resolutions) Lookup(name, rng string) (string, bool) {
	v, ok := r[name][rng]
	return v, ok
}

// Options configures graph construction.
type Options struct {
	// AllowMissingPeers reports unmet required peer dependencies as
	// diagnostics instead of failing the build.
	AllowMissingPeers bool

	// Satisfies reports whether a resolved version matches a declared range.
	// It only drives VERSION_RANGE_MISMATCH diagnostics. Defaults to
	// [semver.Satisfies].
	Satisfies func(version, rng string) bool

	// Logger receives debug-level progress messages (optional).
	Logger func(string, ...any)
}

// WithDefaults returns a copy of Options with nil hooks replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Satisfies == nil {
		opts.Satisfies = semver.Satisfies
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Diagnostic is a non-fatal finding recorded during peer resolution.
type Diagnostic struct {
	Code     pgerrors.Code `json:"code" msgpack:"code"`
	Package  string        `json:"package" msgpack:"package"` // dependent declaring the peer
	Parent   string        `json:"parent" msgpack:"parent"`   // context the peer was looked up in
	Peer     string        `json:"peer" msgpack:"peer"`
	Range    string        `json:"range" msgpack:"range"`
	Resolved string        `json:"resolved,omitempty" msgpack:"resolved,omitempty"`
	Message  string        `json:"message" msgpack:"message"`
}

// Stats summarizes the work done by a build.
type Stats struct {
	BaseNodes    int  `json:"baseNodes" msgpack:"baseNodes"`
	VirtualNodes int  `json:"virtualNodes" msgpack:"virtualNodes"`
	Pruned       int  `json:"pruned" msgpack:"pruned"`
	Steps        int  `json:"steps" msgpack:"steps"`
	Requeued     int  `json:"requeued" msgpack:"requeued"`
	Stalled      bool `json:"stalled,omitempty" msgpack:"stalled,omitempty"`
}

// Result is the outcome of a successful build.
type Result struct {
	Graph       Graph
	Diagnostics []Diagnostic
	Stats       Stats
}

// Build computes the installation graph for manifests.
//
// Build is all-or-nothing: on a fatal error (an unresolvable dependency, or
// an unmet required peer when opts.AllowMissingPeers is false) no graph is
// returned. Fatal errors are *errors.Error values carrying one of the codes
// in package errors.
func Build(manifests []Manifest, resolutions Resolutions, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	if err := validate(manifests); err != nil {
		return nil, err
	}

	b := newBuilder()
	root, err := b.build(manifests, resolutions)
	if err != nil {
		return nil, err
	}
	opts.Logger("built %d base nodes, %d edges, %d peer requirements",
		b.store.Len(), b.store.EdgeCount(), b.queue.Len())

	e := newEngine(b, root, opts)
	diags, err := e.run()
	if err != nil {
		return nil, err
	}

	g, reachable := serialize(b.store, root)
	e.stats.BaseNodes = len(manifests)
	e.stats.VirtualNodes = b.store.Len() - len(manifests)
	e.stats.Pruned = b.store.Len() - reachable
	opts.Logger("serialized %d nodes, %d links (%d pruned)", len(g.Nodes), len(g.Links), e.stats.Pruned)

	return &Result{Graph: g, Diagnostics: diags, Stats: e.stats}, nil
}

func validate(manifests []Manifest) error {
	if len(manifests) == 0 {
		return pgerrors.New(pgerrors.ErrCodeInvalidInput, "at least one manifest is required")
	}
	seen := make(map[string]int, len(manifests))
	for i, m := range manifests {
		if err := pgerrors.ValidatePackageName(m.Name); err != nil {
			return pgerrors.Wrap(pgerrors.ErrCodeInvalidManifest, err, "manifest %d", i)
		}
		if err := pgerrors.ValidateVersion(m.Version); err != nil {
			return pgerrors.Wrap(pgerrors.ErrCodeInvalidManifest, err, "manifest %d (%s)", i, m.Name)
		}
		key := m.String()
		if j, dup := seen[key]; dup {
			return pgerrors.New(pgerrors.ErrCodeInvalidManifest,
				"duplicate manifest %s at positions %d and %d", key, j, i)
		}
		seen[key] = i
	}
	return nil
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}
