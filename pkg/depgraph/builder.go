package depgraph

import (
	"maps"
	"slices"
	"strings"

	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
)

// builder turns manifests into base nodes, regular edges and the initial
// peer requirements.
type builder struct {
	store *Store
	queue *Queue
	decls map[variantKey][]PeerDecl
}

func newBuilder() *builder {
	return &builder{
		store: NewStore(),
		queue: NewQueue(),
		decls: make(map[variantKey][]PeerDecl),
	}
}

// build returns the root node. Every dependency kind is applied across all
// manifests before the next kind starts, so the first failing dependency
// reported is stable regardless of which manifest declares it.
func (b *builder) build(manifests []Manifest, res Resolutions) (NodeID, error) {
	order := canonicalOrder(manifests)

	ids := make([]NodeID, len(order))
	for i, m := range order {
		ids[i] = b.store.AddNode(m.Name, m.Version)
	}

	for i, m := range order {
		if err := b.link(ids[i], m, "dependency", m.Dependencies, res, true); err != nil {
			return 0, err
		}
	}
	for i, m := range order {
		if !m.IsLocal {
			continue
		}
		if err := b.link(ids[i], m, "devDependency", m.DevDependencies, res, true); err != nil {
			return 0, err
		}
	}
	for i, m := range order {
		// Missing optional dependencies are legal: they were not installed.
		if err := b.link(ids[i], m, "optionalDependency", m.OptionalDependencies, res, false); err != nil {
			return 0, err
		}
	}
	for i, m := range order {
		b.declarePeers(ids[i], m)
	}

	return ids[0], nil
}

func (b *builder) link(src NodeID, m Manifest, kind string, deps map[string]string, res Resolutions, required bool) error {
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		rng := deps[name]
		target, ok := b.target(name, rng, res)
		if !ok {
			if !required {
				continue
			}
			return pgerrors.New(pgerrors.ErrCodeUnresolvableDependency,
				"%s: %s %s@%s has no resolved package", m, kind, name, rng)
		}
		if err := b.store.AddEdge(src, target); err != nil {
			return pgerrors.Wrap(pgerrors.ErrCodeInternal, err, "%s: link %s", m, name)
		}
	}
	return nil
}

func (b *builder) target(name, rng string, res Resolutions) (NodeID, bool) {
	version, ok := res.Lookup(name, rng)
	if !ok {
		return 0, false
	}
	return b.store.BaseVariant(name, version)
}

// declarePeers records m's peer dependencies and fans out one requirement per
// current parent of its base node. Names that only appear in
// peerDependenciesMeta get an implicit "*" range.
func (b *builder) declarePeers(id NodeID, m Manifest) {
	names := make(map[string]struct{}, len(m.PeerDependencies)+len(m.PeerDependenciesMeta))
	for name := range m.PeerDependencies {
		names[name] = struct{}{}
	}
	for name := range m.PeerDependenciesMeta {
		names[name] = struct{}{}
	}
	if len(names) == 0 {
		return
	}

	key := variantKey{m.Name, m.Version}
	for _, name := range slices.Sorted(maps.Keys(names)) {
		rng, ok := m.PeerDependencies[name]
		if !ok {
			rng = "*"
		}
		decl := PeerDecl{Name: name, Range: rng, Optional: m.PeerDependenciesMeta[name].Optional}
		b.decls[key] = append(b.decls[key], decl)

		for _, parent := range b.store.Parents(id) {
			b.queue.Push(Requirement{Parent: parent, Source: id, Peer: decl})
		}
	}
}

// canonicalOrder keeps the root first and sorts the rest by (name, version),
// so that internal IDs do not depend on input order.
func canonicalOrder(manifests []Manifest) []Manifest {
	order := slices.Clone(manifests)
	rest := order[1:]
	slices.SortStableFunc(rest, func(a, b Manifest) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Version, b.Version)
	})
	return order
}
