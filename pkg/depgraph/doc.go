// Package depgraph builds the installation graph of a set of resolved
// packages, giving every package that declares peer dependencies its own
// instance per distinct peer context.
//
// # Overview
//
// A package manager that has already chosen a concrete version for every
// (name, range) pair still has to decide where each package is installed.
// Regular dependencies are simple edges. Peer dependencies are not: a
// package that peer-depends on "react" must see the same "react" that its
// dependent sees. When two dependents see different copies, the package must
// be installed twice, once per context.
//
// [Build] models those copies as virtual variants. Every (name, version)
// starts with a base variant; peer resolution clones it into variants whose
// [PeerSet] records which node each peer was bound to. Variants with equal
// peer sets are shared.
//
// # Basic Usage
//
//	res, err := depgraph.Build([]depgraph.Manifest{
//		{Name: "app", Version: "1.0.0", Dependencies: map[string]string{"b": "^1.0.0", "c": "^1.0.0"}},
//		{Name: "b", Version: "1.1.0", PeerDependencies: map[string]string{"c": "^1.0.0"}},
//		{Name: "c", Version: "1.0.1"},
//	}, depgraph.Resolutions{
//		"b": {"^1.0.0": "1.1.0"},
//		"c": {"^1.0.0": "1.0.1"},
//	}, depgraph.Options{})
//
// The first manifest is the root. The result's [Graph] contains only nodes
// reachable from it, with IDs assigned by (name, version) rank.
//
// # Resolution
//
// Peers are resolved against the dependent that installs the package: first
// the dependent itself (which allows cycles such as a plugin peer-depending
// on its host), then its direct dependencies in insertion order.
// Requirements are processed from a FIFO queue. A required peer that cannot
// be found yet is retried while its dependent still has peer requirements of
// its own pending, because those may give the dependent new children. If a
// whole pass over the queue makes no progress, the remaining requirements
// are treated as unmet.
//
// # Errors
//
// Missing targets for dependencies and local devDependencies fail the build
// with UNRESOLVABLE_DEPENDENCY. Unmet required peers fail it with
// UNMET_PEER_DEPENDENCY unless [Options.AllowMissingPeers] is set. Ignored
// optional peers and peers resolved outside their declared range are
// reported as [Diagnostic] values and never fail the build.
//
// # Concurrency
//
// A [Build] call owns all of its state. Separate calls may run concurrently.
package depgraph
