// Package pkg provides the core libraries for peergraph.
//
// # Overview
//
// Peergraph computes the install graph a package manager would materialize
// from resolved manifests. Packages whose peer dependencies resolve
// differently in different places are duplicated into virtual variants, so a
// single (name, version) may appear more than once in the output.
//
// # Architecture
//
// The typical data flow:
//
//	input document (JSON/YAML)
//	         ↓
//	    [io] package (decode and validate)
//	         ↓
//	    [pipeline] package (cache lookup)
//	         ↓
//	    [depgraph] package (build, resolve peers, serialize)
//	         ↓
//	    {nodes, links} JSON, DOT or SVG
//
// # Quick Start
//
//	in, err := io.LoadInput("deps.json")
//	if err != nil {
//	    return err
//	}
//	res, err := depgraph.Build(in.Manifests, in.Resolutions, in.Options())
//	if err != nil {
//	    return err
//	}
//	return io.WriteGraph(os.Stdout, res.Graph)
//
// # Main Packages
//
// [depgraph] - The graph store, peer requirement queue, builder, resolution
// engine and serializer. Pure computation; no I/O.
//
// [semver] - Range satisfaction used for version mismatch diagnostics.
//
// [errors] - Structured error codes shared by the engine, CLI and HTTP API.
//
// [io] - Input documents and output graph encoding.
//
// [pipeline] - Cached builds and renders used by every entry point.
//
// [cache] - Null, file, in-memory LRU and Redis cache backends.
//
// [render] - DOT and SVG output via Graphviz.
//
// [config] - Layered configuration: defaults, TOML file, .env, environment.
//
// [observability] - Hooks for build, cache and HTTP events.
//
// [buildinfo] - Version information set at link time.
//
// # Testing
//
//	go test ./...                 # All tests
//	go test ./pkg/depgraph/...    # Engine only
//	go test -run Example ./pkg/...
//
// [depgraph]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/depgraph
// [semver]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/semver
// [errors]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/errors
// [io]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/io
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/cache
// [render]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/render
// [config]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/peergraph/pkg/buildinfo
package pkg
