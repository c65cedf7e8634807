// Package pipeline runs graph builds and renders with caching.
//
// The CLI and the HTTP server both go through a [Runner] so that cache keys,
// encodings and logging are the same for every entry point.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	defer runner.Close()
//
//	res, err := runner.Build(ctx, in, pipeline.Options{})
//	if err != nil {
//	    return err
//	}
//	svg, err := runner.Render(ctx, res, pipeline.RenderOptions{Format: pipeline.FormatSVG})
//
// # Caching
//
// A build is keyed by the SHA-256 of its manifests and resolutions plus the
// effective missing-peer policy; the cached value is the msgpack-encoded
// [Result]. Renders are keyed by the hash of the graph and the render
// options. Fatal build errors are never cached.
package pipeline

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/peergraph/pkg/depgraph"
	"github.com/matzehuels/peergraph/pkg/render"
)

// Render output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// ValidFormats is the set of supported render formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
}

// DefaultConcurrency bounds [Runner.BuildAll] when no limit is given.
const DefaultConcurrency = 4

// Options configures a build.
type Options struct {
	// AllowMissingPeers downgrades unmet peers to diagnostics even when the
	// input asks for them to be fatal.
	AllowMissingPeers bool

	// Refresh skips the cache lookup. The fresh result is still stored.
	Refresh bool

	// Logger overrides the runner's logger for this build.
	Logger *log.Logger
}

// RenderOptions configures a render.
type RenderOptions struct {
	Format       string
	Rankdir      string
	HideVersions bool
}

// Validate checks the format and rank direction.
func (o RenderOptions) Validate() error {
	if err := ValidateFormat(o.Format); err != nil {
		return err
	}
	if !render.ValidRankdir(o.Rankdir) {
		return fmt.Errorf("invalid rankdir: %q (must be TB or LR)", o.Rankdir)
	}
	return nil
}

// ValidateFormat checks that format is a supported render format.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: dot, svg)", format)
	}
	return nil
}

// Result is the outcome of a build.
type Result struct {
	Root        string                `msgpack:"root"`
	Graph       depgraph.Graph        `msgpack:"graph"`
	Diagnostics []depgraph.Diagnostic `msgpack:"diagnostics"`
	Stats       depgraph.Stats        `msgpack:"stats"`

	// GraphHash is the SHA-256 of the graph's JSON encoding.
	GraphHash string `msgpack:"graph_hash"`

	// Cached reports whether the result was served from the cache.
	Cached bool `msgpack:"-"`

	// Duration is the wall time of the Build call, including cache access.
	Duration time.Duration `msgpack:"-"`
}
