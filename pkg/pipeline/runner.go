package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/peergraph/pkg/cache"
	"github.com/matzehuels/peergraph/pkg/depgraph"
	"github.com/matzehuels/peergraph/pkg/io"
	"github.com/matzehuels/peergraph/pkg/observability"
	"github.com/matzehuels/peergraph/pkg/render"
)

// Runner executes builds and renders against a cache.
//
// A Runner holds no per-build state; one Runner may serve concurrent calls.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// GraphTTL bounds the lifetime of cached graphs. Zero selects
	// cache.TTLGraph.
	GraphTTL time.Duration
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// selects the default keyer and a nil logger selects log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// cacheInput is the part of an input that determines the graph.
type cacheInput struct {
	Manifests   []depgraph.Manifest  `json:"manifests"`
	Resolutions depgraph.Resolutions `json:"resolutions"`
}

// Build computes the graph for in, consulting the cache first.
func (r *Runner) Build(ctx context.Context, in *io.Input, opts Options) (*Result, error) {
	start := time.Now()
	logger := r.logger(opts)
	allowMissing := opts.AllowMissingPeers || !in.FailOnMissingPeers()
	root := in.Root()

	hooks := observability.Build()
	hooks.OnBuildStart(ctx, root, len(in.Manifests))

	inputHash, err := cache.HashJSON(cacheInput{Manifests: in.Manifests, Resolutions: in.Resolutions})
	if err != nil {
		return nil, fmt.Errorf("hash input: %w", err)
	}
	key := r.Keyer.GraphKey(inputHash, cache.GraphKeyOpts{AllowMissingPeers: allowMissing})

	if !opts.Refresh {
		if res, ok := r.lookup(ctx, key, logger); ok {
			res.Duration = time.Since(start)
			hooks.OnBuildComplete(ctx, root, summarize(res), res.Duration, nil)
			return res, nil
		}
	}

	out, err := depgraph.Build(in.Manifests, in.Resolutions, depgraph.Options{
		AllowMissingPeers: allowMissing,
		Logger:            logger.Debugf,
	})
	if err != nil {
		hooks.OnBuildComplete(ctx, root, observability.BuildSummary{}, time.Since(start), err)
		return nil, err
	}

	res := &Result{
		Root:        root,
		Graph:       out.Graph,
		Diagnostics: out.Diagnostics,
		Stats:       out.Stats,
	}
	if res.GraphHash, err = cache.HashJSON(out.Graph); err != nil {
		return nil, fmt.Errorf("hash graph: %w", err)
	}
	for _, d := range res.Diagnostics {
		logger.Warn(d.Message, "code", d.Code)
	}
	logger.Info("built graph",
		"root", root,
		"nodes", len(res.Graph.Nodes),
		"links", len(res.Graph.Links),
		"virtual", res.Stats.VirtualNodes,
		"pruned", res.Stats.Pruned,
		"diagnostics", len(res.Diagnostics))
	if res.Stats.Stalled {
		logger.Warn("peer resolution stalled; remaining requirements were treated as unmet", "root", root)
	}

	r.store(ctx, key, res, logger)
	res.Duration = time.Since(start)
	hooks.OnBuildComplete(ctx, root, summarize(res), res.Duration, nil)
	return res, nil
}

func (r *Runner) lookup(ctx context.Context, key string, logger *log.Logger) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "graph")
		return nil, false
	}
	var res Result
	if err := msgpack.Unmarshal(data, &res); err != nil {
		logger.Warn("discarding undecodable cache entry", "err", err)
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, "graph")
		return nil, false
	}
	if res.Graph.Links == nil {
		res.Graph.Links = []depgraph.Link{}
	}
	observability.Cache().OnCacheHit(ctx, "graph")
	logger.Debug("graph cache hit", "root", res.Root)
	res.Cached = true
	return &res, true
}

func (r *Runner) store(ctx context.Context, key string, res *Result, logger *log.Logger) {
	data, err := msgpack.Marshal(res)
	if err != nil {
		logger.Warn("encode result for cache", "err", err)
		return
	}
	ttl := r.GraphTTL
	if ttl == 0 {
		ttl = cache.TTLGraph
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "graph", len(data))
}

// Render draws res in the requested format. The second return value reports
// a cache hit.
func (r *Runner) Render(ctx context.Context, res *Result, opts RenderOptions) ([]byte, bool, error) {
	if err := opts.Validate(); err != nil {
		return nil, false, err
	}
	key := r.Keyer.RenderKey(res.GraphHash, cache.RenderKeyOpts{
		Format:   opts.Format,
		Rankdir:  opts.Rankdir,
		Versions: !opts.HideVersions,
	})
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "render")
		return data, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "render")

	start := time.Now()
	hooks := observability.Build()
	hooks.OnRenderStart(ctx, opts.Format, len(res.Graph.Nodes))

	dot := render.ToDOT(res.Graph, render.Options{
		Rankdir:      opts.Rankdir,
		HideVersions: opts.HideVersions,
		Root:         res.Root,
	})
	data := []byte(dot)
	if opts.Format == FormatSVG {
		svg, err := render.RenderSVG(ctx, dot)
		if err != nil {
			hooks.OnRenderComplete(ctx, opts.Format, time.Since(start), err)
			return nil, false, err
		}
		data = svg
	}
	hooks.OnRenderComplete(ctx, opts.Format, time.Since(start), nil)

	if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err == nil {
		observability.Cache().OnCacheSet(ctx, "render", len(data))
	}
	return data, false, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.Logger
}

func summarize(res *Result) observability.BuildSummary {
	return observability.BuildSummary{
		Nodes:       len(res.Graph.Nodes),
		Links:       len(res.Graph.Links),
		Diagnostics: len(res.Diagnostics),
		Cached:      res.Cached,
	}
}
