// Package cache stores build results keyed by a hash of their inputs.
//
// Four backends implement [Cache]:
//
//   - [NullCache]: caching disabled
//   - [FileCache]: one file per entry under a directory (CLI default)
//   - [LRUCache]: bounded in-process map (HTTP server default)
//   - [RedisCache]: shared cache for several server instances
//
// Keys are produced by a [Keyer] so that callers never build key strings by
// hand. Values are opaque bytes; the pipeline decides the encoding.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
// A zero ttl means the entry does not expire.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default TTLs for cached values.
const (
	// TTLGraph applies to built graphs. Graphs are a pure function of their
	// input, so the TTL only bounds disk and memory use.
	TTLGraph = 7 * 24 * time.Hour

	// TTLRender applies to rendered DOT and SVG output.
	TTLRender = 24 * time.Hour
)

// Backend names accepted by [Open].
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options selects and configures a backend for [Open].
type Options struct {
	Backend  string
	Dir      string // file backend
	Size     int    // memory backend
	RedisURL string // redis backend
}

// Open creates the backend named by opts.Backend. An empty backend name
// disables caching.
func Open(ctx context.Context, opts Options) (Cache, error) {
	var (
		c   Cache
		err error
	)
	switch opts.Backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		c, err = NewFileCache(opts.Dir)
	case BackendMemory:
		c, err = NewLRUCache(opts.Size)
	case BackendRedis:
		c, err = NewRedisCache(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NullCache never stores anything.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }

var _ Cache = NullCache{}

// GraphKeyOpts holds the build options that change a graph for the same input.
type GraphKeyOpts struct {
	AllowMissingPeers bool `json:"allow_missing_peers"`
}

// RenderKeyOpts holds the options that change rendered output for the same graph.
type RenderKeyOpts struct {
	Format   string `json:"format"`
	Rankdir  string `json:"rankdir,omitempty"`
	Versions bool   `json:"versions,omitempty"`
}

// Keyer generates cache keys.
type Keyer interface {
	// GraphKey returns the key for the graph built from an input with the
	// given content hash.
	GraphKey(inputHash string, opts GraphKeyOpts) string

	// RenderKey returns the key for a rendering of a graph.
	RenderKey(graphHash string, opts RenderKeyOpts) string
}

// DefaultKeyer produces "graph:<sha256>" and "render:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return hashKey("graph", inputHash, opts)
}

func (DefaultKeyer) RenderKey(graphHash string, opts RenderKeyOpts) string {
	return hashKey("render", graphHash, opts)
}
