// Package observability provides hooks for metrics and tracing.
//
// Libraries emit events through the registered hooks; main registers real
// implementations at startup. Nothing in this package depends on a metrics
// backend, and every hook defaults to a no-op.
//
// # Usage
//
//	func main() {
//	    observability.SetBuildHooks(&promBuildHooks{})
//	    // ... run application
//	}
//
// Emitting events:
//
//	observability.Build().OnBuildStart(ctx, root, len(manifests))
//	// ... build ...
//	observability.Build().OnBuildComplete(ctx, root, BuildSummary{...}, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// BuildSummary describes a finished graph build.
type BuildSummary struct {
	Nodes       int
	Links       int
	Diagnostics int
	Cached      bool
}

// BuildHooks receives events from graph builds and rendering.
type BuildHooks interface {
	OnBuildStart(ctx context.Context, root string, manifests int)
	OnBuildComplete(ctx context.Context, root string, summary BuildSummary, duration time.Duration, err error)

	OnRenderStart(ctx context.Context, format string, nodes int)
	OnRenderComplete(ctx context.Context, format string, duration time.Duration, err error)
}

// CacheHooks receives events from cache lookups. keyType is "graph" or "render".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// ServerHooks receives events from the HTTP API.
type ServerHooks interface {
	// OnRequest is called after a request has been served. route is the
	// matched route pattern, not the raw path.
	OnRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// NoopBuildHooks ignores all build events.
type NoopBuildHooks struct{}

func (NoopBuildHooks) OnBuildStart(context.Context, string, int) {}
func (NoopBuildHooks) OnBuildComplete(context.Context, string, BuildSummary, time.Duration, error) {
}
func (NoopBuildHooks) OnRenderStart(context.Context, string, int)                     {}
func (NoopBuildHooks) OnRenderComplete(context.Context, string, time.Duration, error) {}

// NoopCacheHooks ignores all cache events.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopServerHooks ignores all server events.
type NoopServerHooks struct{}

func (NoopServerHooks) OnRequest(context.Context, string, string, int, time.Duration) {}

var (
	buildHooks  BuildHooks  = NoopBuildHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	serverHooks ServerHooks = NoopServerHooks{}
	hooksMu     sync.RWMutex
)

// SetBuildHooks registers build hooks. A nil h is ignored.
func SetBuildHooks(h BuildHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		buildHooks = h
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetServerHooks registers server hooks. A nil h is ignored.
func SetServerHooks(h ServerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		serverHooks = h
	}
}

// Build returns the registered build hooks.
func Build() BuildHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return buildHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Server returns the registered server hooks.
func Server() ServerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return serverHooks
}

// Reset restores the no-op defaults. Intended for tests.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	buildHooks = NoopBuildHooks{}
	cacheHooks = NoopCacheHooks{}
	serverHooks = NoopServerHooks{}
}
