package depgraph

import (
	"fmt"

	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
)

// issue is a finding that only becomes a diagnostic (or a fatal error) if its
// context is still part of the installed graph once resolution finishes.
type issue struct {
	diag   Diagnostic
	parent NodeID
	source NodeID
	// onEdge findings are superseded when parent→source is later rewired;
	// the rewired variant re-enqueues the same peer and reports again.
	onEdge bool
}

// engine drains the peer requirement queue against the store.
type engine struct {
	store *Store
	queue *Queue
	decls map[variantKey][]PeerDecl
	root  NodeID
	opts  Options

	issues []issue
	stats  Stats
}

func newEngine(b *builder, root NodeID, opts Options) *engine {
	return &engine{
		store: b.store,
		queue: b.queue,
		decls: b.decls,
		root:  root,
		opts:  opts,
	}
}

// run resolves every queued requirement and returns the diagnostics that
// apply to the reachable graph.
//
// Termination: a requeue is the only step that makes no progress. Once the
// number of consecutive requeues reaches the queue length, every queued
// requirement has been retried since anything last changed, and the rest are
// treated as unmet.
func (e *engine) run() ([]Diagnostic, error) {
	idle := 0
	for e.queue.Len() > 0 {
		req, _ := e.queue.Pop()
		e.stats.Steps++
		progressed, err := e.step(req)
		if err != nil {
			return nil, err
		}
		if progressed {
			idle = 0
			continue
		}
		e.stats.Requeued++
		if idle++; idle >= e.queue.Len() {
			e.stall()
			break
		}
	}
	return e.finish()
}

func (e *engine) step(req Requirement) (bool, error) {
	if !e.store.HasEdge(req.Parent, req.Source) {
		e.opts.Logger("stale peer requirement %s → %s (%s)", e.name(req.Parent), e.name(req.Source), req.Peer.Name)
		return true, nil
	}

	src, _ := e.store.Node(req.Source)
	if src.Name == req.Peer.Name {
		return true, nil
	}
	if _, ok := e.store.ChildNamed(req.Source, req.Peer.Name); ok {
		return true, nil
	}

	target, ok := e.lookup(req)
	if !ok {
		return e.unresolved(req), nil
	}

	e.checkRange(req, target)
	if err := e.attach(req, target); err != nil {
		return false, pgerrors.Wrap(pgerrors.ErrCodeInternal, err, "attach %s to %s", req.Peer.Name, src)
	}
	return true, nil
}

// lookup finds the node satisfying req in its parent's context: the parent
// itself when it carries the peer's name, otherwise the first sibling of the
// source with that name.
func (e *engine) lookup(req Requirement) (NodeID, bool) {
	parent, _ := e.store.Node(req.Parent)
	if parent.Name == req.Peer.Name {
		return req.Parent, true
	}
	return e.store.ChildNamed(req.Parent, req.Peer.Name)
}

// unresolved handles a requirement with no match and reports whether that
// counts as progress.
func (e *engine) unresolved(req Requirement) bool {
	if req.Peer.Optional {
		e.record(req, pgerrors.ErrCodeIgnoredOptionalPeer, "", true,
			"optional peer dependency %s@%s of %s not found in %s",
			req.Peer.Name, req.Peer.Range, e.name(req.Source), e.name(req.Parent))
		return true
	}
	// Resolving the parent's own peers may give it a new variant whose
	// children include the missing package. Retry after those.
	if e.queue.PendingFor(req.Parent) {
		e.queue.Push(req)
		return false
	}
	e.unmet(req)
	return true
}

func (e *engine) unmet(req Requirement) {
	e.record(req, pgerrors.ErrCodeUnmetPeerDependency, "", true,
		"unmet peer dependency %s@%s of %s in %s",
		req.Peer.Name, req.Peer.Range, e.name(req.Source), e.name(req.Parent))
}

func (e *engine) stall() {
	e.stats.Stalled = true
	rest := e.queue.Drain()
	e.opts.Logger("peer resolution stalled with %d requirements left", len(rest))
	for _, req := range rest {
		if e.store.HasEdge(req.Parent, req.Source) {
			e.unmet(req)
		}
	}
}

func (e *engine) checkRange(req Requirement, target NodeID) {
	t, _ := e.store.Node(target)
	if e.opts.Satisfies(t.Version, req.Peer.Range) {
		return
	}
	e.record(req, pgerrors.ErrCodeVersionRangeMismatch, t.Version, false,
		"peer dependency %s@%s of %s resolved to %s in %s",
		req.Peer.Name, req.Peer.Range, e.name(req.Source), t, e.name(req.Parent))
}

// attach points req.Parent at a variant of req.Source whose peer set also
// binds req.Peer.Name to target, creating the variant if needed.
func (e *engine) attach(req Requirement, target NodeID) error {
	src, _ := e.store.Node(req.Source)
	peers := src.Peers.With(req.Peer.Name, target)

	if id, ok := e.store.FindVariant(src.Name, src.Version, peers); ok {
		if err := e.store.ReplaceEdge(req.Parent, req.Source, id); err != nil {
			return err
		}
		e.enqueuePending(req.Parent, id)
		return nil
	}

	id, err := e.store.AddVariant(req.Source, peers)
	if err != nil {
		return err
	}
	for _, c := range e.store.Children(req.Source) {
		if err := e.store.AddEdge(id, c); err != nil {
			return err
		}
	}
	if err := e.store.AddEdge(id, target); err != nil {
		return err
	}
	e.opts.Logger("created variant %d of %s with peers {%s}", id, src, peers.Key())

	e.enqueuePending(req.Parent, id)
	// The new variant is a new peer context for each of its children.
	for _, c := range e.store.Children(id) {
		e.enqueuePending(id, c)
	}
	return e.store.ReplaceEdge(req.Parent, req.Source, id)
}

// enqueuePending queues every declared peer of source not yet bound in its
// peer set, as seen from parent.
func (e *engine) enqueuePending(parent, source NodeID) {
	n, _ := e.store.Node(source)
	for _, d := range e.decls[variantKey{n.Name, n.Version}] {
		if !n.Peers.Has(d.Name) {
			e.queue.Push(Requirement{Parent: parent, Source: source, Peer: d})
		}
	}
}

func (e *engine) record(req Requirement, code pgerrors.Code, resolved string, onEdge bool, format string, args ...any) {
	d := Diagnostic{
		Code:     code,
		Package:  e.name(req.Source),
		Parent:   e.name(req.Parent),
		Peer:     req.Peer.Name,
		Range:    req.Peer.Range,
		Resolved: resolved,
		Message:  fmt.Sprintf(format, args...),
	}
	e.opts.Logger("%s", d)
	e.issues = append(e.issues, issue{diag: d, parent: req.Parent, source: req.Source, onEdge: onEdge})
}

// finish keeps the findings whose context survived resolution. Findings in
// orphaned variants never reach the output graph, so they are dropped. The
// first surviving unmet peer is fatal unless AllowMissingPeers is set.
func (e *engine) finish() ([]Diagnostic, error) {
	live := e.reachable()
	seen := make(map[Diagnostic]bool)
	var out []Diagnostic
	for _, is := range e.issues {
		if !live[is.parent] {
			continue
		}
		if is.onEdge && !e.store.HasEdge(is.parent, is.source) {
			continue
		}
		if is.diag.Code == pgerrors.ErrCodeUnmetPeerDependency && !e.opts.AllowMissingPeers {
			return nil, pgerrors.New(pgerrors.ErrCodeUnmetPeerDependency, "%s", is.diag.Message)
		}
		if seen[is.diag] {
			continue
		}
		seen[is.diag] = true
		out = append(out, is.diag)
	}
	return out, nil
}

func (e *engine) reachable() map[NodeID]bool {
	seen := map[NodeID]bool{e.root: true}
	stack := []NodeID{e.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range e.store.Children(id) {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return seen
}

func (e *engine) name(id NodeID) string {
	if n, ok := e.store.Node(id); ok {
		return n.String()
	}
	return fmt.Sprintf("#%d", id)
}
