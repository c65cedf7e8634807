package depgraph

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrUnknownNode is returned by [Store] operations that are given a node ID
	// that was never allocated.
	ErrUnknownNode = errors.New("unknown node")

	// ErrMissingEdge is returned by [Store.ReplaceEdge] when the edge to be
	// replaced does not exist.
	ErrMissingEdge = errors.New("missing edge")
)

// NodeID is an internal node identifier. IDs are allocated in increasing order
// and never reused. They are unrelated to the IDs in serialized output.
type NodeID int

// PeerBinding records that a peer dependency named Name was resolved to Target.
type PeerBinding struct {
	Name   string
	Target NodeID
}

// PeerSet is a set of peer bindings sorted by name. A node's PeerSet is fixed
// when the node is created.
type PeerSet []PeerBinding

// With returns a copy of s with name bound to target, replacing any existing
// binding for name. The receiver is not modified.
func (s PeerSet) With(name string, target NodeID) PeerSet {
	out := make(PeerSet, 0, len(s)+1)
	for _, b := range s {
		if b.Name != name {
			out = append(out, b)
		}
	}
	out = append(out, PeerBinding{Name: name, Target: target})
	slices.SortFunc(out, func(a, b PeerBinding) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Has reports whether s binds name.
func (s PeerSet) Has(name string) bool {
	for _, b := range s {
		if b.Name == name {
			return true
		}
	}
	return false
}

// Key returns a canonical string form of s used for exact-match lookups.
func (s PeerSet) Key() string {
	var sb strings.Builder
	for i, b := range s {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(b.Name)
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(int(b.Target)))
	}
	return sb.String()
}

// Node is a package instance in the graph. A node with an empty Peers set is
// the base variant of its (Name, Version); others are virtual variants.
type Node struct {
	ID      NodeID
	Name    string
	Version string
	Peers   PeerSet
}

// IsVirtual reports whether the node was created by peer resolution.
func (n *Node) IsVirtual() bool { return len(n.Peers) > 0 }

// String returns "name@version".
func (n *Node) String() string { return n.Name + "@" + n.Version }

type variantKey struct {
	name    string
	version string
}

// Store owns the nodes, edges and variant groups of a dependency graph under
// construction.
//
// Nodes live in a flat arena indexed by [NodeID]; adjacency is kept as ID
// lists in both directions, so cycles need no special handling. Every forward
// edge has exactly one mirrored reverse entry. Each variant group is indexed
// by peer set key, so [Store.FindVariant] does not scan the group.
//
// The zero value is not usable - use [NewStore].
// Store is not safe for concurrent use.
type Store struct {
	nodes    []*Node
	children [][]NodeID
	parents  [][]NodeID
	variants map[variantKey][]NodeID
	byPeers  map[variantKey]map[string]NodeID
	edges    int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		variants: make(map[variantKey][]NodeID),
		byPeers:  make(map[variantKey]map[string]NodeID),
	}
}

// AddNode allocates a new node with an empty peer set and returns its ID.
// It always allocates; callers are responsible for not creating two base
// variants of the same (name, version).
func (s *Store) AddNode(name, version string) NodeID {
	return s.alloc(name, version, nil)
}

// AddVariant allocates a new node in the variant group of from, carrying the
// given peer set. Edges are not copied.
func (s *Store) AddVariant(from NodeID, peers PeerSet) (NodeID, error) {
	src, ok := s.Node(from)
	if !ok {
		return 0, ErrUnknownNode
	}
	return s.alloc(src.Name, src.Version, slices.Clone(peers)), nil
}

func (s *Store) alloc(name, version string, peers PeerSet) NodeID {
	id := NodeID(len(s.nodes))
	key := peers.Key()
	s.nodes = append(s.nodes, &Node{ID: id, Name: name, Version: version, Peers: peers})
	s.children = append(s.children, nil)
	s.parents = append(s.parents, nil)

	k := variantKey{name, version}
	s.variants[k] = append(s.variants[k], id)
	group := s.byPeers[k]
	if group == nil {
		group = make(map[string]NodeID)
		s.byPeers[k] = group
	}
	// The first node allocated for a key wins.
	if _, dup := group[key]; !dup {
		group[key] = id
	}
	return id
}

// Node returns the node with the given ID.
func (s *Store) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(s.nodes) {
		return nil, false
	}
	return s.nodes[id], true
}

// Len returns the number of nodes ever allocated, including orphans.
func (s *Store) Len() int { return len(s.nodes) }

// EdgeCount returns the number of edges currently in the store.
func (s *Store) EdgeCount() int { return s.edges }

// AddEdge inserts the edge src→dst. Inserting an existing edge is a no-op.
func (s *Store) AddEdge(src, dst NodeID) error {
	if !s.valid(src) || !s.valid(dst) {
		return ErrUnknownNode
	}
	if slices.Contains(s.children[src], dst) {
		return nil
	}
	s.children[src] = append(s.children[src], dst)
	s.parents[dst] = append(s.parents[dst], src)
	s.edges++
	return nil
}

// HasEdge reports whether the edge src→dst exists.
func (s *Store) HasEdge(src, dst NodeID) bool {
	if !s.valid(src) {
		return false
	}
	return slices.Contains(s.children[src], dst)
}

// ReplaceEdge swaps parent→old for parent→repl in both directions. The new
// child takes the old child's position in the parent's child list. If
// parent→repl already exists, parent→old is simply removed.
func (s *Store) ReplaceEdge(parent, old, repl NodeID) error {
	if !s.valid(parent) || !s.valid(old) || !s.valid(repl) {
		return ErrUnknownNode
	}
	i := slices.Index(s.children[parent], old)
	if i < 0 {
		return ErrMissingEdge
	}
	if old == repl {
		return nil
	}
	s.parents[old] = slices.DeleteFunc(s.parents[old], func(p NodeID) bool { return p == parent })
	if slices.Contains(s.children[parent], repl) {
		s.children[parent] = slices.Delete(s.children[parent], i, i+1)
		s.edges--
		return nil
	}
	s.children[parent][i] = repl
	s.parents[repl] = append(s.parents[repl], parent)
	return nil
}

// Children returns the direct dependencies of id in insertion order.
// The returned slice should not be modified.
func (s *Store) Children(id NodeID) []NodeID {
	if !s.valid(id) {
		return nil
	}
	return s.children[id]
}

// Parents returns the direct dependents of id in insertion order.
// The returned slice should not be modified.
func (s *Store) Parents(id NodeID) []NodeID {
	if !s.valid(id) {
		return nil
	}
	return s.parents[id]
}

// Variants returns every node sharing (name, version), base variant first.
func (s *Store) Variants(name, version string) []NodeID {
	return s.variants[variantKey{name, version}]
}

// BaseVariant returns the node for (name, version) with no resolved peers.
func (s *Store) BaseVariant(name, version string) (NodeID, bool) {
	return s.FindVariant(name, version, nil)
}

// FindVariant returns the node in the (name, version) group whose peer set
// equals peers exactly.
func (s *Store) FindVariant(name, version string, peers PeerSet) (NodeID, bool) {
	id, ok := s.byPeers[variantKey{name, version}][peers.Key()]
	return id, ok
}

// ChildNamed returns the first child of id whose package name is name.
func (s *Store) ChildNamed(id NodeID, name string) (NodeID, bool) {
	for _, c := range s.Children(id) {
		if s.nodes[c].Name == name {
			return c, true
		}
	}
	return 0, false
}

func (s *Store) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(s.nodes)
}
