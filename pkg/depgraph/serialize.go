package depgraph

import (
	"cmp"
	"slices"
)

// Graph is the serialized installation graph. Its JSON form is
//
//	{"nodes":[{"id":0,"name":"a","version":"1.0.0"}],"links":[{"sourceId":0,"targetId":1}]}
//
// Node IDs are ranks in (name, version) order, and links are sorted by
// (sourceId, targetId), so equal inputs always encode to equal bytes.
type Graph struct {
	Nodes []GraphNode `json:"nodes" msgpack:"nodes"`
	Links []Link      `json:"links" msgpack:"links"`
}

// GraphNode is a package in the serialized graph.
type GraphNode struct {
	ID      int    `json:"id" msgpack:"id"`
	Name    string `json:"name" msgpack:"name"`
	Version string `json:"version" msgpack:"version"`
}

// Link is a dependency edge between two serialized nodes.
type Link struct {
	SourceID int `json:"sourceId" msgpack:"sourceId"`
	TargetID int `json:"targetId" msgpack:"targetId"`
}

// Node returns the node with the given output ID.
func (g Graph) Node(id int) (GraphNode, bool) {
	if id < 0 || id >= len(g.Nodes) {
		return GraphNode{}, false
	}
	return g.Nodes[id], true
}

// Dependencies returns the nodes that id links to, in link order.
func (g Graph) Dependencies(id int) []GraphNode {
	var out []GraphNode
	for _, l := range g.Links {
		if l.SourceID == id {
			out = append(out, g.Nodes[l.TargetID])
		}
	}
	return out
}

// serialize renders the part of store reachable from root and returns it
// along with the number of reachable nodes.
func serialize(store *Store, root NodeID) (Graph, int) {
	order := []NodeID{root}
	seen := map[NodeID]bool{root: true}
	for i := 0; i < len(order); i++ {
		for _, c := range store.Children(order[i]) {
			if !seen[c] {
				seen[c] = true
				order = append(order, c)
			}
		}
	}

	// Ties on (name, version) only occur between variants; falling back to
	// the internal ID keeps the ranking deterministic.
	slices.SortFunc(order, func(a, b NodeID) int {
		na, _ := store.Node(a)
		nb, _ := store.Node(b)
		return cmp.Or(
			cmp.Compare(na.Name, nb.Name),
			cmp.Compare(na.Version, nb.Version),
			cmp.Compare(a, b),
		)
	})

	rank := make(map[NodeID]int, len(order))
	g := Graph{
		Nodes: make([]GraphNode, len(order)),
		Links: []Link{},
	}
	for i, id := range order {
		n, _ := store.Node(id)
		rank[id] = i
		g.Nodes[i] = GraphNode{ID: i, Name: n.Name, Version: n.Version}
	}
	for _, id := range order {
		for _, c := range store.Children(id) {
			g.Links = append(g.Links, Link{SourceID: rank[id], TargetID: rank[c]})
		}
	}
	slices.SortFunc(g.Links, func(a, b Link) int {
		return cmp.Or(cmp.Compare(a.SourceID, b.SourceID), cmp.Compare(a.TargetID, b.TargetID))
	})
	return g, len(order)
}
