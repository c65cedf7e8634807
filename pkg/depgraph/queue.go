package depgraph

// PeerDecl is a peer dependency as declared by a manifest.
type PeerDecl struct {
	Name     string
	Range    string
	Optional bool
}

// Requirement is a pending peer obligation: the package at Source, as
// depended on by Parent, needs a peer named Peer.Name visible from Parent.
type Requirement struct {
	Parent NodeID
	Source NodeID
	Peer   PeerDecl
}

// Queue is a FIFO worklist of peer requirements. It tracks how many queued
// requirements each node is the source of, so the engine can ask whether a
// context may still change.
type Queue struct {
	items    []Requirement
	head     int
	bySource map[NodeID]int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{bySource: make(map[NodeID]int)}
}

// Push appends r to the back of the queue.
func (q *Queue) Push(r Requirement) {
	q.items = append(q.items, r)
	q.bySource[r.Source]++
}

// Pop removes and returns the front requirement.
func (q *Queue) Pop() (Requirement, bool) {
	if q.head >= len(q.items) {
		return Requirement{}, false
	}
	r := q.items[q.head]
	q.items[q.head] = Requirement{}
	q.head++
	if q.bySource[r.Source]--; q.bySource[r.Source] == 0 {
		delete(q.bySource, r.Source)
	}
	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return r, true
}

// Len returns the number of queued requirements.
func (q *Queue) Len() int { return len(q.items) - q.head }

// PendingFor reports whether any queued requirement has source as its Source.
func (q *Queue) PendingFor(source NodeID) bool { return q.bySource[source] > 0 }

// Drain removes and returns every queued requirement in order.
func (q *Queue) Drain() []Requirement {
	out := append([]Requirement(nil), q.items[q.head:]...)
	q.items = nil
	q.head = 0
	clear(q.bySource)
	return out
}
