package graph

import "sort"

// EdgeKind classifies how two items relate.
type EdgeKind string

const (
	KindSimilarity    EdgeKind = "similarity"
	KindSameOwner     EdgeKind = "same_owner"
	KindSameGroup     EdgeKind = "same_group"
	KindTagSimilarity EdgeKind = "tag_similarity"
)

// Edge is a directed, typed, weighted edge between two item ids.
type Edge struct {
	Source int64    `json:"source"`
	Target int64    `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Weight float64  `json:"weight"`
}

type edgeKey struct {
	source, target int64
	kind           EdgeKind
}

// Graph holds the crawl topology: node ids, typed edges, and the pending
// queues of discovered-but-unfetched elements. Node attributes live in the
// metadata store, never here, so metadata refreshes don't rewrite topology.
type Graph struct {
	nodes   map[int64]struct{}
	edges   []Edge
	edgeSet map[edgeKey]int // index into edges
	out     map[int64][]int64
	in      map[int64][]int64

	pendingNodes []PendingNode
	pendingSet   map[int64]struct{}
	pendingEdges []Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[int64]struct{}),
		edgeSet:    make(map[edgeKey]int),
		out:        make(map[int64][]int64),
		in:         make(map[int64][]int64),
		pendingSet: make(map[int64]struct{}),
	}
}

// AddNode inserts a node id. Adding an id also resolves any pending edges
// waiting on it and drops it from the pending-node queue.
func (g *Graph) AddNode(id int64) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = struct{}{}
	g.dropPendingNode(id)
	g.resolvePendingEdges(id)
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge inserts a directed edge. If either endpoint is missing the edge
// is parked in the pending-edge list instead; it completes when the missing
// endpoint arrives. Duplicate (source, target, kind) edges update weight.
func (g *Graph) AddEdge(e Edge) {
	if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
		g.pendingEdges = append(g.pendingEdges, e)
		return
	}
	g.insertEdge(e)
}

func (g *Graph) insertEdge(e Edge) {
	key := edgeKey{e.Source, e.Target, e.Kind}
	if i, ok := g.edgeSet[key]; ok {
		g.edges[i].Weight = e.Weight
		return
	}
	g.edgeSet[key] = len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.Source] = append(g.out[e.Source], e.Target)
	g.in[e.Target] = append(g.in[e.Target], e.Source)
}

// RemoveNode deletes a node and every edge touching it. Pending elements
// referencing the id are dropped too. Used for tombstoning.
func (g *Graph) RemoveNode(id int64) {
	if _, ok := g.nodes[id]; !ok {
		g.dropPendingNode(id)
		return
	}
	delete(g.nodes, id)
	delete(g.out, id)
	delete(g.in, id)

	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.Source == id || e.Target == id {
			continue
		}
		kept = append(kept, e)
	}
	g.edges = append([]Edge(nil), kept...)
	g.rebuildIndexes()

	keptPending := g.pendingEdges[:0]
	for _, e := range g.pendingEdges {
		if e.Source == id || e.Target == id {
			continue
		}
		keptPending = append(keptPending, e)
	}
	g.pendingEdges = append([]Edge(nil), keptPending...)
}

func (g *Graph) rebuildIndexes() {
	g.edgeSet = make(map[edgeKey]int, len(g.edges))
	g.out = make(map[int64][]int64)
	g.in = make(map[int64][]int64)
	for i, e := range g.edges {
		g.edgeSet[edgeKey{e.Source, e.Target, e.Kind}] = i
		g.out[e.Source] = append(g.out[e.Source], e.Target)
		g.in[e.Target] = append(g.in[e.Target], e.Source)
	}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of completed edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edges returns a copy of the completed edge list.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// EdgesTouching returns every edge with id as source or target.
func (g *Graph) EdgesTouching(id int64) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Source == id || e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns the out-neighbors of id.
func (g *Graph) Neighbors(id int64) []int64 {
	return append([]int64(nil), g.out[id]...)
}

// NodeIDs returns a sorted list of all node ids (for deterministic output).
func (g *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
