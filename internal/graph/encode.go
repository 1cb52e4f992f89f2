package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// topologyVersion is bumped whenever the encoded shape changes.
const topologyVersion = 1

// topologyDoc is the portable on-disk topology encoding: node ids plus an
// explicit edge list, independent of any runtime object format.
type topologyDoc struct {
	Version      int           `json:"version"`
	Nodes        []int64       `json:"nodes"`
	Edges        []Edge        `json:"edges"`
	PendingNodes []PendingNode `json:"pending_nodes,omitempty"`
	PendingEdges []Edge        `json:"pending_edges,omitempty"`
}

// Encode serializes the graph into the versioned topology document.
// Output is deterministic: nodes and edges are sorted.
func (g *Graph) Encode() ([]byte, error) {
	edges := g.Edges()
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Kind < b.Kind
	})

	doc := topologyDoc{
		Version:      topologyVersion,
		Nodes:        g.NodeIDs(),
		Edges:        edges,
		PendingNodes: append([]PendingNode(nil), g.pendingNodes...),
		PendingEdges: append([]Edge(nil), g.pendingEdges...),
	}
	return json.Marshal(doc)
}

// Decode rebuilds a graph from an encoded topology document. Unknown
// versions are rejected rather than guessed at.
func Decode(data []byte) (*Graph, error) {
	var doc topologyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding topology: %w", err)
	}
	if doc.Version != topologyVersion {
		return nil, fmt.Errorf("unsupported topology version %d (want %d)", doc.Version, topologyVersion)
	}

	g := New()
	for _, id := range doc.Nodes {
		g.AddNode(id)
	}
	for _, e := range doc.Edges {
		g.AddEdge(e)
	}
	for _, p := range doc.PendingNodes {
		g.QueuePending(p)
	}
	g.pendingEdges = append(g.pendingEdges, doc.PendingEdges...)
	return g, nil
}
