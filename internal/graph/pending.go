package graph

// PendingNode is a discovered-but-unfetched item id queued for later fetch.
type PendingNode struct {
	ID             int64 `json:"id"`
	DiscoveredFrom int64 `json:"discovered_from,omitempty"`
	QueuedAt       int64 `json:"queued_at"` // Unix millis
}

// QueuePending enqueues an id for a future fetch. Ids already in the graph
// or already queued are ignored.
func (g *Graph) QueuePending(p PendingNode) {
	if g.HasNode(p.ID) {
		return
	}
	if _, ok := g.pendingSet[p.ID]; ok {
		return
	}
	g.pendingSet[p.ID] = struct{}{}
	g.pendingNodes = append(g.pendingNodes, p)
}

// NextPending pops the oldest pending node, FIFO. ok=false when empty.
func (g *Graph) NextPending() (PendingNode, bool) {
	if len(g.pendingNodes) == 0 {
		return PendingNode{}, false
	}
	p := g.pendingNodes[0]
	g.pendingNodes = append([]PendingNode(nil), g.pendingNodes[1:]...)
	delete(g.pendingSet, p.ID)
	return p, true
}

// PendingCount returns the number of queued pending nodes.
func (g *Graph) PendingCount() int { return len(g.pendingNodes) }

// PendingEdgeCount returns the number of edges waiting on an endpoint.
func (g *Graph) PendingEdgeCount() int { return len(g.pendingEdges) }

func (g *Graph) dropPendingNode(id int64) {
	if _, ok := g.pendingSet[id]; !ok {
		return
	}
	delete(g.pendingSet, id)
	kept := g.pendingNodes[:0]
	for _, p := range g.pendingNodes {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	g.pendingNodes = append([]PendingNode(nil), kept...)
}

// resolvePendingEdges completes pending edges whose endpoints both exist
// after id joined the graph.
func (g *Graph) resolvePendingEdges(id int64) {
	var still []Edge
	for _, e := range g.pendingEdges {
		if g.HasNode(e.Source) && g.HasNode(e.Target) {
			g.insertEdge(e)
		} else {
			still = append(still, e)
		}
	}
	g.pendingEdges = still
}
