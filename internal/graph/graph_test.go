package graph

import "testing"

func buildGraph(nodes []int64, edges []Edge) *Graph {
	g := New()
	for _, id := range nodes {
		g.AddNode(id)
	}
	for _, e := range edges {
		g.AddEdge(e)
	}
	return g
}

func TestAddEdge_BothEndpointsPresent(t *testing.T) {
	g := buildGraph([]int64{1, 2}, []Edge{
		{Source: 1, Target: 2, Kind: KindSimilarity, Weight: 1.0},
	})
	if g.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.EdgeCount())
	}
	if g.PendingEdgeCount() != 0 {
		t.Errorf("expected 0 pending edges, got %d", g.PendingEdgeCount())
	}
}

func TestAddEdge_MissingTargetStaysPending(t *testing.T) {
	g := buildGraph([]int64{1}, []Edge{
		{Source: 1, Target: 99, Kind: KindSimilarity, Weight: 1.0},
	})
	if g.EdgeCount() != 0 {
		t.Fatalf("edge to unfetched target must not complete, got %d edges", g.EdgeCount())
	}
	if g.PendingEdgeCount() != 1 {
		t.Fatalf("expected 1 pending edge, got %d", g.PendingEdgeCount())
	}

	// Fetching the target completes the edge.
	g.AddNode(99)
	if g.EdgeCount() != 1 {
		t.Errorf("expected pending edge to complete, got %d edges", g.EdgeCount())
	}
	if g.PendingEdgeCount() != 0 {
		t.Errorf("expected 0 pending edges after completion, got %d", g.PendingEdgeCount())
	}
}

func TestAddEdge_DuplicateUpdatesWeight(t *testing.T) {
	g := buildGraph([]int64{1, 2}, []Edge{
		{Source: 1, Target: 2, Kind: KindTagSimilarity, Weight: 0.5},
		{Source: 1, Target: 2, Kind: KindTagSimilarity, Weight: 0.8},
	})
	if g.EdgeCount() != 1 {
		t.Fatalf("duplicate edge must not double, got %d", g.EdgeCount())
	}
	if w := g.Edges()[0].Weight; w != 0.8 {
		t.Errorf("expected weight 0.8 after update, got %v", w)
	}
}

func TestRemoveNode_CascadesEdges(t *testing.T) {
	g := buildGraph([]int64{1, 2, 3}, []Edge{
		{Source: 1, Target: 2, Kind: KindSimilarity, Weight: 1},
		{Source: 2, Target: 3, Kind: KindSimilarity, Weight: 1},
		{Source: 1, Target: 3, Kind: KindSameOwner, Weight: 1},
	})

	g.RemoveNode(2)

	if g.HasNode(2) {
		t.Fatal("node 2 should be gone")
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("expected only the 1-3 edge to survive, got %d edges", g.EdgeCount())
	}
	e := g.Edges()[0]
	if e.Source != 1 || e.Target != 3 {
		t.Errorf("wrong surviving edge: %+v", e)
	}
	for _, e := range g.Edges() {
		if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
			t.Errorf("dangling edge %+v", e)
		}
	}
}

func TestPendingQueue_FIFOAndDedup(t *testing.T) {
	g := New()
	g.QueuePending(PendingNode{ID: 10, QueuedAt: 1})
	g.QueuePending(PendingNode{ID: 20, QueuedAt: 2})
	g.QueuePending(PendingNode{ID: 10, QueuedAt: 3}) // duplicate

	if g.PendingCount() != 2 {
		t.Fatalf("expected 2 pending after dedup, got %d", g.PendingCount())
	}
	p, ok := g.NextPending()
	if !ok || p.ID != 10 {
		t.Fatalf("expected id 10 first, got %+v ok=%v", p, ok)
	}
	p, ok = g.NextPending()
	if !ok || p.ID != 20 {
		t.Fatalf("expected id 20 second, got %+v ok=%v", p, ok)
	}
	if _, ok := g.NextPending(); ok {
		t.Error("queue should be empty")
	}
}

func TestQueuePending_KnownNodeIgnored(t *testing.T) {
	g := buildGraph([]int64{5}, nil)
	g.QueuePending(PendingNode{ID: 5})
	if g.PendingCount() != 0 {
		t.Errorf("already-fetched id must not queue, got %d pending", g.PendingCount())
	}
}

func TestAddNode_DropsPendingEntry(t *testing.T) {
	g := New()
	g.QueuePending(PendingNode{ID: 7})
	g.AddNode(7)
	if g.PendingCount() != 0 {
		t.Errorf("fetching a pending id should dequeue it, got %d", g.PendingCount())
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	g := buildGraph([]int64{1, 2, 3}, []Edge{
		{Source: 1, Target: 2, Kind: KindSimilarity, Weight: 1},
		{Source: 2, Target: 3, Kind: KindSameGroup, Weight: 1},
		{Source: 1, Target: 42, Kind: KindSimilarity, Weight: 1}, // pending edge
	})
	g.QueuePending(PendingNode{ID: 42, DiscoveredFrom: 1, QueuedAt: 100})

	data, err := g.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	g2, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if g2.NodeCount() != g.NodeCount() {
		t.Errorf("node count mismatch: %d vs %d", g2.NodeCount(), g.NodeCount())
	}
	if g2.EdgeCount() != g.EdgeCount() {
		t.Errorf("edge count mismatch: %d vs %d", g2.EdgeCount(), g.EdgeCount())
	}
	if g2.PendingCount() != 1 {
		t.Errorf("expected 1 pending node after round trip, got %d", g2.PendingCount())
	}
	if g2.PendingEdgeCount() != 1 {
		t.Errorf("expected 1 pending edge after round trip, got %d", g2.PendingEdgeCount())
	}
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	if _, err := Decode([]byte(`{"version": 99, "nodes": []}`)); err == nil {
		t.Fatal("expected error for unknown topology version")
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for undecodable topology")
	}
}
