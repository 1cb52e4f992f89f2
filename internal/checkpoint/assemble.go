package checkpoint

import (
	"fmt"

	"github.com/AlexM1010/FollowWeb-sub000/internal/graph"
	"github.com/AlexM1010/FollowWeb-sub000/internal/store"
)

// AssembledNode is one graph node with its stored attributes merged on.
type AssembledNode struct {
	ID            int64       `json:"id"`
	Attrs         store.Attrs `json:"attrs"`
	PriorityScore float64     `json:"priority_score"`
	IsDormant     bool        `json:"is_dormant,omitempty"`
	Neighbors     []int64     `json:"neighbors,omitempty"`
}

// Assembled is the merged graph handed to analysis and rendering layers:
// topology plus attributes in one document, nodes in id order.
type Assembled struct {
	Nodes []AssembledNode `json:"nodes"`
	Edges []graph.Edge    `json:"edges"`
}

// Assemble merges store attributes onto the topology. Every node must have
// a metadata row; a node without one means graph and store have diverged,
// which is a corruption error, not something to paper over.
func Assemble(g *graph.Graph, st *store.Store) (*Assembled, error) {
	out := &Assembled{Edges: g.Edges()}
	for _, id := range g.NodeIDs() {
		it, err := st.Get(id)
		if err != nil {
			return nil, fmt.Errorf("reading attributes for node %d: %w", id, err)
		}
		if it == nil {
			return nil, fmt.Errorf("node %d has no metadata row: checkpoint is inconsistent", id)
		}
		out.Nodes = append(out.Nodes, AssembledNode{
			ID:            id,
			Attrs:         it.Attrs,
			PriorityScore: it.PriorityScore,
			IsDormant:     it.IsDormant,
			Neighbors:     g.Neighbors(id),
		})
	}
	return out, nil
}
