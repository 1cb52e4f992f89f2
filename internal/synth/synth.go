// Package synth builds same-owner, same-group, and tag-similarity edges in
// a post-pass over collected items, keeping amortized API cost at zero.
package synth

import (
	"sort"

	"github.com/AlexM1010/FollowWeb-sub000/internal/graph"
	"github.com/AlexM1010/FollowWeb-sub000/internal/store"
)

// Options controls one synthesis pass.
type Options struct {
	JaccardThreshold  float64 // minimum tag-set similarity for an edge
	SkipTagSimilarity bool    // the O(n^2) step, skippable for large graphs
}

// DefaultOptions matches the nightly job configuration.
func DefaultOptions() Options {
	return Options{JaccardThreshold: 0.5}
}

// Counts reports how many edges each relation kind contributed.
type Counts struct {
	SameOwner     int `json:"same_owner"`
	SameGroup     int `json:"same_group"`
	TagSimilarity int `json:"tag_similarity"`
}

// Run groups items by owner and group id and links each bucket, then
// optionally links items whose tag sets overlap past the Jaccard threshold.
// Existing edges are not double-counted.
func Run(g *graph.Graph, st *store.Store, opts Options) (Counts, error) {
	items, err := st.AllItems()
	if err != nil {
		return Counts{}, err
	}

	var counts Counts
	counts.SameOwner = linkBuckets(g, items, graph.KindSameOwner, func(it store.Item) int64 {
		return it.Attrs.OwnerID
	})
	counts.SameGroup = linkBuckets(g, items, graph.KindSameGroup, func(it store.Item) int64 {
		return it.Attrs.GroupID
	})

	if !opts.SkipTagSimilarity {
		counts.TagSimilarity = linkByTags(g, items, opts.JaccardThreshold)
	}
	return counts, nil
}

// linkBuckets adds one edge per ordered pair within each shared-key bucket.
// Key 0 means the attribute is absent and produces no bucket.
func linkBuckets(g *graph.Graph, items []store.Item, kind graph.EdgeKind, key func(store.Item) int64) int {
	buckets := make(map[int64][]int64)
	for _, it := range items {
		k := key(it)
		if k == 0 || !g.HasNode(it.ID) {
			continue
		}
		buckets[k] = append(buckets[k], it.ID)
	}

	added := 0
	for _, ids := range buckets {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				before := g.EdgeCount()
				g.AddEdge(graph.Edge{Source: ids[i], Target: ids[j], Kind: kind, Weight: 1.0})
				if g.EdgeCount() > before {
					added++
				}
			}
		}
	}
	return added
}

// linkByTags compares every pair of tagged items. Quadratic, which is why
// callers can skip it via Options.
func linkByTags(g *graph.Graph, items []store.Item, threshold float64) int {
	type tagged struct {
		id   int64
		tags map[string]struct{}
	}
	var candidates []tagged
	for _, it := range items {
		if len(it.Attrs.Tags) == 0 || !g.HasNode(it.ID) {
			continue
		}
		set := make(map[string]struct{}, len(it.Attrs.Tags))
		for _, t := range it.Attrs.Tags {
			set[t] = struct{}{}
		}
		candidates = append(candidates, tagged{id: it.ID, tags: set})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].id < candidates[j].id })

	added := 0
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			sim := jaccard(candidates[i].tags, candidates[j].tags)
			if sim < threshold {
				continue
			}
			before := g.EdgeCount()
			g.AddEdge(graph.Edge{
				Source: candidates[i].id,
				Target: candidates[j].id,
				Kind:   graph.KindTagSimilarity,
				Weight: sim,
			})
			if g.EdgeCount() > before {
				added++
			}
		}
	}
	return added
}

// jaccard computes intersection over union for two tag sets. Empty sets score 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
