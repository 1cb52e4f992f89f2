// Package validate re-verifies previously collected items against the
// upstream catalog, tombstoning the ones that no longer exist.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AlexM1010/FollowWeb-sub000/internal/catalog"
	"github.com/AlexM1010/FollowWeb-sub000/internal/graph"
	"github.com/AlexM1010/FollowWeb-sub000/internal/store"
)

// Mode selects how much of the store one run re-checks.
type Mode string

const (
	ModeFull    Mode = "full"    // every stored item
	ModePartial Mode = "partial" // N items with the oldest existence check
)

// Result is the machine-readable outcome of one validation run.
type Result struct {
	Mode         Mode    `json:"mode"`
	Checked      int     `json:"checked"`
	Confirmed    int     `json:"confirmed"`
	Refreshed    int     `json:"refreshed"`
	Tombstoned   []int64 `json:"tombstoned,omitempty"`
	EdgesRemoved int     `json:"edges_removed"`
	RequestsUsed int     `json:"requests_used"`
}

// Validator batches existence checks through the catalog's id filter. One
// response both confirms existence and returns fresh attributes, which are
// merged into the store at no added query cost.
type Validator struct {
	Client     *catalog.Client
	BatchSize  int
	SampleSize int // partial mode: how many stale items per run
	Log        *logrus.Logger
}

// Run validates items per mode, merging refreshed metadata and removing
// upstream-deleted items from both graph and store, edges included.
func (v *Validator) Run(ctx context.Context, g *graph.Graph, st *store.Store, mode Mode) (*Result, error) {
	batchSize := v.BatchSize
	if batchSize <= 0 || batchSize > catalog.MaxFilterIDs {
		batchSize = catalog.MaxFilterIDs
	}

	var ids []int64
	var err error
	switch mode {
	case ModeFull:
		ids, err = st.AllIDs()
	case ModePartial:
		n := v.SampleSize
		if n <= 0 {
			n = batchSize
		}
		ids, err = st.StalestIDs(n)
	default:
		return nil, fmt.Errorf("unknown validation mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: mode}
	nowMs := time.Now().UnixMilli()

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		found, err := v.Client.Lookup(ctx, batch)
		if err != nil {
			return res, fmt.Errorf("validating batch starting at %d: %w", batch[0], err)
		}
		res.RequestsUsed++
		res.Checked += len(batch)

		present := make(map[int64]catalog.Item, len(found))
		for _, it := range found {
			present[it.ID] = it
		}

		for _, id := range batch {
			it, ok := present[id]
			if !ok {
				res.EdgesRemoved += len(g.EdgesTouching(id))
				g.RemoveNode(id)
				if err := st.Delete(id); err != nil {
					return res, fmt.Errorf("tombstoning item %d: %w", id, err)
				}
				res.Tombstoned = append(res.Tombstoned, id)
				continue
			}
			res.Confirmed++
			if err := v.refresh(st, it, nowMs); err != nil {
				return res, err
			}
			res.Refreshed++
		}
	}

	if err := st.Flush(); err != nil {
		return res, err
	}

	v.Log.WithFields(logrus.Fields{
		"mode":       mode,
		"checked":    res.Checked,
		"tombstoned": len(res.Tombstoned),
		"requests":   res.RequestsUsed,
	}).Info("validation pass complete")
	return res, nil
}

// refresh merges fresh catalog attributes onto the stored item, preserving
// dormant state and provider extras.
func (v *Validator) refresh(st *store.Store, it catalog.Item, nowMs int64) error {
	existing, err := st.Get(it.ID)
	if err != nil {
		return err
	}

	attrs := store.Attrs{
		Name:        it.Name,
		Tags:        it.Tags,
		DurationSec: it.Duration,
		OwnerID:     it.ArtistID,
		GroupID:     it.AlbumID,
		Popularity:  it.Popularity,
		Rating:      it.Rating,
		PreviewURL:  it.PreviewURL,
	}

	updated := store.Item{
		ID:            it.ID,
		Attrs:         attrs,
		PriorityScore: store.Score(attrs),
		LastUpdated:   nowMs,
		LastChecked:   nowMs,
	}
	if existing != nil {
		updated.Attrs.Extra = existing.Attrs.Extra
		updated.IsDormant = existing.IsDormant
		updated.DormantSince = existing.DormantSince
	}
	st.Set(updated)
	return nil
}
