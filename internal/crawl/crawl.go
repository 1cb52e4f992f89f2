// Package crawl drives the incremental catalog crawl: frontier selection,
// the fetch loop, budget enforcement, and milestone side jobs.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AlexM1010/FollowWeb-sub000/internal/backup"
	"github.com/AlexM1010/FollowWeb-sub000/internal/catalog"
	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
	"github.com/AlexM1010/FollowWeb-sub000/internal/graph"
	"github.com/AlexM1010/FollowWeb-sub000/internal/store"
	"github.com/AlexM1010/FollowWeb-sub000/internal/validate"
)

// State is the whole of the mutable crawl state, owned end-to-end by one
// control flow and threaded through the loop explicitly.
type State struct {
	Graph *graph.Graph
	Store *store.Store
	Meta  *checkpoint.RunMeta

	KnownSkipped int // ids skipped because they were already collected
}

// Config holds the knobs for one crawl run.
type Config struct {
	Query             string
	Mode              Mode
	PageSize          int
	SimilarPerItem    int
	MixedEvery        int // mixed mode: every Nth candidate drains pending
	MaxRequests       int
	MaxDuration       time.Duration
	RequestsPerSecond float64
	CheckpointEvery   int // units between interim checkpoint saves
}

// DefaultConfig matches the nightly collection job.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeMixed,
		PageSize:        150,
		SimilarPerItem:  10,
		MixedEvery:      3,
		MaxRequests:     400,
		CheckpointEvery: 25,
	}
}

// Crawler runs one collection pass against the prior checkpoint.
type Crawler struct {
	Client      *catalog.Client
	Checkpoints *checkpoint.Manager
	Backups     *backup.Manager     // nil disables milestone backups
	Validator   *validate.Validator // nil disables milestone validation
	Config      Config
	Log         *logrus.Logger
}

// Run executes the crawl loop until the frontier empties or a budget
// ceiling trips, checkpointing at intervals and at exit. The returned
// report is valid even on error, for diagnosis without log-scraping.
func (c *Crawler) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Mode:      c.Config.Mode,
		StartedAt: time.Now().UnixMilli(),
	}
	defer func() { report.FinishedAt = time.Now().UnixMilli() }()

	state, err := c.loadState()
	if err != nil {
		return report, err
	}
	defer state.Store.Close()

	gov := NewGovernor(c.Config.MaxRequests, c.Config.MaxDuration, c.Config.RequestsPerSecond)
	fr := &frontier{
		mode:       c.Config.Mode,
		query:      c.Config.Query,
		pageSize:   c.Config.PageSize,
		mixedEvery: c.Config.MixedEvery,
		client:     c.Client,
		gov:        gov,
	}

	c.Log.WithFields(logrus.Fields{
		"run_id":       report.RunID,
		"mode":         c.Config.Mode,
		"max_requests": c.Config.MaxRequests,
		"nodes":        state.Graph.NodeCount(),
		"pending":      state.Graph.PendingCount(),
		"cursor":       state.Meta.SearchCursor,
	}).Info("crawl starting")

	consecutiveFailures := 0
	sinceSave := 0

	for gov.Allow() {
		if ctx.Err() != nil {
			report.StopReason = "canceled"
			break
		}

		cand, err := fr.next(ctx, state)
		if err != nil {
			if errors.Is(err, errFrontierEmpty) {
				report.StopReason = "frontier_exhausted"
			} else if errors.Is(err, ErrBudgetExhausted) {
				report.StopReason = "request_budget"
			} else {
				consecutiveFailures++
				report.UnitsSkipped++
				c.Log.WithError(err).Warn("frontier fetch failed, skipping unit")
				if consecutiveFailures >= 3 {
					report.StopReason = "upstream_errors"
					break
				}
				continue
			}
			break
		}

		prevNodes := state.Graph.NodeCount()
		unitErr := c.processUnit(ctx, gov, state, cand)
		if state.Graph.NodeCount() > prevNodes {
			report.Processed++
			sinceSave++
		}
		if unitErr != nil {
			if errors.Is(unitErr, ErrBudgetExhausted) {
				report.StopReason = "request_budget"
				break
			}
			consecutiveFailures++
			report.UnitsSkipped++
			c.Log.WithError(unitErr).WithField("item", cand.id).Warn("unit failed, skipping")
			if consecutiveFailures >= 3 {
				report.StopReason = "upstream_errors"
				break
			}
			continue
		}
		consecutiveFailures = 0

		if c.Config.CheckpointEvery > 0 && sinceSave >= c.Config.CheckpointEvery {
			if err := c.save(state); err != nil {
				return c.finishReport(report, gov, state), err
			}
			sinceSave = 0
		}

		if c.Backups != nil && c.Backups.Policy.ShouldBackup(prevNodes, state.Graph.NodeCount()) {
			if err := c.save(state); err != nil {
				return c.finishReport(report, gov, state), err
			}
			sinceSave = 0
			outcome, err := c.runMilestone(ctx, state.Graph.NodeCount())
			report.Milestone = outcome
			if err != nil {
				return c.finishReport(report, gov, state), fmt.Errorf("milestone validation: %w", err)
			}
		}
	}

	if report.StopReason == "" {
		report.StopReason = gov.StopReason()
	}

	if err := c.save(state); err != nil {
		return c.finishReport(report, gov, state), err
	}

	rep := c.finishReport(report, gov, state)
	c.Log.WithFields(logrus.Fields{
		"run_id":    rep.RunID,
		"processed": rep.Processed,
		"requests":  rep.RequestsUsed,
		"skipped":   rep.UnitsSkipped,
		"reason":    rep.StopReason,
	}).Info("crawl finished")
	return rep, nil
}

// processUnit fetches one candidate, merges it into graph and store, and
// discovers its similar items. A unit always runs to completion once
// started; budget exhaustion mid-unit only suppresses further discovery.
func (c *Crawler) processUnit(ctx context.Context, gov *Governor, state *State, cand candidate) error {
	item := cand.item
	if item == nil {
		if err := gov.Spend(ctx); err != nil {
			return err
		}
		fetched, err := c.Client.Item(ctx, cand.id)
		if errors.Is(err, catalog.ErrNotFound) {
			// Deleted upstream between discovery and fetch. Not an error.
			c.Log.WithField("item", cand.id).Debug("pending item gone upstream")
			return nil
		}
		if err != nil {
			return err
		}
		item = fetched
	}

	nowMs := time.Now().UnixMilli()
	attrs := store.Attrs{
		Name:        item.Name,
		Tags:        item.Tags,
		DurationSec: item.Duration,
		OwnerID:     item.ArtistID,
		GroupID:     item.AlbumID,
		Popularity:  item.Popularity,
		Rating:      item.Rating,
		PreviewURL:  item.PreviewURL,
	}
	state.Store.Set(store.Item{
		ID:            item.ID,
		Attrs:         attrs,
		PriorityScore: store.Score(attrs),
		LastUpdated:   nowMs,
		LastChecked:   nowMs,
	})
	state.Graph.AddNode(item.ID)
	state.Meta.ProcessedIDs++

	if c.Config.SimilarPerItem <= 0 {
		return nil
	}
	if err := gov.Spend(ctx); err != nil {
		// Node is already collected; only its similar edges are deferred.
		return err
	}
	sims, err := c.Client.Similar(ctx, item.ID, c.Config.SimilarPerItem)
	if err != nil {
		c.Log.WithError(err).WithField("item", item.ID).Warn("similar fetch failed")
		return nil
	}
	for _, sim := range sims {
		if sim.ID == item.ID {
			continue
		}
		state.Graph.AddEdge(graph.Edge{
			Source: item.ID,
			Target: sim.ID,
			Kind:   graph.KindSimilarity,
			Weight: 1.0,
		})
		if !state.Graph.HasNode(sim.ID) {
			state.Graph.QueuePending(graph.PendingNode{
				ID:             sim.ID,
				DiscoveredFrom: item.ID,
				QueuedAt:       nowMs,
			})
		}
	}
	return nil
}

// loadState restores the previous checkpoint or starts empty on a true
// first run. A partial checkpoint fails the load rather than starting fresh.
func (c *Crawler) loadState() (*State, error) {
	g, st, meta, err := c.Checkpoints.Load()
	if err == nil {
		return &State{Graph: g, Store: st, Meta: meta}, nil
	}
	if !errors.Is(err, checkpoint.ErrNotFound) {
		return nil, err
	}

	st, err = c.Checkpoints.Open()
	if err != nil {
		return nil, err
	}
	return &State{Graph: graph.New(), Store: st, Meta: &checkpoint.RunMeta{}}, nil
}

func (c *Crawler) save(state *State) error {
	state.Meta.Timestamp = time.Now().UnixMilli()
	return c.Checkpoints.Save(state.Graph, state.Store, state.Meta)
}

func (c *Crawler) finishReport(r *Report, gov *Governor, state *State) *Report {
	r.RequestsUsed = gov.Used()
	r.KnownSkipped = state.KnownSkipped
	r.NodeCount = state.Graph.NodeCount()
	r.EdgeCount = state.Graph.EdgeCount()
	r.PendingRemaining = state.Graph.PendingCount()
	return r
}
