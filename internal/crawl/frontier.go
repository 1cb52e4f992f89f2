package crawl

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexM1010/FollowWeb-sub000/internal/catalog"
)

// Mode is the discovery policy for frontier selection.
type Mode string

const (
	ModeSearch        Mode = "search"        // paginate the catalog query endpoint
	ModeRelationships Mode = "relationships" // drain the pending-node queue
	ModeMixed         Mode = "mixed"         // weighted interleave of both
)

// ParseMode validates a mode string from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSearch, ModeRelationships, ModeMixed:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown discovery mode %q", s)
}

// errFrontierEmpty means no candidate is reachable under the current
// policy; the run ends with whatever was collected.
var errFrontierEmpty = errors.New("crawl: frontier exhausted")

// candidate is one id ready to fetch. item is non-nil when the discovery
// source already carried the full payload, saving a detail request.
type candidate struct {
	id     int64
	item   *catalog.Item
	source string // "search" or "pending"
}

// frontier produces candidates under a discovery mode. Search pagination
// resumes from the checkpointed cursor; already-collected ids are skipped
// before any request is spent on them.
type frontier struct {
	mode       Mode
	query      string
	pageSize   int
	mixedEvery int // in mixed mode, every Nth candidate drains pending

	client *catalog.Client
	gov    *Governor

	buf    []catalog.Item // unconsumed results from the current page
	served int
}

// next returns the next unprocessed candidate. A search page with zero new
// results falls back to the pending queue instead of ending the run.
func (f *frontier) next(ctx context.Context, st *State) (candidate, error) {
	f.served++
	switch f.mode {
	case ModeRelationships:
		return f.nextPending(st)
	case ModeSearch:
		c, err := f.nextSearch(ctx, st)
		if err == errFrontierEmpty {
			return f.nextPending(st)
		}
		return c, err
	case ModeMixed:
		if f.mixedEvery > 0 && f.served%f.mixedEvery == 0 {
			if c, err := f.nextPending(st); err == nil {
				return c, nil
			}
		}
		c, err := f.nextSearch(ctx, st)
		if err == errFrontierEmpty {
			return f.nextPending(st)
		}
		return c, err
	}
	return candidate{}, fmt.Errorf("unknown discovery mode %q", f.mode)
}

func (f *frontier) nextPending(st *State) (candidate, error) {
	for {
		p, ok := st.Graph.NextPending()
		if !ok {
			return candidate{}, errFrontierEmpty
		}
		if st.Graph.HasNode(p.ID) {
			continue // fetched since it was queued
		}
		return candidate{id: p.ID, source: "pending"}, nil
	}
}

// nextSearch serves from the buffered page, fetching the next page when the
// buffer runs dry. Known ids cost nothing: they are dropped before fetch.
func (f *frontier) nextSearch(ctx context.Context, st *State) (candidate, error) {
	for {
		for len(f.buf) > 0 {
			it := f.buf[0]
			f.buf = f.buf[1:]
			if st.Graph.HasNode(it.ID) {
				st.KnownSkipped++
				continue
			}
			item := it
			return candidate{id: it.ID, item: &item, source: "search"}, nil
		}

		if err := f.gov.Spend(ctx); err != nil {
			return candidate{}, err
		}
		page, err := f.client.Search(ctx, f.query, st.Meta.SearchCursor, f.pageSize)
		if err != nil {
			return candidate{}, fmt.Errorf("search page %d: %w", st.Meta.SearchCursor, err)
		}
		st.Meta.SearchCursor++

		if len(page) == 0 {
			return candidate{}, errFrontierEmpty
		}

		newCount := 0
		for _, it := range page {
			if !st.Graph.HasNode(it.ID) {
				newCount++
			}
		}
		if newCount == 0 {
			// Fully-known page: fall back to pending rather than stopping.
			st.KnownSkipped += len(page)
			return candidate{}, errFrontierEmpty
		}
		f.buf = page
	}
}
