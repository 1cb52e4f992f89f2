package crawl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/AlexM1010/FollowWeb-sub000/internal/backup"
	"github.com/AlexM1010/FollowWeb-sub000/internal/catalog"
	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
)

// fakeCatalog is an in-memory catalog upstream. It counts every request so
// tests can assert exact API cost.
type fakeCatalog struct {
	mu      sync.Mutex
	pages   [][]catalog.Item // search pages, in order
	details map[int64]catalog.Item
	similar map[int64][]catalog.Item
	fail    map[string]int // path prefix -> status to force

	searchCalls  int
	detailCalls  map[int64]int
	similarCalls map[int64]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		details:      make(map[int64]catalog.Item),
		similar:      make(map[int64][]catalog.Item),
		fail:         make(map[string]int),
		detailCalls:  make(map[int64]int),
		similarCalls: make(map[int64]int),
	}
}

func (f *fakeCatalog) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.searchCalls
	for _, n := range f.detailCalls {
		total += n
	}
	for _, n := range f.similarCalls {
		total += n
	}
	return total
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for prefix, status := range f.fail {
		if strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(status)
			return
		}
	}

	writeItems := func(items []catalog.Item) {
		w.Header().Set("Content-Type", "application/json")
		if items == nil {
			items = []catalog.Item{}
		}
		json.NewEncoder(w).Encode(map[string][]catalog.Item{"results": items})
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "items":
		f.searchCalls++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 0 || page >= len(f.pages) {
			writeItems(nil)
			return
		}
		writeItems(f.pages[page])

	case len(parts) == 2 && parts[0] == "items":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		f.detailCalls[id]++
		it, ok := f.details[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeItems([]catalog.Item{it})

	case len(parts) == 3 && parts[0] == "items" && parts[2] == "similar":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		f.similarCalls[id]++
		writeItems(f.similar[id])

	default:
		http.NotFound(w, r)
	}
}

func newTestCrawler(t *testing.T, srv *httptest.Server, dir string, cfg Config) *Crawler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := catalog.NewClient(srv.URL)
	client.RetryWait = time.Millisecond
	return &Crawler{
		Client:      client,
		Checkpoints: checkpoint.NewManager(dir),
		Config:      cfg,
		Log:         log,
	}
}

func track(id int64, popularity float64) catalog.Item {
	return catalog.Item{ID: id, Name: "track " + strconv.FormatInt(id, 10), Popularity: popularity}
}

func TestRunStopsExactlyAtRequestCeiling(t *testing.T) {
	fc := newFakeCatalog()
	page := make([]catalog.Item, 10)
	for i := range page {
		page[i] = track(int64(i+1), float64(10-i))
		fc.similar[int64(i+1)] = []catalog.Item{track(int64(i+101), 1)}
	}
	fc.pages = [][]catalog.Item{page}
	srv := httptest.NewServer(fc)
	defer srv.Close()

	dir := t.TempDir()
	c := newTestCrawler(t, srv, dir, Config{
		Mode:           ModeSearch,
		PageSize:       150,
		SimilarPerItem: 5,
		MaxRequests:    5,
	})

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	// One search page plus one similar fetch per unit: four full units fit
	// under a ceiling of five, and not one request goes past it.
	require.Equal(t, 5, report.RequestsUsed)
	require.Equal(t, 5, fc.totalCalls())
	require.Equal(t, "request_budget", report.StopReason)
	require.Equal(t, 4, report.Processed)
	require.Equal(t, 4, report.NodeCount)

	// The exit checkpoint must hold everything collected so far.
	g, st, meta, err := checkpoint.NewManager(dir).Load()
	require.NoError(t, err)
	defer st.Close()
	require.Equal(t, 4, g.NodeCount())
	require.Equal(t, 4, meta.ProcessedIDs)
	require.Equal(t, 4, g.PendingCount())
	// Similar targets are not fetched yet, so their edges stay parked.
	require.Equal(t, 0, g.EdgeCount())

	count, err := st.Count()
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestRunRecrawlSpendsNothingOnKnownItems(t *testing.T) {
	fc := newFakeCatalog()
	fc.pages = [][]catalog.Item{{track(1, 5), track(2, 3)}}
	srv := httptest.NewServer(fc)
	defer srv.Close()

	dir := t.TempDir()
	cfg := Config{Mode: ModeSearch, PageSize: 150, MaxRequests: 100}

	report, err := newTestCrawler(t, srv, dir, cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, "frontier_exhausted", report.StopReason)

	// Rewind the search cursor so the next run re-encounters the same page.
	mgr := checkpoint.NewManager(dir)
	g, st, meta, err := mgr.Load()
	require.NoError(t, err)
	meta.SearchCursor = 0
	require.NoError(t, mgr.Save(g, st, meta))
	require.NoError(t, st.Close())

	before := fc.totalCalls()
	report, err = newTestCrawler(t, srv, dir, cfg).Run(context.Background())
	require.NoError(t, err)

	// The fully-known page costs one search request and nothing per item.
	require.Equal(t, 0, report.Processed)
	require.Equal(t, 2, report.KnownSkipped)
	require.Equal(t, 1, fc.totalCalls()-before)
	require.Empty(t, fc.detailCalls)
	require.Equal(t, 2, report.NodeCount)
}

func TestRunRelationshipsModeDrainsPending(t *testing.T) {
	fc := newFakeCatalog()
	fc.pages = [][]catalog.Item{{track(1, 5), track(2, 3)}}
	fc.similar[1] = []catalog.Item{track(11, 1)}
	fc.similar[2] = []catalog.Item{track(12, 1)}
	fc.details[11] = track(11, 1)
	fc.details[12] = track(12, 1)
	srv := httptest.NewServer(fc)
	defer srv.Close()

	dir := t.TempDir()
	report, err := newTestCrawler(t, srv, dir, Config{
		Mode:           ModeSearch,
		PageSize:       150,
		SimilarPerItem: 2,
		MaxRequests:    100,
	}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 2, report.PendingRemaining)
	require.Equal(t, 0, report.EdgeCount) // both endpoints not collected yet

	// Second run drains the queue discovered by the first.
	before := fc.totalCalls()
	report, err = newTestCrawler(t, srv, dir, Config{
		Mode:        ModeRelationships,
		MaxRequests: 100,
	}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, report.Processed)
	require.Equal(t, 0, report.PendingRemaining)
	require.Equal(t, 2, fc.totalCalls()-before) // one detail fetch per pending id
	require.Equal(t, "frontier_exhausted", report.StopReason)

	// Parked similarity edges complete once their endpoints arrive.
	g, st, _, err := checkpoint.NewManager(dir).Load()
	require.NoError(t, err)
	defer st.Close()
	require.Equal(t, 4, g.NodeCount())
	require.Equal(t, 2, g.EdgeCount())
	for _, e := range g.Edges() {
		require.True(t, g.HasNode(e.Source))
		require.True(t, g.HasNode(e.Target))
	}
}

func TestRunStopsAfterConsecutiveUpstreamFailures(t *testing.T) {
	fc := newFakeCatalog()
	fc.fail["/items"] = http.StatusBadRequest
	srv := httptest.NewServer(fc)
	defer srv.Close()

	dir := t.TempDir()
	report, err := newTestCrawler(t, srv, dir, Config{
		Mode:        ModeSearch,
		PageSize:    150,
		MaxRequests: 100,
	}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "upstream_errors", report.StopReason)
	require.Equal(t, 3, report.UnitsSkipped)
	require.Zero(t, report.Processed)

	// Even the failed run leaves a loadable checkpoint behind.
	require.NoError(t, checkpoint.VerifyDir(dir))
}

func TestRunFiresMilestoneBackup(t *testing.T) {
	fc := newFakeCatalog()
	fc.pages = [][]catalog.Item{{
		track(1, 9), track(2, 8), track(3, 7), track(4, 6),
	}}
	srv := httptest.NewServer(fc)
	defer srv.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)

	dir := t.TempDir()
	c := newTestCrawler(t, srv, dir, Config{
		Mode:        ModeSearch,
		PageSize:    150,
		MaxRequests: 100,
	})
	c.Backups = &backup.Manager{
		Dest:   t.TempDir(),
		Policy: backup.Policy{Interval: 2, Keep: 5},
		Log:    log,
	}

	report, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, report.Processed)
	require.NotNil(t, report.Milestone)
	require.NotEmpty(t, report.Milestone.BackupName)
	require.Empty(t, report.Milestone.BackupError)

	backups, err := c.Backups.List()
	require.NoError(t, err)
	require.NotEmpty(t, backups)
}

func TestReportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := &Report{
		RunID:      "run-1",
		Mode:       ModeMixed,
		Processed:  7,
		StopReason: "frontier_exhausted",
	}
	require.NoError(t, in.Write(dir))

	out, err := ReadReport(dir)
	require.NoError(t, err)
	require.Equal(t, in.RunID, out.RunID)
	require.Equal(t, in.Mode, out.Mode)
	require.Equal(t, in.Processed, out.Processed)
	require.Equal(t, in.StopReason, out.StopReason)
}
