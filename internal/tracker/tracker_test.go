package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"audiostacker/internal/audible"
	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
	"audiostacker/internal/matching"
	"audiostacker/internal/metrics"
	"audiostacker/internal/watchlist"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

const sword = "Reincarnated as a Sword"

type fakeSearcher struct {
	mu       sync.Mutex
	results  map[string][]catalog.Entry
	calls    []string
	parallel int
}

func key(field catalog.SearchField, query string) string {
	return field.String() + ":" + query
}

func (f *fakeSearcher) record(req audible.SearchRequest) []catalog.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(req.Field, req.Query)
	f.calls = append(f.calls, k)
	return f.results[k]
}

func (f *fakeSearcher) Search(_ context.Context, req audible.SearchRequest) []catalog.Entry {
	return f.record(req)
}

func (f *fakeSearcher) SearchParallel(_ context.Context, req audible.SearchRequest) []catalog.Entry {
	f.mu.Lock()
	f.parallel++
	f.mu.Unlock()
	return f.record(req)
}

type fakeSink struct {
	rows map[string]catalog.Entry
	fail map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{rows: map[string]catalog.Entry{}, fail: map[string]bool{}}
}

func (s *fakeSink) Upsert(_ context.Context, entry catalog.Entry, _ time.Time) (bool, error) {
	if s.fail[entry.ID] {
		return false, errors.New("disk full")
	}
	_, exists := s.rows[entry.ID]
	s.rows[entry.ID] = entry
	return !exists, nil
}

func volume(asin, title, release string) catalog.Entry {
	return catalog.Entry{ID: asin, Title: title, Author: "Yuu Tanaka", Series: sword, ReleaseDate: release}
}

func swordWatchlist() *watchlist.Watchlist {
	return &watchlist.Watchlist{Authors: []watchlist.Author{{
		Name: "Yuu Tanaka",
		Books: []catalog.Wanted{
			{Author: "Yuu Tanaka", Title: sword, Series: sword},
		},
	}}}
}

func swordSearcher() *fakeSearcher {
	return &fakeSearcher{results: map[string][]catalog.Entry{
		key(catalog.FieldAuthor, "Yuu Tanaka"): {
			volume("V9", sword+", Vol. 9", "2025-04-01"),
			volume("V1", sword+", Vol. 1", "2019-01-01"),
			{ID: "OTHER", Title: "Different Thing", Author: "Yuu Tanaka", ReleaseDate: "2025-05-01"},
		},
		key(catalog.FieldTitle, sword): {
			volume("V9", sword+", Vol. 9", "2025-04-01"),
			volume("V10", sword+", Vol. 10", "2025-08-01"),
			volume("UNDATED", sword+", Vol. 11", ""),
		},
	}}
}

func newTestTracker(searcher Searcher, sink Sink, opts Options, options ...Option) *Tracker {
	selector := matching.NewSelector(matching.NewScorer(nil), nil, matching.DefaultMinConfidence, matching.DefaultPreferredConfidence)
	options = append([]Option{WithClock(func() time.Time { return fixedNow })}, options...)
	return New(searcher, sink, selector, opts, logging.NewNop(), options...)
}

func TestRunStoresUpcomingMatches(t *testing.T) {
	searcher := swordSearcher()
	sink := newFakeSink()
	tr := newTestTracker(searcher, sink, Options{FutureOnly: true})

	summary, err := tr.Run(context.Background(), swordWatchlist())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
	if summary.Authors != 1 || summary.Queries != 2 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if summary.Candidates != 4 {
		t.Fatalf("expected 4 upcoming candidates, got %d", summary.Candidates)
	}
	if summary.Accepted != 2 || summary.New != 2 || summary.Updated != 0 || summary.Errors != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, ok := sink.rows["V9"]; !ok {
		t.Fatal("expected volume 9 stored")
	}
	if _, ok := sink.rows["V10"]; !ok {
		t.Fatal("expected volume 10 stored")
	}
	if _, ok := sink.rows["V1"]; ok {
		t.Fatal("released volume should be filtered")
	}
	if _, ok := sink.rows["OTHER"]; ok {
		t.Fatal("unrelated book should be rejected")
	}
	if stored := sink.rows["V10"]; stored.ConfidenceScore < 1.0 || stored.NeedsReview {
		t.Fatalf("unexpected stored score %+v", stored)
	}

	wantCalls := []string{key(catalog.FieldAuthor, "Yuu Tanaka"), key(catalog.FieldTitle, sword)}
	if len(searcher.calls) != 2 || searcher.calls[0] != wantCalls[0] || searcher.calls[1] != wantCalls[1] {
		t.Fatalf("unexpected search calls %v", searcher.calls)
	}
	if searcher.parallel != 0 {
		t.Fatal("parallel search used without option")
	}
}

func TestRunWithoutFutureFilterKeepsReleased(t *testing.T) {
	sink := newFakeSink()
	tr := newTestTracker(swordSearcher(), sink, Options{FutureOnly: false})
	summary, err := tr.Run(context.Background(), swordWatchlist())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, asin := range []string{"V1", "V9", "V10", "UNDATED"} {
		if _, ok := sink.rows[asin]; !ok {
			t.Fatalf("expected %s stored, summary %+v", asin, summary)
		}
	}
}

func TestRunUsesSeriesNameWhenTitleMissing(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]catalog.Entry{}}
	list := &watchlist.Watchlist{Authors: []watchlist.Author{{
		Name:  "Yuu Tanaka",
		Books: []catalog.Wanted{{Author: "Yuu Tanaka", Series: sword}, {Author: "Yuu Tanaka", Title: "Standalone"}},
	}}}
	tr := newTestTracker(searcher, newFakeSink(), Options{Parallel: true})
	if _, err := tr.Run(context.Background(), list); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(searcher.calls) != 2 || searcher.calls[1] != key(catalog.FieldTitle, sword) {
		t.Fatalf("unexpected search calls %v", searcher.calls)
	}
	if searcher.parallel != 2 {
		t.Fatalf("expected parallel searches, got %d", searcher.parallel)
	}
}

func TestRunCountsSinkErrorsAndContinues(t *testing.T) {
	sink := newFakeSink()
	sink.fail["V9"] = true
	registry := newRecorder(t)
	tr := newTestTracker(swordSearcher(), sink, Options{FutureOnly: true}, WithMetrics(registry))

	summary, err := tr.Run(context.Background(), swordWatchlist())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Errors != 2 {
		t.Fatalf("expected both attempts at V9 to fail, got %+v", summary)
	}
	if _, ok := sink.rows["V10"]; !ok {
		t.Fatal("expected later matches to be stored after an error")
	}
	if count, err := testutil.GatherAndCount(registry.Registry(), "audiostacker_store_upserts_total"); err != nil || count != 2 {
		t.Fatalf("expected error and new series, got %d (%v)", count, err)
	}
	if count, err := testutil.GatherAndCount(registry.Registry(), "audiostacker_last_run_timestamp_seconds"); err != nil || count != 1 {
		t.Fatalf("expected last run gauge, got %d (%v)", count, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	searcher := swordSearcher()
	summary, err := newTestTracker(searcher, newFakeSink(), Options{}).Run(ctx, swordWatchlist())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Authors != 0 || len(searcher.calls) != 0 {
		t.Fatalf("expected no work after cancel, got %+v calls %v", summary, searcher.calls)
	}
}

func TestRunWithoutSinkStillCounts(t *testing.T) {
	summary, err := newTestTracker(swordSearcher(), nil, Options{FutureOnly: true}).Run(context.Background(), swordWatchlist())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Accepted != 2 || summary.New != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func newRecorder(t *testing.T) *metrics.Recorder {
	t.Helper()
	rec, err := metrics.New(nil)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	return rec
}
