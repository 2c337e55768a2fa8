package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
	"audiostacker/internal/store"
	"audiostacker/internal/testsupport"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func entry(asin, title, release string) catalog.Entry {
	return catalog.Entry{
		ID:          asin,
		Title:       title,
		Author:      "Yuu Tanaka",
		Series:      "Reincarnated as a Sword",
		ReleaseDate: release,
		Link:        "https://www.audible.com/pd/" + asin,
	}
}

func TestUpsertReportsNewThenUpdated(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := entry("B001", "Reincarnated as a Sword, Vol. 9", "2025-04-01")
	first.ConfidenceScore = 0.62
	first.NeedsReview = true
	isNew, err := st.Upsert(ctx, first, now)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !isNew {
		t.Fatal("expected first upsert to be new")
	}

	updated := first
	updated.Title = "Reincarnated as a Sword, Vol. 9 (light novel)"
	updated.ConfidenceScore = 1.1
	updated.NeedsReview = false
	isNew, err = st.Upsert(ctx, updated, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if isNew {
		t.Fatal("expected second upsert to update")
	}

	got, err := st.Get(ctx, "B001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Title != updated.Title || got.NeedsReview || got.Confidence != 1.1 {
		t.Fatalf("unexpected record %#v", got)
	}
	if !got.FirstSeen.Equal(now) {
		t.Fatalf("first_seen changed: %v", got.FirstSeen)
	}
	if !got.LastChecked.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("last_checked not refreshed: %v", got.LastChecked)
	}

	count, err := st.Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("Count = %d, %v", count, err)
	}
}

func TestUpsertRequiresID(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := st.Upsert(context.Background(), catalog.Entry{Title: "No id"}, now); err == nil {
		t.Fatal("expected error for missing catalog id")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	got, err := st.Get(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil record, got %#v, %v", got, err)
	}
}

func TestListOrdersByReleaseDate(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, e := range []catalog.Entry{
		entry("C", "Third", "2025-06-01"),
		entry("U", "Undated", ""),
		entry("A", "First", "2025-01-01"),
		entry("B", "Second", "2025-04-01"),
	} {
		if _, err := st.Upsert(ctx, e, now); err != nil {
			t.Fatalf("Upsert %s: %v", e.ID, err)
		}
	}

	all, err := st.List(ctx, time.Time{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"A", "B", "C", "U"}
	if len(all) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(all))
	}
	for i, asin := range want {
		if all[i].ASIN != asin {
			t.Fatalf("position %d: got %s, want %s", i, all[i].ASIN, asin)
		}
	}

	upcoming, err := st.List(ctx, now)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(upcoming) != 3 || upcoming[0].ASIN != "B" {
		t.Fatalf("unexpected upcoming list %#v", upcoming)
	}
}

func TestPruneReleased(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, e := range []catalog.Entry{
		entry("old", "Old", "2025-03-01"),
		entry("recent", "Recent", "2025-03-08"),
		entry("today", "Today", "2025-03-10"),
		entry("future", "Future", "2025-05-01"),
		entry("undated", "Undated", ""),
	} {
		if _, err := st.Upsert(ctx, e, now); err != nil {
			t.Fatalf("Upsert %s: %v", e.ID, err)
		}
	}

	removed, err := st.PruneReleased(ctx, now, 5)
	if err != nil {
		t.Fatalf("PruneReleased failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed with grace, got %d", removed)
	}

	removed, err = st.PruneReleased(ctx, now, 0)
	if err != nil {
		t.Fatalf("PruneReleased failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed without grace, got %d", removed)
	}

	remaining, err := st.List(ctx, time.Time{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("expected today, future and undated to remain, got %#v", remaining)
	}
}

func TestVacuumIfDue(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	interval := 7 * 24 * time.Hour

	ran, err := st.VacuumIfDue(ctx, now, interval)
	if err != nil || !ran {
		t.Fatalf("expected first vacuum to run, got %v, %v", ran, err)
	}
	last, ok, err := st.LastVacuum(ctx)
	if err != nil || !ok || !last.Equal(now) {
		t.Fatalf("unexpected last vacuum %v %v %v", last, ok, err)
	}

	ran, err = st.VacuumIfDue(ctx, now.Add(24*time.Hour), interval)
	if err != nil || ran {
		t.Fatalf("expected vacuum to be skipped, got %v, %v", ran, err)
	}

	ran, err = st.VacuumIfDue(ctx, now.Add(interval), interval)
	if err != nil || !ran {
		t.Fatalf("expected vacuum after interval, got %v, %v", ran, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	path := st.Path()
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	_, err = store.OpenPath(path, logging.NewNop())
	if !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), path) || !strings.Contains(err.Error(), "version 99") {
		t.Fatalf("expected mismatch error to name the database and its version, got %v", err)
	}
}

func TestOpenUsesWriteAheadLog(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	db, err := sql.Open("sqlite", st.Path())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestConcurrentUpsertsFromTwoHandles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenStore(t, cfg)
	second, err := store.OpenPath(first.Path(), logging.NewNop())
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	const perHandle = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*perHandle)
	for h, st := range []*store.Store{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perHandle {
				asin := fmt.Sprintf("H%d-%02d", h, i)
				if _, err := st.Upsert(context.Background(), entry(asin, asin, "2025-09-01"), now); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent upsert failed: %v", err)
	}

	count, err := first.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2*perHandle {
		t.Fatalf("expected %d records, got %d", 2*perHandle, count)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := store.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := first.Upsert(context.Background(), entry("keep", "Keep", "2025-09-01"), now); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	got, err := second.Get(context.Background(), "keep")
	if err != nil || got == nil {
		t.Fatalf("expected record after reopen, got %#v, %v", got, err)
	}
}
