package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"audiostacker/internal/audible"
	"audiostacker/internal/catalog"
	"audiostacker/internal/config"
	"audiostacker/internal/logging"
	"audiostacker/internal/matching"
	"audiostacker/internal/metrics"
	"audiostacker/internal/tracing"
	"audiostacker/internal/watchlist"
)

// Searcher runs paginated catalog searches. *audible.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, req audible.SearchRequest) []catalog.Entry
	SearchParallel(ctx context.Context, req audible.SearchRequest) []catalog.Entry
}

// Sink receives accepted entries. *store.Store satisfies it.
type Sink interface {
	Upsert(ctx context.Context, entry catalog.Entry, now time.Time) (bool, error)
}

// Options tunes a run.
type Options struct {
	MaxPages   int
	PageSize   int
	Parallel   bool
	FutureOnly bool
}

// OptionsFrom maps the run settings out of cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		MaxPages:   cfg.Audible.MaxPages,
		PageSize:   cfg.Audible.PageSize,
		Parallel:   cfg.Audible.ParallelPages,
		FutureOnly: cfg.Matching.FutureOnly,
	}
}

// Summary reports what a run did.
type Summary struct {
	RunID       string        `json:"run_id"`
	Authors     int           `json:"authors"`
	Queries     int           `json:"queries"`
	Candidates  int           `json:"candidates"`
	Accepted    int           `json:"accepted"`
	New         int           `json:"new"`
	Updated     int           `json:"updated"`
	NeedsReview int           `json:"needs_review"`
	Errors      int           `json:"errors"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
}

// Tracker wires the catalog, matching and persistence together.
type Tracker struct {
	searcher Searcher
	sink     Sink
	selector *matching.Selector
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithMetrics records match and store outcomes.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(t *Tracker) { t.metrics = recorder }
}

// WithClock overrides the clock used for the release filter and timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New builds a tracker.
func New(searcher Searcher, sink Sink, selector *matching.Selector, opts Options, logger *slog.Logger, options ...Option) *Tracker {
	t := &Tracker{
		searcher: searcher,
		sink:     sink,
		selector: selector,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "tracker"),
		now:      time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

type runState struct {
	summary Summary
	today   time.Time
	stored  map[string]struct{}
	logger  *slog.Logger
}

// Run processes every author in list. Cancellation stops between queries and
// the partial summary is returned together with the context error.
func (t *Tracker) Run(ctx context.Context, list *watchlist.Watchlist) (Summary, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx, span := tracing.StartSpan(ctx, "tracker.run")
	defer span.End()

	started := t.now()
	state := &runState{
		summary: Summary{RunID: runID, Started: started},
		today:   started,
		stored:  make(map[string]struct{}),
		logger:  logging.WithContext(ctx, t.logger),
	}
	state.logger.Info("watchlist run started",
		logging.Int("authors", len(list.Authors)),
		logging.Int("books", list.Books()),
		logging.Bool("future_only", t.opts.FutureOnly),
	)

	var runErr error
	for _, author := range list.Authors {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		t.processAuthor(ctx, state, author)
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	state.summary.Duration = t.now().Sub(started)
	span.SetAttributes(
		attribute.Int("audiostacker.queries", state.summary.Queries),
		attribute.Int("audiostacker.accepted", state.summary.Accepted),
		attribute.Int("audiostacker.errors", state.summary.Errors),
	)
	if runErr != nil {
		tracing.RecordError(span, runErr)
		state.logger.Warn("watchlist run interrupted", logging.Error(runErr))
	} else {
		t.metrics.RunCompleted(t.now())
	}
	state.logger.Info("watchlist run finished",
		logging.Int("authors", state.summary.Authors),
		logging.Int("queries", state.summary.Queries),
		logging.Int("candidates", state.summary.Candidates),
		logging.Int("accepted", state.summary.Accepted),
		logging.Int("new", state.summary.New),
		logging.Int("updated", state.summary.Updated),
		logging.Int("needs_review", state.summary.NeedsReview),
		logging.Int("errors", state.summary.Errors),
		logging.Duration("duration", state.summary.Duration),
	)
	return state.summary, runErr
}

func (t *Tracker) processAuthor(ctx context.Context, state *runState, author watchlist.Author) {
	state.summary.Authors++
	logger := state.logger.With(logging.String("author", author.Name))

	results := t.search(ctx, state, logger, author.Name, catalog.FieldAuthor)
	for _, wanted := range author.Books {
		t.accept(ctx, state, logger, results, wanted)
	}

	for _, wanted := range author.Books {
		if wanted.Series == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		query := wanted.SeriesQuery()
		logger.Debug("searching series",
			logging.String("series", wanted.Series),
			logging.String(logging.FieldQuery, query),
		)
		seriesResults := t.search(ctx, state, logger, query, catalog.FieldTitle)
		t.accept(ctx, state, logger, seriesResults, wanted)
	}
}

// search runs one query and returns its deduplicated, filtered candidates.
func (t *Tracker) search(ctx context.Context, state *runState, logger *slog.Logger, query string, field catalog.SearchField) []catalog.Entry {
	state.summary.Queries++
	req := audible.SearchRequest{Query: query, Field: field, MaxPages: t.opts.MaxPages, PageSize: t.opts.PageSize}

	var results []catalog.Entry
	if t.opts.Parallel {
		results = t.searcher.SearchParallel(ctx, req)
	} else {
		results = t.searcher.Search(ctx, req)
	}
	deduped := matching.Dedupe(results)
	candidates := t.filterReleases(deduped, state.today)
	state.summary.Candidates += len(candidates)

	logger.Info("catalog query complete",
		logging.String(logging.FieldQuery, query),
		logging.String(logging.FieldSearchField, field.String()),
		logging.Int("results", len(results)),
		logging.Int("deduped", len(deduped)),
		logging.Int("candidates", len(candidates)),
	)
	return candidates
}

// filterReleases keeps entries released today or later when FutureOnly is
// set. Entries without a usable release date cannot be placed and are
// dropped.
func (t *Tracker) filterReleases(entries []catalog.Entry, today time.Time) []catalog.Entry {
	if !t.opts.FutureOnly {
		return entries
	}
	out := entries[:0:0]
	for _, entry := range entries {
		if _, ok := entry.Released(); !ok {
			continue
		}
		if entry.ReleasedBefore(today) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func (t *Tracker) accept(ctx context.Context, state *runState, logger *slog.Logger, candidates []catalog.Entry, wanted catalog.Wanted) {
	if len(candidates) == 0 {
		return
	}
	good := t.selector.SelectAllGood(candidates, wanted)
	if len(good) == 0 {
		t.metrics.Decision("rejected")
		return
	}
	for _, entry := range good {
		if _, seen := state.stored[entry.ID]; seen {
			continue
		}
		state.summary.Accepted++
		if entry.NeedsReview {
			state.summary.NeedsReview++
			t.metrics.Decision("review")
		} else {
			t.metrics.Decision("accepted")
		}
		if t.sink == nil {
			state.stored[entry.ID] = struct{}{}
			continue
		}

		isNew, err := t.sink.Upsert(ctx, entry, t.now())
		if err != nil {
			state.summary.Errors++
			t.metrics.Stored("error")
			logging.WarnWithContext(logger, "failed to store audiobook", "store_upsert_failed",
				logging.String(logging.FieldASIN, entry.ID),
				logging.String("title", entry.Title),
				logging.Error(err),
				logging.String(logging.FieldImpact, "match not persisted this run"),
			)
			continue
		}
		state.stored[entry.ID] = struct{}{}
		if isNew {
			state.summary.New++
			t.metrics.Stored("new")
		} else {
			state.summary.Updated++
			t.metrics.Stored("updated")
		}
		logger.Info("audiobook matched",
			logging.String(logging.FieldASIN, entry.ID),
			logging.String("title", entry.Title),
			logging.String("release_date", entry.ReleaseDate),
			logging.Float64("confidence", entry.ConfidenceScore),
			logging.Bool("needs_review", entry.NeedsReview),
			logging.Bool("new", isNew),
		)
	}
}
