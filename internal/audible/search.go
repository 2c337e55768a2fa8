package audible

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
	"audiostacker/internal/tracing"
)

// SearchRequest describes a paginated catalog search. Zero MaxPages and
// PageSize fall back to the client configuration.
type SearchRequest struct {
	Query    string
	Field    catalog.SearchField
	MaxPages int
	PageSize int
}

func (c *Client) normalizeSearch(req SearchRequest) SearchRequest {
	req.Query = strings.TrimSpace(req.Query)
	if req.Field == "" {
		req.Field = catalog.FieldTitle
	}
	if req.MaxPages <= 0 {
		req.MaxPages = c.maxPages
	}
	if req.PageSize <= 0 {
		req.PageSize = c.pageSize
	}
	return req
}

func (r SearchRequest) page(n int) PageRequest {
	return PageRequest{Query: r.Query, Field: r.Field, Page: n, PageSize: r.PageSize}
}

// Search fetches pages in order, serving each from the cache when fresh.
// Pagination stops at the first short page, at the first failing page, or
// once earlier pages came back short. Results retrieved before a failure are
// kept.
func (c *Client) Search(ctx context.Context, req SearchRequest) []catalog.Entry {
	if c == nil {
		return nil
	}
	req = c.normalizeSearch(req)
	if req.Query == "" {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "audible.search")
	defer span.End()
	logger := c.searchLogger(ctx, req)

	var all []catalog.Entry
	for page := 0; page < req.MaxPages; page++ {
		if page > 0 && len(all) < page*req.PageSize {
			break
		}
		entries, ok := c.loadPage(ctx, logger, req.page(page))
		if !ok {
			break
		}
		all = append(all, entries...)
		if len(entries) < req.PageSize {
			break
		}
	}
	span.SetAttributes(attribute.String("audible.query", req.Query), attribute.Int("audible.results", len(all)))
	logger.Info("catalog search complete", logging.Int("results", len(all)))
	return all
}

// SearchParallel checks the cache for every page up front. Page 0 is settled
// first: a failed or short first page ends the search without spending rate
// limit slots on later pages. The remaining missing pages are then fetched
// concurrently, bounded by the client's parallelism and still paced by the
// shared rate limiter. Pages are combined in page order up to the first
// missing or short page.
func (c *Client) SearchParallel(ctx context.Context, req SearchRequest) []catalog.Entry {
	if c == nil {
		return nil
	}
	req = c.normalizeSearch(req)
	if req.Query == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.parallelTimeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "audible.search_parallel")
	defer span.End()
	logger := c.searchLogger(ctx, req)

	pages := make([][]catalog.Entry, req.MaxPages)
	present := make([]bool, req.MaxPages)
	var missing []int
	for page := range req.MaxPages {
		if entries, ok := c.cachedPage(req.page(page)); ok {
			pages[page], present[page] = entries, true
			continue
		}
		missing = append(missing, page)
	}

	fetched := 0
	if len(missing) > 0 && missing[0] == 0 {
		missing = missing[1:]
		fetched++
		pages[0], present[0] = c.fetchAndStore(ctx, logger, req.page(0))
	}
	if !present[0] || len(pages[0]) < req.PageSize {
		missing = nil
	}

	if len(missing) > 0 {
		fetched += len(missing)
		var mu sync.Mutex
		var g errgroup.Group
		g.SetLimit(c.maxParallel)
		for _, page := range missing {
			g.Go(func() error {
				entries, ok := c.fetchAndStore(ctx, logger, req.page(page))
				if ok {
					mu.Lock()
					pages[page], present[page] = entries, true
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	var all []catalog.Entry
	for page := range req.MaxPages {
		if !present[page] {
			break
		}
		all = append(all, pages[page]...)
		if len(pages[page]) < req.PageSize {
			break
		}
	}
	span.SetAttributes(
		attribute.String("audible.query", req.Query),
		attribute.Int("audible.fetched_pages", fetched),
		attribute.Int("audible.results", len(all)),
	)
	logger.Info("catalog search complete",
		logging.Int("results", len(all)),
		logging.Int("fetched_pages", fetched),
	)
	return all
}

// loadPage serves a page from the cache or the API.
func (c *Client) loadPage(ctx context.Context, logger *slog.Logger, req PageRequest) ([]catalog.Entry, bool) {
	if entries, ok := c.cachedPage(req); ok {
		logger.Debug("page served from cache", logging.Int(logging.FieldPage, req.Page), logging.Int("results", len(entries)))
		return entries, true
	}
	return c.fetchAndStore(ctx, logger, req)
}

func (c *Client) cachedPage(req PageRequest) ([]catalog.Entry, bool) {
	return c.cache.Get(req.cacheKey())
}

func (c *Client) fetchAndStore(ctx context.Context, logger *slog.Logger, req PageRequest) ([]catalog.Entry, bool) {
	entries, err := c.FetchPage(ctx, req)
	if err != nil {
		logging.WarnWithContext(logger, "catalog page failed", "catalog_page_failed",
			logging.Int(logging.FieldPage, req.Page),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access and the rate_limits settings"),
			logging.String(logging.FieldImpact, "results for this query may be incomplete"),
		)
		return nil, false
	}
	if err := c.cache.Put(req.cacheKey(), entries); err != nil {
		logging.WarnWithContext(logger, "cache write failed", "cache_io_failed",
			logging.Int(logging.FieldPage, req.Page),
			logging.Error(err),
			logging.String(logging.FieldImpact, "page will be fetched again on the next run"),
		)
	}
	return entries, true
}

func (c *Client) searchLogger(ctx context.Context, req SearchRequest) *slog.Logger {
	return logging.WithContext(ctx, c.logger).With(
		logging.String(logging.FieldQuery, req.Query),
		logging.String(logging.FieldSearchField, req.Field.String()),
	)
}
