// Package pipeline orchestrates the product-ingestion run: sitemap walk,
// per-product extraction, reconciliation against the price authority and
// the catalog, and lifecycle event emission.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-ingest/assets"
	"catalog-ingest/catalog"
	"catalog-ingest/events"
	"catalog-ingest/extract"
	"catalog-ingest/internal/types"
	"catalog-ingest/pricelist"
	"catalog-ingest/reconcile"
	"catalog-ingest/sitemap"
)

// State is the orchestrator's position in the run.
type State int

const (
	StateInitializing State = iota
	StateLoadingPriceAuthority
	StateLoadingSitemap
	StateProcessingCategories
	StateProcessingProducts
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateLoadingPriceAuthority:
		return "loading_price_authority"
	case StateLoadingSitemap:
		return "loading_sitemap"
	case StateProcessingCategories:
		return "processing_categories"
	case StateProcessingProducts:
		return "processing_products"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Caps applied in test mode for smoke runs.
const (
	testModeCategoryCap = 2
	testModeProductCap  = 3
)

// PageFetcher loads a page's (rendered) HTML. Satisfied by utils.Fetcher;
// tests substitute a stub.
type PageFetcher interface {
	GetPageContent(ctx context.Context, url string) (string, error)
}

// Orchestrator drives the ingestion run end-to-end. Processing is
// deliberately sequential: parallel requests against the source site risk
// rate limiting, and sequential order keeps retry logic and image-folder
// writes race-free.
type Orchestrator struct {
	config     *types.Config
	fetcher    PageFetcher
	walker     *sitemap.Walker
	extractor  *extract.Extractor
	prices     *pricelist.Loader
	repo       catalog.Repository
	downloader *assets.Downloader
	engine     engineFunc
	bridge     *events.Bridge
	logger     types.Logger

	state State
}

// engineFunc lets tests substitute the reconciliation step.
type engineFunc func(ctx context.Context, extracted *types.ExtractedProduct, category *types.Category) (reconcile.Outcome, error)

// New creates an orchestrator with the production wiring.
func New(config *types.Config, fetcher PageFetcher, downloader *assets.Downloader, repo catalog.Repository, bridge *events.Bridge, logger types.Logger) *Orchestrator {
	return &Orchestrator{
		config:     config,
		fetcher:    fetcher,
		walker:     sitemap.NewWalker(config.BaseURL, logger),
		extractor:  extract.NewExtractor(config.SiteName, logger),
		prices:     pricelist.NewLoader(logger),
		repo:       repo,
		downloader: downloader,
		bridge:     bridge,
		logger:     logger,
	}
}

// State reports the orchestrator's current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the full pipeline and returns the accumulated statistics.
// Per-item failures are recorded in the stats and never abort the run; the
// returned error is non-nil only for fatal, run-aborting conditions. The
// finish event fires exactly once, on success or failure. Re-running is
// idempotent: duplicates are skipped via the catalog's identity check and
// already-downloaded images are not fetched again.
func (o *Orchestrator) Run(ctx context.Context) (types.RunStats, error) {
	stats := types.RunStats{}
	o.state = StateInitializing
	o.bridge.Start()
	o.logger.Info("Starting product ingestion run")

	fail := func(err error) (types.RunStats, error) {
		o.state = StateFailed
		o.bridge.Error(err.Error())
		o.bridge.Finish(stats)
		return stats, err
	}

	// Price authority: a missing file degrades to scraped prices; a file
	// that exists but will not parse aborts the run.
	o.state = StateLoadingPriceAuthority
	prices, err := o.prices.Load(o.config.PriceListPath)
	if err != nil {
		return fail(fmt.Errorf("price authority load failed: %w", err))
	}

	// The engine needs the freshly loaded price index, so it is built here
	// rather than in New. Tests may pre-set o.engine to stub it out.
	if o.engine == nil {
		engine := reconcile.NewEngine(o.config, prices, o.repo, o.downloader, o.logger)
		o.engine = engine.Reconcile
	}

	// Sitemap: nothing can be discovered without it, so exhausting retries
	// here is fatal.
	o.state = StateLoadingSitemap
	sitemapHTML, err := o.fetchWithRetry(ctx, o.config.SitemapURL)
	if err != nil {
		return fail(fmt.Errorf("sitemap unreachable after %d attempts: %w", o.config.MaxRetries, err))
	}

	categories, err := o.walker.CategoryLinks(sitemapHTML)
	if err != nil {
		return fail(fmt.Errorf("sitemap parse failed: %w", err))
	}

	if o.config.TestMode && len(categories) > testModeCategoryCap {
		o.logger.Infof("Test mode: capping categories from %d to %d", len(categories), testModeCategoryCap)
		categories = categories[:testModeCategoryCap]
	}

	o.state = StateProcessingCategories
	for i, link := range categories {
		if err := o.cooldown(ctx); err != nil {
			return fail(err)
		}

		if err := o.processCategory(ctx, link, &stats); err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			// one broken category must not abort the run
			o.logger.Warnf("Category %s failed: %v", link.URL, err)
			stats.Errors++
		}

		// progress reports the step just finished, so it carries the
		// counters that step produced
		o.bridge.Progress(events.Progress{
			Current:    i + 1,
			Total:      len(categories),
			Scraped:    stats.Created + stats.Updated,
			Errors:     stats.Errors,
			Skipped:    stats.Skipped,
			Categories: len(categories),
			URL:        link.URL,
			Phase:      o.state.String(),
		})
	}

	o.state = StateCompleted
	o.logger.Infof("Run complete: %d processed, %d created, %d updated, %d skipped, %d errors",
		stats.Processed, stats.Created, stats.Updated, stats.Skipped, stats.Errors)
	o.bridge.Finish(stats)
	return stats, nil
}

// processCategory gets-or-creates the category record, then walks and
// processes its product pages.
func (o *Orchestrator) processCategory(ctx context.Context, link types.CategoryLink, stats *types.RunStats) error {
	category, err := o.getOrCreateCategory(ctx, link.DerivedName)
	if err != nil {
		return err
	}

	html, err := o.fetchWithRetry(ctx, link.URL)
	if err != nil {
		return fmt.Errorf("category page unreachable: %w", err)
	}

	productURLs, err := o.walker.ProductLinks(html)
	if err != nil {
		return fmt.Errorf("category page parse failed: %w", err)
	}

	limit := o.config.ProductLimit
	if o.config.TestMode && (limit == 0 || limit > testModeProductCap) {
		limit = testModeProductCap
	}
	if limit > 0 && len(productURLs) > limit {
		productURLs = productURLs[:limit]
	}

	o.state = StateProcessingProducts
	for i, productURL := range productURLs {
		if err := o.cooldown(ctx); err != nil {
			return err
		}

		stats.Processed++
		action, err := o.processProduct(ctx, productURL, category)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warnf("Product %s failed: %v", productURL, err)
			stats.Errors++
		} else {
			switch action {
			case types.ActionCreated:
				stats.Created++
			case types.ActionUpdated:
				stats.Updated++
			case types.ActionSkipped:
				stats.Skipped++
			}
		}

		o.bridge.Progress(events.Progress{
			Current:    i + 1,
			Total:      len(productURLs),
			Scraped:    stats.Created + stats.Updated,
			Errors:     stats.Errors,
			Skipped:    stats.Skipped,
			Categories: 1,
			URL:        productURL,
			Phase:      o.state.String(),
		})
	}

	o.state = StateProcessingCategories
	return nil
}

// processProduct runs one page through extraction and reconciliation,
// retrying the page fetch on failure. Exclusion-rule matches are business
// skips, not errors.
func (o *Orchestrator) processProduct(ctx context.Context, productURL string, category *types.Category) (types.Action, error) {
	html, err := o.fetchWithRetry(ctx, productURL)
	if err != nil {
		return "", fmt.Errorf("product page unreachable: %w", err)
	}

	extracted, err := o.extractor.Extract(html, productURL)
	if err != nil {
		if errors.Is(err, extract.ErrExcludedProduct) {
			o.logger.Debugf("Skipping excluded product at %s", productURL)
			return types.ActionSkipped, nil
		}
		return "", err
	}

	outcome, err := o.engine(ctx, extracted, category)
	if err != nil {
		return "", err
	}
	return outcome.Action, nil
}

// getOrCreateCategory looks the category up by name and creates it on first
// encounter. This is deliberately get-or-create, not upsert-by-id.
func (o *Orchestrator) getOrCreateCategory(ctx context.Context, name string) (*types.Category, error) {
	category, err := o.repo.FindCategoryByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("category lookup failed: %w", err)
	}
	if category != nil {
		return category, nil
	}

	o.logger.Infof("Creating category: %s", name)
	return o.repo.CreateCategory(ctx, &types.Category{
		Name:        name,
		Description: fmt.Sprintf("%s products", name),
		IsActive:    true,
	})
}

// fetchWithRetry loads a page with up to MaxRetries attempts and linear
// backoff (delay grows with the attempt number).
func (o *Orchestrator) fetchWithRetry(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		html, err := o.fetcher.GetPageContent(ctx, url)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		o.logger.Warnf("Fetch of %s failed (attempt %d/%d): %v", url, attempt, o.config.MaxRetries, err)
		if attempt < o.config.MaxRetries {
			if err := sleepCtx(ctx, o.config.RequestDelay*time.Duration(attempt)); err != nil {
				return "", err
			}
		}
	}

	return "", lastErr
}

// cooldown is the polite pause between fetches against the source site. It
// is also the run's only cancellation point: a single product's multi-step
// reconciliation is never interrupted mid-way.
func (o *Orchestrator) cooldown(ctx context.Context) error {
	return sleepCtx(ctx, o.config.RequestDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
