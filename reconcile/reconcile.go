// Package reconcile merges extracted product data with the price authority
// and the existing catalog, deciding create vs. update vs. skip.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-ingest/assets"
	"catalog-ingest/catalog"
	"catalog-ingest/internal/types"
	"catalog-ingest/pricelist"
)

var (
	// ErrNoValidPrice means neither the price authority nor the scrape
	// produced a usable price. This is an error, not a skip.
	ErrNoValidPrice = errors.New("no valid price for product")

	// ErrNoImages means no image could be downloaded for a new product.
	// An image-less listing is unsellable inventory, so this is a hard
	// failure rather than a skip.
	ErrNoImages = errors.New("no images downloaded for product")
)

const skuFragmentLen = 8

// Outcome is the result of reconciling one extracted product.
type Outcome struct {
	Action  types.Action
	Product *types.Product
}

// Engine performs the reconciliation step for each extracted product.
type Engine struct {
	config     *types.Config
	prices     pricelist.Index
	repo       catalog.Repository
	downloader *assets.Downloader
	logger     types.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(config *types.Config, prices pricelist.Index, repo catalog.Repository, downloader *assets.Downloader, logger types.Logger) *Engine {
	return &Engine{
		config:     config,
		prices:     prices,
		repo:       repo,
		downloader: downloader,
		logger:     logger,
	}
}

// Reconcile turns an extracted product into a catalog write (or a skip).
// The price authority always wins over the scraped price; the scraped price
// plus markup is a fallback only.
func (e *Engine) Reconcile(ctx context.Context, extracted *types.ExtractedProduct, category *types.Category) (Outcome, error) {
	price, originalPrice, brand, err := e.resolvePrice(extracted)
	if err != nil {
		return Outcome{}, err
	}

	existing, err := e.repo.FindProductByNameOrSourceURL(ctx, extracted.Name, extracted.SourceURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("duplicate check failed for %q: %w", extracted.Name, err)
	}

	if existing != nil && !e.config.UpdateImages {
		e.logger.Debugf("Product already exists, skipping: %s", extracted.Name)
		return Outcome{Action: types.ActionSkipped, Product: existing}, nil
	}

	images, err := e.downloadImages(ctx, extracted)
	if err != nil {
		// The ≥1-image requirement guards new records only: an update with
		// no re-downloadable images keeps what the catalog already has
		// rather than losing the rest of the refresh.
		if existing == nil || !errors.Is(err, ErrNoImages) {
			return Outcome{}, err
		}
		e.logger.Warnf("No images re-downloaded for %q, keeping existing ones", extracted.Name)
		images = existing.Images
	}

	product := &types.Product{
		Name:        extracted.Name,
		Description: extracted.Description,
		Price:       price,
		CategoryID:  category.ID,
		Brand:       brand,
		Images:      images,
		Inventory:   types.Inventory{Quantity: 100, TrackQuantity: true},
		IsActive:    true,
		Metadata: types.ProductMetadata{
			SourceURL:      extracted.SourceURL,
			ScrapedAt:      time.Now(),
			OriginalPrice:  originalPrice,
			PriceMarkup:    pricelist.Markup,
			Specifications: extracted.Specifications,
		},
	}

	if existing != nil {
		product.SKU = existing.SKU
		if err := e.repo.UpdateProduct(ctx, existing.ID, product); err != nil {
			return Outcome{}, fmt.Errorf("failed to update %q: %w", extracted.Name, err)
		}
		product.ID = existing.ID
		e.logger.Infof("Updated product: %s", product.Name)
		return Outcome{Action: types.ActionUpdated, Product: product}, nil
	}

	product.SKU = GenerateSKU(e.config.SKUPrefix, extracted.Name)
	created, err := e.repo.CreateProduct(ctx, product)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create %q: %w", extracted.Name, err)
	}
	e.logger.Infof("Created product: %s (sku %s, price %.2f)", created.Name, created.SKU, created.Price)
	return Outcome{Action: types.ActionCreated, Product: created}, nil
}

// resolvePrice returns the retail price, the wholesale price recorded in
// metadata, and the brand to use.
func (e *Engine) resolvePrice(extracted *types.ExtractedProduct) (price, originalPrice float64, brand string, err error) {
	brand = extracted.Brand

	if rec, ok := e.prices.Lookup(extracted.Name); ok {
		if rec.Brand != "" {
			brand = rec.Brand
		}
		return rec.FinalPrice, rec.OriginalPrice, brand, nil
	}

	if extracted.Price > 0 {
		return extracted.Price + pricelist.Markup, extracted.Price, brand, nil
	}

	return 0, 0, "", fmt.Errorf("%w: %s", ErrNoValidPrice, extracted.Name)
}

// downloadImages persists up to the configured cap of the extracted images.
// Individual download failures are logged and dropped; zero successes for a
// product is a hard failure.
func (e *Engine) downloadImages(ctx context.Context, extracted *types.ExtractedProduct) ([]types.ProductImage, error) {
	var images []types.ProductImage

	for i, imageURL := range extracted.Images {
		if i >= e.config.MaxImagesPerItem {
			break
		}
		ref, err := e.downloader.Download(ctx, imageURL, extracted.Name, i)
		if err != nil {
			e.logger.Warnf("Image download failed for %q: %v", extracted.Name, err)
			continue
		}
		images = append(images, ref)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, extracted.Name)
	}
	return images, nil
}

// GenerateSKU builds a deterministic, human-traceable SKU from the source
// prefix, a sanitized name fragment and the creation timestamp. The
// timestamp component makes same-run collisions unlikely without a central
// counter.
func GenerateSKU(prefix, name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= skuFragmentLen {
			break
		}
	}
	fragment := b.String()
	if fragment == "" {
		fragment = "ITEM"
	}

	return strings.ToUpper(fmt.Sprintf("%s-%s-%d", prefix, fragment, time.Now().UnixNano()))
}
