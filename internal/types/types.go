package types

import "time"

// PriceRecord is one row of the wholesale price list, keyed by normalized
// product name. Built once per run and read-only afterwards.
type PriceRecord struct {
	NormalizedName string
	OriginalPrice  float64
	FinalPrice     float64
	Brand          string
	Barcode        string
	ItemCode       string
}

// CategoryLink is a category page discovered on the sitemap.
type CategoryLink struct {
	URL         string
	DerivedName string
}

// ExtractedProduct is the transient result of scraping one product page.
// It is never persisted directly; reconciliation turns it into a Product.
type ExtractedProduct struct {
	Name           string
	Description    string
	Price          float64
	Images         []string
	Brand          string
	Specifications map[string]string
	SourceURL      string
}

// ProductImage is a persisted image reference.
type ProductImage struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	IsPrimary bool   `json:"isPrimary"`
}

// Inventory holds stock tracking fields for a product.
type Inventory struct {
	Quantity      int  `json:"quantity"`
	TrackQuantity bool `json:"trackQuantity"`
}

// ProductMetadata records where and how a product was ingested.
type ProductMetadata struct {
	SourceURL      string            `json:"sourceUrl"`
	ScrapedAt      time.Time         `json:"scrapedAt"`
	OriginalPrice  float64           `json:"originalPrice,omitempty"`
	PriceMarkup    float64           `json:"priceMarkup"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

// Category is a persisted catalog category.
type Category struct {
	ID          int64
	Name        string
	Description string
	IsActive    bool
	SortOrder   int
}

// Product is a persisted catalog product. Identity for deduplication is
// Name or Metadata.SourceURL; either match counts as "already exists".
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       float64
	SKU         string
	CategoryID  int64
	Brand       string
	Images      []ProductImage
	Inventory   Inventory
	IsActive    bool
	IsFeatured  bool
	Metadata    ProductMetadata
}

// RunStats accumulates per-run counters and is emitted as the terminal event.
type RunStats struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Action classifies the outcome of reconciling one extracted product.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// ExcludedKeywords is the fragrance-family exclusion list. Products whose
// URL, name or description contains any of these never reach the catalog.
// Kept as a compiled-in business rule rather than configuration.
var ExcludedKeywords = []string{"fragrance", "perfume", "eau de toilette", "cologne"}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	SitemapURL         string
	BaseURL            string
	SiteName           string
	SKUPrefix          string
	PriceListPath      string
	UploadDir          string
	DatabasePath       string
	RequestDelay       time.Duration
	MaxRetries         int
	Timeout            time.Duration
	MaxImagesPerItem   int
	UseHeadlessBrowser bool
	UserAgent          string
	TestMode           bool
	ProductLimit       int
	UpdateImages       bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SitemapURL:         "https://www.dropshipwholesale.co.uk/sitemap.asp",
		BaseURL:            "https://www.dropshipwholesale.co.uk",
		SiteName:           "Dropship Wholesale",
		SKUPrefix:          "DSW",
		PriceListPath:      "pricelist.xlsx",
		UploadDir:          "uploads",
		DatabasePath:       "catalog.db",
		RequestDelay:       1 * time.Second,
		MaxRetries:         3,
		Timeout:            30 * time.Second,
		MaxImagesPerItem:   5,
		UseHeadlessBrowser: true,
		UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Logger defines the logging interface shared by all pipeline components.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
