// Package extract recovers structured product data from rendered product
// pages. The source site's markup is inconsistent across categories, so each
// field is resolved by an ordered list of strategies, first success wins.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"catalog-ingest/internal/types"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoValidData means the page yielded nothing usable as a product.
	ErrNoValidData = errors.New("no valid product data on page")

	// ErrExcludedProduct means the product matched the fragrance exclusion
	// rule. Checked here as well as on URLs: a fragrance product can live
	// at a non-obviously-named URL.
	ErrExcludedProduct = errors.New("product matches exclusion rule")
)

const (
	maxImages     = 5
	minImageDim   = 50  // targeted gallery selectors
	minSweepDim   = 100 // broad all-images sweep
	maxSpecKeyLen = 50
	maxSpecValLen = 500
)

// priceToken matches a decimal number with up to two places.
var priceToken = regexp.MustCompile(`(\d+(?:\.\d{1,2})?)`)

// bodyPricePatterns are tried in order against the full page text when no
// price selector matches. First non-zero match wins.
var bodyPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`£\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)price[:\s]*£?\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{1,2})?)\s*(?:gbp|pounds?)`),
}

// placeholderHints identify images that are never product photography.
var placeholderHints = []string{"placeholder", "loading", "spinner", "logo", "no-image", "noimage", "blank"}

// Extractor pulls an ExtractedProduct out of rendered page HTML.
type Extractor struct {
	siteName string
	logger   types.Logger
}

// NewExtractor creates an extractor. siteName is used for description and
// brand fallbacks and for stripping page-title suffixes.
func NewExtractor(siteName string, logger types.Logger) *Extractor {
	return &Extractor{siteName: siteName, logger: logger}
}

// strategy is one prioritized attempt at recovering a field.
type strategy struct {
	name string
	fn   func(doc *goquery.Document) (string, bool)
}

// selectorText builds a strategy that takes the trimmed text of the first
// matching element.
func selectorText(selector string) strategy {
	return strategy{
		name: selector,
		fn: func(doc *goquery.Document) (string, bool) {
			text := strings.TrimSpace(doc.Find(selector).First().Text())
			return text, text != ""
		},
	}
}

// resolve runs strategies in order and returns the first success.
func (e *Extractor) resolve(doc *goquery.Document, field string, strategies []strategy) (string, bool) {
	for _, s := range strategies {
		if val, ok := s.fn(doc); ok {
			e.logger.Debugf("Resolved %s via %s", field, s.name)
			return val, true
		}
	}
	return "", false
}

// Extract parses renderedHTML into an ExtractedProduct. It returns
// ErrNoValidData when no usable name can be recovered and
// ErrExcludedProduct when the product is fragrance-classified.
func (e *Extractor) Extract(renderedHTML, sourceURL string) (*types.ExtractedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	name := e.extractName(doc)
	if len(strings.TrimSpace(name)) < 2 {
		return nil, ErrNoValidData
	}

	description := e.extractDescription(doc, name)

	if excluded(name) || excluded(description) {
		return nil, fmt.Errorf("%w: %s", ErrExcludedProduct, name)
	}

	product := &types.ExtractedProduct{
		Name:           strings.TrimSpace(name),
		Description:    description,
		Price:          e.extractPrice(doc),
		Images:         e.extractImages(doc),
		Brand:          e.extractBrand(doc),
		Specifications: e.extractSpecifications(doc),
		SourceURL:      sourceURL,
	}

	e.logger.Debugf("Extracted %q: price=%.2f images=%d specs=%d",
		product.Name, product.Price, len(product.Images), len(product.Specifications))
	return product, nil
}

func (e *Extractor) extractName(doc *goquery.Document) string {
	strategies := []strategy{
		selectorText("h1"),
		selectorText(".product-title"),
		selectorText(".product-name"),
		selectorText(".productTitle"),
		selectorText("#product-title"),
		selectorText(".page-title"),
	}
	if name, ok := e.resolve(doc, "name", strategies); ok {
		return name
	}

	// Last resort: the page title, with the trailing site-name segment
	// stripped ("Rose Soap | Dropship Wholesale" -> "Rose Soap").
	title := strings.TrimSpace(doc.Find("title").First().Text())
	for _, sep := range []string{"|", " - ", "–"} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
			break
		}
	}
	return strings.TrimSpace(title)
}

func (e *Extractor) extractDescription(doc *goquery.Document, name string) string {
	strategies := []strategy{
		selectorText(".product-description"),
		selectorText(".description"),
		selectorText("#description"),
		selectorText(".product-details"),
		selectorText(".prod-desc"),
	}
	if desc, ok := e.resolve(doc, "description", strategies); ok {
		return desc
	}

	if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(meta) != "" {
		return strings.TrimSpace(meta)
	}

	return fmt.Sprintf("Premium %s from %s", strings.TrimSpace(name), e.siteName)
}

func (e *Extractor) extractPrice(doc *goquery.Document) float64 {
	selectors := []string{".price", ".product-price", "#price", ".our-price", "span.price", "[itemprop='price']"}
	for _, sel := range selectors {
		text := doc.Find(sel).First().Text()
		if price := parsePrice(text); price > 0 {
			e.logger.Debugf("Resolved price via %s", sel)
			return price
		}
	}

	// Fallback: scan the whole page text for currency-shaped numbers.
	body := doc.Find("body").Text()
	for _, pattern := range bodyPricePatterns {
		if m := pattern.FindStringSubmatch(body); len(m) > 1 {
			if price, err := strconv.ParseFloat(m[1], 64); err == nil && price > 0 {
				e.logger.Debug("Resolved price via body text scan")
				return price
			}
		}
	}

	return 0
}

func parsePrice(text string) float64 {
	if m := priceToken.FindStringSubmatch(text); len(m) > 1 {
		if price, err := strconv.ParseFloat(m[1], 64); err == nil {
			return price
		}
	}
	return 0
}

func (e *Extractor) extractImages(doc *goquery.Document) []string {
	selectors := []string{
		".product-image img",
		".product-gallery img",
		".product-photos img",
		"#product-img",
		".main-image img",
		"img.product",
	}

	seen := make(map[string]bool)
	var images []string

	add := func(src string) {
		if !seen[src] && len(images) < maxImages {
			seen[src] = true
			images = append(images, src)
		}
	}

	for _, sel := range selectors {
		doc.Find(sel).Each(func(i int, s *goquery.Selection) {
			if src, ok := candidateImage(s, minImageDim, false); ok {
				add(src)
			}
		})
	}

	// The targeted selectors miss pages using one-off gallery markup. Sweep
	// every image with stricter filters plus a product hint in URL/alt.
	if len(images) == 0 {
		doc.Find("img").Each(func(i int, s *goquery.Selection) {
			if src, ok := candidateImage(s, minSweepDim, true); ok {
				add(src)
			}
		})
	}

	return images
}

// candidateImage applies the shared image filters: absolute http(s) URL, not
// a known placeholder asset, and dimensions at or above minDim. Images with
// no dimension information pass the targeted pass but not the sweep.
func candidateImage(s *goquery.Selection, minDim int, requireHint bool) (string, bool) {
	src := strings.TrimSpace(s.AttrOr("src", ""))
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return "", false
	}

	lower := strings.ToLower(src)
	for _, hint := range placeholderHints {
		if strings.Contains(lower, hint) {
			return "", false
		}
	}

	alt := strings.ToLower(s.AttrOr("alt", ""))
	if requireHint && !strings.Contains(lower, "product") && !strings.Contains(alt, "product") {
		return "", false
	}

	dim := imageDimension(s)
	if dim == 0 {
		// dimension unknown: only the targeted selectors may trust it
		return src, !requireHint
	}
	return src, dim >= minDim
}

// imageDimension returns the largest known dimension, preferring the
// natural sizes the browser client annotated, falling back to the HTML
// width/height attributes. Zero means unknown.
func imageDimension(s *goquery.Selection) int {
	best := 0
	for _, attr := range []string{"data-natural-width", "data-natural-height", "width", "height"} {
		if v, err := strconv.Atoi(strings.TrimSuffix(s.AttrOr(attr, ""), "px")); err == nil && v > best {
			best = v
		}
	}
	return best
}

func (e *Extractor) extractBrand(doc *goquery.Document) string {
	strategies := []strategy{
		selectorText(".brand"),
		selectorText(".product-brand"),
		selectorText(".manufacturer"),
		selectorText("[itemprop='brand']"),
	}
	if brand, ok := e.resolve(doc, "brand", strategies); ok {
		return brand
	}
	return e.siteName
}

// extractSpecifications scans table rows and list items for key: value
// pairs. Length bounds keep unrelated prose out of the specification map.
func (e *Extractor) extractSpecifications(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() >= 2 {
			key := strings.TrimSpace(cells.Eq(0).Text())
			val := strings.TrimSpace(cells.Eq(1).Text())
			addSpec(specs, key, val)
		}
	})

	doc.Find("li").Each(func(i int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		if key, val, ok := strings.Cut(text, ":"); ok {
			addSpec(specs, strings.TrimSpace(key), strings.TrimSpace(val))
		}
	})

	return specs
}

func addSpec(specs map[string]string, key, val string) {
	if key == "" || val == "" {
		return
	}
	key = strings.TrimSuffix(key, ":")
	if len(key) > maxSpecKeyLen || len(val) > maxSpecValLen {
		return
	}
	if _, exists := specs[key]; !exists {
		specs[key] = val
	}
}

func excluded(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range types.ExcludedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
