// Package sitemap discovers category and product URLs from the source
// site's navigation pages.
package sitemap

import (
	"net/url"
	"regexp"
	"strings"

	"catalog-ingest/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Ordered patterns per link type; earlier patterns are more specific. A URL
// only needs to match one of them.
var (
	categoryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`-c\.asp$`),
		regexp.MustCompile(`(?i)category`),
		regexp.MustCompile(`(?i)cat`),
	}
	productPattern = regexp.MustCompile(`-p\.asp$`)
)

// utilityPaths are non-product pages that match none of the product
// heuristics' intent; filtered from product links specifically.
var utilityPaths = []string{
	"cart", "terms", "privacy", "sitemap", "contact", "login", "register",
	".css", ".js", ".png", ".jpg", ".gif", ".ico",
}

// Walker extracts category and product links from fetched HTML.
type Walker struct {
	baseURL string
	logger  types.Logger
}

// NewWalker creates a walker rooted at baseURL.
func NewWalker(baseURL string, logger types.Logger) *Walker {
	return &Walker{baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

// CategoryLinks extracts category page URLs from the sitemap page.
// Fragrance-family URLs are dropped: a standing business rule, applied to
// categories and products alike.
func (w *Walker) CategoryLinks(html string) ([]types.CategoryLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []types.CategoryLink

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := w.normalize(s.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		if !matchesAny(href, categoryPatterns) {
			return
		}
		if isExcluded(href) {
			w.logger.Debugf("Excluding fragrance category URL: %s", href)
			return
		}
		seen[href] = true
		links = append(links, types.CategoryLink{
			URL:         href,
			DerivedName: deriveName(href),
		})
	})

	w.logger.Infof("Found %d category links", len(links))
	return links, nil
}

// ProductLinks extracts product page URLs from a category page.
func (w *Walker) ProductLinks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := w.normalize(s.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		if !productPattern.MatchString(href) {
			return
		}
		if isUtility(href) || isExcluded(href) {
			return
		}
		seen[href] = true
		links = append(links, href)
	})

	w.logger.Debugf("Found %d product links", len(links))
	return links, nil
}

// normalize cleans an href and converts relative URLs to absolute ones.
func (w *Walker) normalize(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}

	if strings.HasPrefix(href, "/") {
		href = w.baseURL + href
	} else if !strings.HasPrefix(href, "http") {
		href = w.baseURL + "/" + href
	}

	if _, err := url.Parse(href); err != nil {
		return ""
	}
	return href
}

func matchesAny(href string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(href) {
			return true
		}
	}
	return false
}

func isExcluded(href string) bool {
	lower := strings.ToLower(href)
	for _, kw := range types.ExcludedKeywords {
		// URLs usually encode spaces as hyphens
		if strings.Contains(lower, kw) || strings.Contains(lower, strings.ReplaceAll(kw, " ", "-")) {
			return true
		}
	}
	return false
}

func isUtility(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range utilityPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// deriveName turns a category URL slug into a display name, e.g.
// ".../bath-and-body-c.asp" -> "Bath And Body".
func deriveName(href string) string {
	slug := href
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	slug = strings.TrimSuffix(slug, "-c.asp")
	if i := strings.Index(slug, "."); i >= 0 {
		slug = slug[:i]
	}

	words := strings.Split(slug, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	name := strings.TrimSpace(strings.Join(words, " "))
	if name == "" {
		return "General"
	}
	return name
}
