package utils

import (
	"context"
	"io"

	"catalog-ingest/internal/types"
)

// Fetcher retrieves page content using either the HTTP client or the
// headless browser, depending on configuration. The pipeline only ever sees
// this one entry point for page loads.
type Fetcher struct {
	config        *types.Config
	httpClient    *HTTPClient
	browserClient *BrowserClient
}

// NewFetcher creates a fetcher with initialized HTTP and browser clients.
func NewFetcher(config *types.Config, logger types.Logger) *Fetcher {
	return &Fetcher{
		config:        config,
		httpClient:    NewHTTPClient(config, logger),
		browserClient: NewBrowserClient(config, logger),
	}
}

// GetPageContent retrieves the HTML content of a page. JavaScript-heavy
// product pages go through the headless browser; plain HTTP is used when
// the browser is disabled (faster, and sufficient for static pages).
// Each call is a single attempt: retry policy belongs to the pipeline's
// own retry loop, and stacking a second layer here would multiply the
// request count against the source site.
func (f *Fetcher) GetPageContent(ctx context.Context, url string) (string, error) {
	if f.config.UseHeadlessBrowser {
		return f.browserClient.GetPageContent(ctx, url)
	}

	resp, err := f.httpClient.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// HTTPClient exposes the underlying rate-limited HTTP client so the asset
// downloader can share its pacing against the source site.
func (f *Fetcher) HTTPClient() *HTTPClient {
	return f.httpClient
}

// Close cleans up resources.
func (f *Fetcher) Close() {
	if f.httpClient != nil {
		f.httpClient.Close()
	}
}
