package utils

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"catalog-ingest/internal/types"

	"github.com/chromedp/chromedp"
)

// annotateImagesJS copies each image's natural dimensions onto data
// attributes so the rendered-size filters survive the trip through OuterHTML.
const annotateImagesJS = `(() => {
	document.querySelectorAll('img').forEach(img => {
		if (img.naturalWidth) img.setAttribute('data-natural-width', img.naturalWidth);
		if (img.naturalHeight) img.setAttribute('data-natural-height', img.naturalHeight);
	});
	return true;
})()`

// BrowserClient provides headless browser functionality. The source site
// populates prices and gallery images client-side, so product pages must be
// rendered before extraction.
type BrowserClient struct {
	config *types.Config
	logger types.Logger
}

// NewBrowserClient creates a new browser client.
func NewBrowserClient(config *types.Config, logger types.Logger) *BrowserClient {
	// Suppress chromedp debug logging
	log.SetOutput(io.Discard)

	return &BrowserClient{
		config: config,
		logger: logger,
	}
}

// GetPageContent retrieves the rendered HTML of a page using a headless
// browser, with image dimensions annotated for the extractor.
func (b *BrowserClient) GetPageContent(ctx context.Context, url string) (string, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.config.Timeout)
	defer cancel()

	var html string
	var annotated bool

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(500*time.Millisecond), // let client-side rendering settle
		chromedp.Evaluate(annotateImagesJS, &annotated),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}

	b.logger.Debugf("Successfully retrieved rendered page from %s (%d bytes)", url, len(html))
	return html, nil
}

// WaitForElement waits for a specific element to appear on the page.
func (b *BrowserClient) WaitForElement(ctx context.Context, url string, selector string) error {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.config.Timeout)
	defer cancel()

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(selector),
	)
	if err != nil {
		return fmt.Errorf("failed to wait for element %s: %w", selector, err)
	}

	return nil
}
