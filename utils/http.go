package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalog-ingest/internal/types"

	"golang.org/x/time/rate"
)

// HTTPClient provides HTTP functionality with rate limiting and retries.
// A single shared instance paces all plain-HTTP traffic against the source
// site, including image downloads.
type HTTPClient struct {
	client  *http.Client
	config  *types.Config
	logger  types.Logger
	limiter *rate.Limiter
}

// NewHTTPClient creates a new HTTP client with the given configuration.
func NewHTTPClient(config *types.Config, logger types.Logger) *HTTPClient {
	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// One request per RequestDelay, no bursting. Sequential processing plus
	// this limiter is the politeness contract with the source site.
	return &HTTPClient{
		client:  client,
		config:  config,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(config.RequestDelay), 1),
	}
}

// Get performs a GET request with rate limiting and retries.
func (h *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		body, err := h.getOnce(ctx, url, attempt)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		h.logger.Warnf("Request to %s failed (attempt %d): %v", url, attempt+1, err)
	}

	return nil, fmt.Errorf("all retry attempts failed: %w", lastErr)
}

func (h *HTTPClient) getOnce(ctx context.Context, url string, attempt int) ([]byte, error) {
	resp, err := h.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	h.logger.Debugf("Request to %s succeeded (attempt %d/%d)", url, attempt+1, h.config.MaxRetries+1)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Fetch performs a single rate-limited GET and returns the raw response with
// the body still open. Any non-200 status is an error. The caller owns the
// body; image downloads use this to stream straight to disk.
func (h *HTTPClient) Fetch(ctx context.Context, url string) (*http.Response, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", h.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp, nil
}

// Close cleans up resources.
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
