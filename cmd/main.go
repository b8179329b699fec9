package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"catalog-ingest/assets"
	"catalog-ingest/catalog"
	"catalog-ingest/events"
	"catalog-ingest/internal/types"
	"catalog-ingest/pipeline"
	"catalog-ingest/utils"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	defaults := types.DefaultConfig()

	var (
		sitemapFlag  = flag.String("sitemap", defaults.SitemapURL, "Sitemap URL of the source site")
		pricesFlag   = flag.String("pricelist", defaults.PriceListPath, "Path to the supplier price list workbook")
		uploadsFlag  = flag.String("uploads", defaults.UploadDir, "Directory for downloaded product images")
		dbFlag       = flag.String("db", defaults.DatabasePath, "Path to the catalog database")
		testMode     = flag.Bool("test", false, "Test mode: cap categories and products for a smoke run")
		productLimit = flag.Int("limit", 0, "Maximum products per category (0 = no limit)")
		updateImages = flag.Bool("update-images", false, "Overwrite existing products and re-download their images")
		requestDelay = flag.Duration("delay", defaults.RequestDelay, "Delay between requests")
		maxRetries   = flag.Int("retries", defaults.MaxRetries, "Maximum retry attempts")
		timeout      = flag.Duration("timeout", defaults.Timeout, "Request timeout")
		httpOnly     = flag.Bool("http-only", false, "Use HTTP requests only (disable headless browser)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	// Setup logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	// Set log level from LOG_LEVEL env if present
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	config := defaults
	config.SitemapURL = *sitemapFlag
	config.PriceListPath = *pricesFlag
	config.UploadDir = *uploadsFlag
	config.DatabasePath = *dbFlag
	config.TestMode = *testMode
	config.ProductLimit = *productLimit
	config.UpdateImages = *updateImages
	config.RequestDelay = *requestDelay
	config.MaxRetries = *maxRetries
	config.Timeout = *timeout
	config.UseHeadlessBrowser = !*httpOnly

	repo, err := catalog.OpenSQLite(config.DatabasePath)
	if err != nil {
		logger.Fatalf("Failed to open catalog: %v", err)
	}
	defer repo.Close()

	fetcher := utils.NewFetcher(config, logger)
	defer fetcher.Close()

	downloader := assets.NewDownloader(config, fetcher.HTTPClient(), logger)
	orchestrator := pipeline.New(config, fetcher, downloader, repo, events.Default, logger)

	// A long-running import can be stopped between product iterations.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	stats, err := orchestrator.Run(ctx)
	if err != nil {
		// Fatal, run-aborting failure; per-item errors land in stats
		// instead and still exit 0.
		logger.Errorf("Ingestion run failed after %v: %v", time.Since(startTime), err)
		fetcher.Close()
		repo.Close()
		os.Exit(1)
	}

	logger.Infof("Ingestion run finished in %v", time.Since(startTime))
	logger.Infof("Processed: %d, Created: %d, Updated: %d, Skipped: %d, Errors: %d",
		stats.Processed, stats.Created, stats.Updated, stats.Skipped, stats.Errors)
}
