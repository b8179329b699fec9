// Package assets persists remote product images into a per-product folder
// under the upload directory.
package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"catalog-ingest/internal/types"
	"catalog-ingest/utils"
)

const maxFolderNameLen = 50

// Downloader fetches product images to disk. Re-runs are cheap: a file that
// already exists is not fetched again unless update mode is on.
type Downloader struct {
	config *types.Config
	client *utils.HTTPClient
	logger types.Logger
}

// NewDownloader creates a downloader sharing the pipeline's rate-limited
// HTTP client.
func NewDownloader(config *types.Config, client *utils.HTTPClient, logger types.Logger) *Downloader {
	return &Downloader{config: config, client: client, logger: logger}
}

// Download fetches imageURL into the product's folder and returns the stored
// reference. index orders images within the product; index 0 is primary.
func (d *Downloader) Download(ctx context.Context, imageURL, productName string, index int) (types.ProductImage, error) {
	folder := filepath.Join(d.config.UploadDir, "products", FolderName(productName))
	if err := os.MkdirAll(folder, 0755); err != nil {
		return types.ProductImage{}, fmt.Errorf("failed to create image folder: %w", err)
	}

	filename := fmt.Sprintf("image_%d%s", index, extension(imageURL))
	dest := filepath.Join(folder, filename)

	ref := types.ProductImage{
		URL:       "/" + filepath.ToSlash(dest),
		Alt:       productName,
		IsPrimary: index == 0,
	}

	if _, err := os.Stat(dest); err == nil && !d.config.UpdateImages {
		d.logger.Debugf("Image already downloaded, skipping: %s", dest)
		return ref, nil
	}

	if err := d.fetch(ctx, imageURL, dest); err != nil {
		return types.ProductImage{}, err
	}

	d.logger.Debugf("Downloaded image %d for %q: %s", index, productName, imageURL)
	return ref, nil
}

// fetch streams the remote image to dest, removing any partial file on
// failure. The shared client enforces the 30s timeout and 200-only policy.
func (d *Downloader) fetch(ctx context.Context, imageURL, dest string) error {
	resp, err := d.client.Fetch(ctx, imageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to write image %s: %w", dest, err)
	}

	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to close image file: %w", err)
	}

	return nil
}

// FolderName sanitizes a product name into a folder name: case-folded,
// alphanumeric-only, length-capped. Per-product folders keep image writes
// from different products collision-free.
func FolderName(productName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(productName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "product"
	}
	if len(name) > maxFolderNameLen {
		name = name[:maxFolderNameLen]
	}
	return name
}

// extension picks a file extension from the image URL, defaulting to .jpg.
func extension(imageURL string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(imageURL, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
