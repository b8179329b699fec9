package assets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-ingest/internal/types"
	"catalog-ingest/utils"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(t *testing.T) *types.Config {
	config := types.DefaultConfig()
	config.UploadDir = t.TempDir()
	config.RequestDelay = time.Millisecond
	config.MaxRetries = 1
	return config
}

func newDownloader(t *testing.T, config *types.Config) *Downloader {
	return NewDownloader(config, utils.NewHTTPClient(config, testLogger()), testLogger())
}

func TestDownload_WritesImageToProductFolder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	config := testConfig(t)
	d := newDownloader(t, config)

	ref, err := d.Download(context.Background(), server.URL+"/rose1.jpg", "Rose Soap", 0)
	require.NoError(t, err)

	assert.True(t, ref.IsPrimary)
	assert.Equal(t, "Rose Soap", ref.Alt)

	dest := filepath.Join(config.UploadDir, "products", "rosesoap", "image_0.jpg")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestDownload_SkipsExistingFile(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	config := testConfig(t)
	d := newDownloader(t, config)

	_, err := d.Download(context.Background(), server.URL+"/rose1.jpg", "Rose Soap", 1)
	require.NoError(t, err)
	require.Equal(t, 1, requests)

	// second run: file exists and update mode is off, no fetch
	ref, err := d.Download(context.Background(), server.URL+"/rose1.jpg", "Rose Soap", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
	assert.False(t, ref.IsPrimary)
}

func TestDownload_UpdateModeRefetches(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	config := testConfig(t)
	config.UpdateImages = true
	d := newDownloader(t, config)

	_, err := d.Download(context.Background(), server.URL+"/rose1.jpg", "Rose Soap", 0)
	require.NoError(t, err)
	_, err = d.Download(context.Background(), server.URL+"/rose1.jpg", "Rose Soap", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestDownload_NonOKStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	config := testConfig(t)
	d := newDownloader(t, config)

	_, err := d.Download(context.Background(), server.URL+"/missing.jpg", "Rose Soap", 0)
	require.Error(t, err)

	// no partial file left behind
	dest := filepath.Join(config.UploadDir, "products", "rosesoap", "image_0.jpg")
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFolderName(t *testing.T) {
	assert.Equal(t, "rosesoap", FolderName("Rose Soap"))
	assert.Equal(t, "rose100gbar", FolderName("Rose (100g) Bar!"))
	assert.Equal(t, "product", FolderName("???"))

	long := FolderName("a very long product name that goes on and on and on and on and on")
	assert.LessOrEqual(t, len(long), 50)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", extension("https://cdn.example.co.uk/img.png?v=2"))
	assert.Equal(t, ".jpg", extension("https://cdn.example.co.uk/img"))
	assert.Equal(t, ".jpg", extension("https://cdn.example.co.uk/img.exe"))
}
