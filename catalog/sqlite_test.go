package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-ingest/internal/types"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleProduct(name, sourceURL, sku string) *types.Product {
	return &types.Product{
		Name:        name,
		Description: "Handmade soap bar",
		Price:       2.50,
		SKU:         sku,
		CategoryID:  1,
		Brand:       "Acme",
		Images: []types.ProductImage{
			{URL: "/uploads/products/x/image_0.jpg", Alt: name, IsPrimary: true},
		},
		Inventory: types.Inventory{Quantity: 100, TrackQuantity: true},
		IsActive:  true,
		Metadata: types.ProductMetadata{
			SourceURL:     sourceURL,
			ScrapedAt:     time.Now(),
			OriginalPrice: 2.00,
			PriceMarkup:   0.50,
		},
	}
}

func TestCategoryGetOrCreateCycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	found, err := repo.FindCategoryByName(ctx, "Bath And Body")
	require.NoError(t, err)
	assert.Nil(t, found)

	created, err := repo.CreateCategory(ctx, &types.Category{Name: "Bath And Body", IsActive: true})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	found, err = repo.FindCategoryByName(ctx, "Bath And Body")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.True(t, found.IsActive)
}

func TestProductFindByNameOrSourceURL(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateProduct(ctx, sampleProduct("Rose Soap", "https://example.co.uk/rose-soap-123-p.asp", "DSW-ROSESOAP-1"))
	require.NoError(t, err)

	byName, err := repo.FindProductByNameOrSourceURL(ctx, "Rose Soap", "https://example.co.uk/other")
	require.NoError(t, err)
	require.NotNil(t, byName)

	byURL, err := repo.FindProductByNameOrSourceURL(ctx, "Different Name", "https://example.co.uk/rose-soap-123-p.asp")
	require.NoError(t, err)
	require.NotNil(t, byURL)
	assert.Equal(t, byName.ID, byURL.ID)

	missing, err := repo.FindProductByNameOrSourceURL(ctx, "Nope", "https://example.co.uk/nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProductRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateProduct(ctx, sampleProduct("Rose Soap", "https://example.co.uk/rose-soap-123-p.asp", "DSW-ROSESOAP-2"))
	require.NoError(t, err)

	found, err := repo.FindProductByNameOrSourceURL(ctx, "Rose Soap", "")
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, created.ID, found.ID)
	assert.InDelta(t, 2.50, found.Price, 0.001)
	require.Len(t, found.Images, 1)
	assert.True(t, found.Images[0].IsPrimary)
	assert.Equal(t, 100, found.Inventory.Quantity)
	assert.InDelta(t, 2.00, found.Metadata.OriginalPrice, 0.001)
	assert.Equal(t, "https://example.co.uk/rose-soap-123-p.asp", found.Metadata.SourceURL)
}

func TestUpdateProductPreservesIdentity(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateProduct(ctx, sampleProduct("Rose Soap", "https://example.co.uk/rose-soap-123-p.asp", "DSW-ROSESOAP-3"))
	require.NoError(t, err)

	updated := sampleProduct("Rose Soap", "https://example.co.uk/rose-soap-123-p.asp", created.SKU)
	updated.Price = 3.00
	updated.Description = "Reformulated"
	require.NoError(t, repo.UpdateProduct(ctx, created.ID, updated))

	found, err := repo.FindProductByNameOrSourceURL(ctx, "Rose Soap", "")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.SKU, found.SKU)
	assert.InDelta(t, 3.00, found.Price, 0.001)
	assert.Equal(t, "Reformulated", found.Description)
}

func TestFindProduct_EmptySourceURLDoesNotMatchBlankRows(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	p := sampleProduct("Rose Soap", "", "DSW-ROSESOAP-4")
	_, err := repo.CreateProduct(ctx, p)
	require.NoError(t, err)

	found, err := repo.FindProductByNameOrSourceURL(ctx, "Other", "")
	require.NoError(t, err)
	assert.Nil(t, found)
}
