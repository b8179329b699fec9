// Package catalog provides the data-access layer for persisted categories
// and products. The pipeline only depends on the Repository interface; the
// backing store is an implementation detail.
package catalog

import (
	"context"

	"catalog-ingest/internal/types"
)

// Repository is the pipeline's contract with the catalog store.
type Repository interface {
	FindCategoryByName(ctx context.Context, name string) (*types.Category, error)
	CreateCategory(ctx context.Context, category *types.Category) (*types.Category, error)
	FindProductByNameOrSourceURL(ctx context.Context, name, sourceURL string) (*types.Product, error)
	CreateProduct(ctx context.Context, product *types.Product) (*types.Product, error)
	UpdateProduct(ctx context.Context, id int64, product *types.Product) error
	Close() error
}
