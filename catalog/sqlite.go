package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"catalog-ingest/internal/types"

	_ "modernc.org/sqlite"
)

// schemaSQL is the catalog schema, applied on open. Safe to re-run: every
// statement is IF NOT EXISTS.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price REAL NOT NULL,
    sku TEXT NOT NULL UNIQUE,
    category_id INTEGER NOT NULL REFERENCES categories(id),
    brand TEXT NOT NULL DEFAULT '',
    images TEXT NOT NULL DEFAULT '[]',
    inventory TEXT NOT NULL DEFAULT '{}',
    is_active INTEGER NOT NULL DEFAULT 1,
    is_featured INTEGER NOT NULL DEFAULT 0,
    source_url TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
CREATE INDEX IF NOT EXISTS idx_products_source_url ON products(source_url);
`

// SQLiteRepository implements Repository over a sqlite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the catalog database at path and
// applies the schema. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply catalog schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// FindCategoryByName returns the category with the given name, or (nil, nil)
// when no such category exists.
func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, name string) (*types.Category, error) {
	var c types.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, is_active, sort_order FROM categories WHERE name = ?`, name,
	).Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category %q: %w", name, err)
	}
	return &c, nil
}

// CreateCategory inserts a category and returns it with its assigned ID.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, category *types.Category) (*types.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, description, is_active, sort_order) VALUES (?, ?, ?, ?)`,
		category.Name, category.Description, category.IsActive, category.SortOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", category.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *category
	created.ID = id
	return &created, nil
}

// FindProductByNameOrSourceURL returns a product matching either identity
// key, or (nil, nil) when none matches. This is the duplicate check that
// makes re-runs idempotent.
func (r *SQLiteRepository) FindProductByNameOrSourceURL(ctx context.Context, name, sourceURL string) (*types.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, sku, category_id, brand, images, inventory,
		        is_active, is_featured, metadata
		 FROM products WHERE name = ? OR (source_url != '' AND source_url = ?) LIMIT 1`,
		name, sourceURL,
	)
	return scanProduct(row)
}

// CreateProduct inserts a product and returns it with its assigned ID.
func (r *SQLiteRepository) CreateProduct(ctx context.Context, product *types.Product) (*types.Product, error) {
	images, inventory, metadata, err := encodeProduct(product)
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO products (name, description, price, sku, category_id, brand, images,
		                       inventory, is_active, is_featured, source_url, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Name, product.Description, product.Price, product.SKU, product.CategoryID,
		product.Brand, images, inventory, product.IsActive, product.IsFeatured,
		product.Metadata.SourceURL, metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product %q: %w", product.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *product
	created.ID = id
	return &created, nil
}

// UpdateProduct overwrites the mutable fields of the product with the given
// id, preserving its identity (id and sku).
func (r *SQLiteRepository) UpdateProduct(ctx context.Context, id int64, product *types.Product) error {
	images, inventory, metadata, err := encodeProduct(product)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, category_id = ?, brand = ?,
		        images = ?, inventory = ?, is_active = ?, is_featured = ?, source_url = ?, metadata = ?
		 WHERE id = ?`,
		product.Name, product.Description, product.Price, product.CategoryID, product.Brand,
		images, inventory, product.IsActive, product.IsFeatured, product.Metadata.SourceURL,
		metadata, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func encodeProduct(p *types.Product) (images, inventory, metadata []byte, err error) {
	if images, err = json.Marshal(p.Images); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode images: %w", err)
	}
	if inventory, err = json.Marshal(p.Inventory); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode inventory: %w", err)
	}
	if metadata, err = json.Marshal(p.Metadata); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return images, inventory, metadata, nil
}

func scanProduct(row *sql.Row) (*types.Product, error) {
	var p types.Product
	var images, inventory, metadata []byte

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.SKU, &p.CategoryID,
		&p.Brand, &images, &inventory, &p.IsActive, &p.IsFeatured, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	if err := json.Unmarshal(inventory, &p.Inventory); err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}
	if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &p, nil
}
