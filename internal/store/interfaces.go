package store

import (
	"context"

	"storefront-catalog/internal/domain"
)

// ListProductsParams holds filters for listing products. Nil filters match everything.
type ListProductsParams struct {
	Published *bool
	SoldOut   *bool
	Category  *string
	// Summary restricts the returned columns to what a table view shows;
	// rich text and image slots are left empty.
	Summary bool
}

// ProductStorer defines the database operations for products.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, error)
	// UpdateProduct applies only the non-nil fields of patch.
	UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error)
	// DeleteProduct removes the row and returns it as it was before deletion.
	DeleteProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListCategories(ctx context.Context, publishedOnly bool) ([]string, error)
}
