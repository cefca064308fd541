package repositories

import (
	"context"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// ProductRepository provides access to products and their Bills of Materials
type ProductRepository interface {
	// SaveProduct inserts or replaces a product; fails with entities.ErrDuplicateSKU
	// when another product already uses the SKU
	SaveProduct(ctx context.Context, product *entities.Product) error
	GetProduct(ctx context.Context, id entities.ProductID) (*entities.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*entities.Product, error)
	ListProducts(ctx context.Context) ([]*entities.Product, error)
	DeleteProduct(ctx context.Context, id entities.ProductID) error
}

// ProductReader is the read side the BOM resolver needs
type ProductReader interface {
	GetProduct(ctx context.Context, id entities.ProductID) (*entities.Product, error)
}
