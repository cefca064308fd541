package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// SaveProduct inserts or replaces a product keyed by id
func (s *Store) SaveProduct(ctx context.Context, product *entities.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.ID != product.ID && existing.SKU == product.SKU {
			return fmt.Errorf("sku %s already used by product %s: %w", product.SKU, existing.ID, entities.ErrDuplicateSKU)
		}
	}
	p := copyProduct(product)
	p.UpdatedAt = s.now()
	s.products[product.ID] = p
	return nil
}

// LoadProducts loads products into the repository
func (s *Store) LoadProducts(products []*entities.Product) error {
	for _, p := range products {
		if err := s.SaveProduct(context.Background(), p); err != nil {
			return err
		}
	}
	return nil
}

// GetProduct returns a product and its BOM
func (s *Store) GetProduct(ctx context.Context, id entities.ProductID) (*entities.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, fmt.Errorf("product %s: %w", id, entities.ErrProductNotFound)
	}
	return copyProduct(p), nil
}

// GetProductBySKU looks a product up by its unique SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*entities.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.SKU == sku {
			return copyProduct(p), nil
		}
	}
	return nil, fmt.Errorf("sku %s: %w", sku, entities.ErrProductNotFound)
}

// ListProducts returns every product sorted by id
func (s *Store) ListProducts(ctx context.Context) ([]*entities.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]*entities.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, copyProduct(p))
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// DeleteProduct removes a product no other product uses as a kit component
func (s *Store) DeleteProduct(ctx context.Context, id entities.ProductID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return fmt.Errorf("product %s: %w", id, entities.ErrProductNotFound)
	}
	for _, p := range s.products {
		if p.ID != id && p.References(entities.KindProduct, string(id)) {
			return fmt.Errorf("product %s is used by product %s: %w", id, p.ID, entities.ErrProductInUse)
		}
	}
	delete(s.products, id)
	return nil
}
