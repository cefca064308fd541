package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// SaveProduct inserts or replaces a product together with its BOM
func (s *Store) SaveProduct(ctx context.Context, product *entities.Product) error {
	row, edges := productFromEntity(product)
	row.UpdatedAt = s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "sku", "color_tag", "price", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		if err := tx.Delete(&bomEdgeRow{}, "product_id = ?", row.ID).Error; err != nil {
			return err
		}
		if len(edges) == 0 {
			return nil
		}
		return tx.Create(&edges).Error
	})
	return mapError(err, "product "+string(product.ID), entities.ErrDuplicateSKU)
}

// GetProduct retrieves a product and its BOM by id
func (s *Store) GetProduct(ctx context.Context, id entities.ProductID) (*entities.Product, error) {
	return s.getProduct(ctx, "product_id = ?", string(id), "product "+string(id))
}

// GetProductBySKU retrieves a product and its BOM by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*entities.Product, error) {
	return s.getProduct(ctx, "sku = ?", sku, "sku "+sku)
}

func (s *Store) getProduct(ctx context.Context, query string, arg any, subject string) (*entities.Product, error) {
	db := s.db.WithContext(ctx)

	var row productRow
	if err := db.Where(query, arg).First(&row).Error; err != nil {
		return nil, notFound(err, subject, entities.ErrProductNotFound)
	}

	var edges []bomEdgeRow
	if err := db.Where("product_id = ?", row.ID).Order("position").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to load BOM for product %s: %w", row.ID, err)
	}
	return row.toEntity(edges)
}

// ListProducts returns every product sorted by id
func (s *Store) ListProducts(ctx context.Context) ([]*entities.Product, error) {
	db := s.db.WithContext(ctx)

	var rows []productRow
	if err := db.Order("product_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	var edges []bomEdgeRow
	if err := db.Order("product_id, position").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to list BOM lines: %w", err)
	}

	byProduct := make(map[string][]bomEdgeRow, len(rows))
	for _, e := range edges {
		byProduct[e.ProductID] = append(byProduct[e.ProductID], e)
	}

	products := make([]*entities.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toEntity(byProduct[row.ID])
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// DeleteProduct removes a product no other product's BOM references
func (s *Store) DeleteProduct(ctx context.Context, id entities.ProductID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row productRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ?", string(id)).
			First(&row).Error
		if err != nil {
			return notFound(err, "product "+string(id), entities.ErrProductNotFound)
		}

		var refs int64
		err = tx.Model(&bomEdgeRow{}).
			Where("kind = ? AND component_id = ?", entities.KindProduct.String(), string(id)).
			Count(&refs).Error
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("product %s: %w", id, entities.ErrProductInUse)
		}

		if err := tx.Delete(&bomEdgeRow{}, "product_id = ?", string(id)).Error; err != nil {
			return err
		}
		return tx.Delete(&productRow{}, "product_id = ?", string(id)).Error
	})
}
