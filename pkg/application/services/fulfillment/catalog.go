package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// DefineMaterial adds a new material with its opening stock
func (e *Engine) DefineMaterial(ctx context.Context, m entities.Material) (*dto.MaterialSnapshot, error) {
	material, err := entities.NewMaterial(m.ID, m.Name, m.ColorTag, m.OnHand, m.UnitLabel, m.ReorderThreshold)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateMaterial(ctx, material); err != nil {
		return nil, err
	}
	e.logger.Info("material defined", zap.String("material_id", string(material.ID)), zap.Int64("on_hand", int64(material.OnHand)))
	return e.GetMaterial(ctx, material.ID)
}

// UpdateMaterialInfo edits the descriptive fields of a material. Stock is
// changed only through AdjustStock and the order lifecycle.
func (e *Engine) UpdateMaterialInfo(ctx context.Context, m entities.Material) (*dto.MaterialSnapshot, error) {
	if _, err := entities.NewMaterial(m.ID, m.Name, m.ColorTag, 0, m.UnitLabel, m.ReorderThreshold); err != nil {
		return nil, err
	}
	if err := e.store.UpdateMaterialInfo(ctx, &m); err != nil {
		return nil, err
	}
	return e.GetMaterial(ctx, m.ID)
}

// DeleteMaterial removes a material that is neither reserved nor used in a BOM
func (e *Engine) DeleteMaterial(ctx context.Context, id entities.MaterialID) error {
	e.catalogMu.Lock()
	defer e.catalogMu.Unlock()

	if err := e.store.DeleteMaterial(ctx, id); err != nil {
		return err
	}
	e.logger.Info("material deleted", zap.String("material_id", string(id)))
	return nil
}

// DefineProduct creates or replaces a product. The BOM must only name known
// materials and products and must not make the product graph cyclic.
func (e *Engine) DefineProduct(ctx context.Context, p entities.Product) (*dto.ProductSnapshot, error) {
	product, err := entities.NewProduct(p.ID, p.Name, p.SKU, p.ColorTag, p.Price, p.BOM)
	if err != nil {
		return nil, err
	}

	e.catalogMu.Lock()
	defer e.catalogMu.Unlock()

	for _, line := range product.BOM {
		if line.Kind != entities.KindMaterial {
			continue
		}
		if _, err := e.store.GetMaterial(ctx, entities.MaterialID(line.ComponentID)); err != nil {
			return nil, fmt.Errorf("component of product %s: %w", product.ID, err)
		}
	}

	existing, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.validator.CheckCandidate(product, existing); err != nil {
		return nil, err
	}

	if err := e.store.SaveProduct(ctx, product); err != nil {
		return nil, err
	}
	e.logger.Info("product defined", zap.String("product_id", string(product.ID)), zap.Int("bom_lines", len(product.BOM)))

	return e.GetProduct(ctx, product.ID)
}

// GetProduct returns a product with its current buildable count
func (e *Engine) GetProduct(ctx context.Context, id entities.ProductID) (*dto.ProductSnapshot, error) {
	product, err := e.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	buildable, err := e.calculator.Buildable(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := dto.NewProductSnapshot(product, buildable)
	return &snap, nil
}

// DeleteProduct removes a product that no other product uses as a component
func (e *Engine) DeleteProduct(ctx context.Context, id entities.ProductID) error {
	e.catalogMu.Lock()
	defer e.catalogMu.Unlock()

	if err := e.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	e.logger.Info("product deleted", zap.String("product_id", string(id)))
	return nil
}
