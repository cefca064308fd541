package fulfillment

import (
	"context"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/events"
)

// GetBuildable returns how many units of the product current stock can produce
func (e *Engine) GetBuildable(ctx context.Context, productID entities.ProductID) (entities.Quantity, error) {
	return e.calculator.Buildable(ctx, productID)
}

// AdjustStock applies a manual on-hand correction and returns the new position
func (e *Engine) AdjustStock(ctx context.Context, materialID entities.MaterialID, delta entities.Quantity) (*dto.MaterialSnapshot, error) {
	material, err := e.ledger.AdjustOnHand(ctx, materialID, delta)
	if err != nil {
		return nil, err
	}

	e.publish(events.NewStockAdjustedEvent(*material, delta))
	if material.BelowReorderThreshold() {
		e.publish(events.NewStockLowEvent(*material))
	}

	snap := dto.NewMaterialSnapshot(*material)
	return &snap, nil
}

// GetMaterial returns the current position of one material
func (e *Engine) GetMaterial(ctx context.Context, materialID entities.MaterialID) (*dto.MaterialSnapshot, error) {
	material, err := e.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	snap := dto.NewMaterialSnapshot(*material)
	return &snap, nil
}

// LowStock lists materials whose available stock is under their reorder threshold
func (e *Engine) LowStock(ctx context.Context) ([]dto.MaterialSnapshot, error) {
	materials, err := e.store.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]dto.MaterialSnapshot, 0)
	for _, m := range materials {
		if m.BelowReorderThreshold() {
			low = append(low, dto.NewMaterialSnapshot(*m))
		}
	}
	return low, nil
}

// StockReport returns every material and every product with its buildable count
func (e *Engine) StockReport(ctx context.Context) (*dto.StockReport, error) {
	materials, err := e.store.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	report := &dto.StockReport{
		GeneratedAt: e.now(),
		Materials:   make([]dto.MaterialSnapshot, 0, len(materials)),
		Products:    make([]dto.ProductSnapshot, 0, len(products)),
		LowStock:    make([]dto.MaterialSnapshot, 0),
	}
	for _, m := range materials {
		snap := dto.NewMaterialSnapshot(*m)
		report.Materials = append(report.Materials, snap)
		if snap.Low {
			report.LowStock = append(report.LowStock, snap)
		}
	}
	for _, p := range products {
		buildable, err := e.calculator.Buildable(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		report.Products = append(report.Products, dto.NewProductSnapshot(p, buildable))
	}
	return report, nil
}

func (e *Engine) publishLowStock(ctx context.Context, ids []entities.MaterialID) {
	if e.events == nil || len(ids) == 0 {
		return
	}
	snapshot, err := e.store.Snapshot(ctx, ids)
	if err != nil {
		e.logger.Warn("failed to read stock for low-stock check", zap.Error(err))
		return
	}
	for _, id := range ids {
		if m, ok := snapshot[id]; ok && m.BelowReorderThreshold() {
			e.publish(events.NewStockLowEvent(m))
		}
	}
}
