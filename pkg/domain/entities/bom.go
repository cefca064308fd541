package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BOMLine represents a single line in a Bill of Materials
type BOMLine struct {
	ComponentID string     `json:"component_id"`
	Kind        TargetKind `json:"kind"`
	QtyPer      Quantity   `json:"qty_per"`
}

// NewBOMLine creates a validated BOMLine
func NewBOMLine(componentID string, kind TargetKind, qtyPer Quantity) (*BOMLine, error) {
	if componentID == "" {
		return nil, fmt.Errorf("component id cannot be empty")
	}
	if kind != KindMaterial && kind != KindProduct {
		return nil, fmt.Errorf("invalid component kind: %d", kind)
	}
	if qtyPer <= 0 {
		return nil, fmt.Errorf("quantity per must be positive, got %d", qtyPer)
	}

	return &BOMLine{
		ComponentID: componentID,
		Kind:        kind,
		QtyPer:      qtyPer,
	}, nil
}

// Product represents an assembled product. Buildable quantity is derived from
// the ledger on demand and never stored here.
type Product struct {
	ID        ProductID       `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	ColorTag  string          `json:"color_tag"`
	Price     decimal.Decimal `json:"price"`
	BOM       []BOMLine       `json:"bom"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewProduct creates a validated Product. Self-reference is rejected here;
// deeper cycles need the rest of the catalog and are checked by the BOM validator.
func NewProduct(id ProductID, name, sku, colorTag string, price decimal.Decimal, bom []BOMLine) (*Product, error) {
	if string(id) == "" {
		return nil, fmt.Errorf("product id cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("product name cannot be empty")
	}
	if sku == "" {
		return nil, fmt.Errorf("product sku cannot be empty")
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative, got %s", price)
	}

	seen := make(map[string]bool, len(bom))
	for _, line := range bom {
		if line.QtyPer <= 0 {
			return nil, fmt.Errorf("quantity per must be positive for component %s, got %d", line.ComponentID, line.QtyPer)
		}
		if line.Kind == KindProduct && ProductID(line.ComponentID) == id {
			return nil, &CyclicBOMError{Path: []ProductID{id, id}}
		}
		key := fmt.Sprintf("%s|%s", line.Kind, line.ComponentID)
		if seen[key] {
			return nil, fmt.Errorf("duplicate BOM line for %s %s", line.Kind, line.ComponentID)
		}
		seen[key] = true
	}

	lines := make([]BOMLine, len(bom))
	copy(lines, bom)

	return &Product{
		ID:       id,
		Name:     name,
		SKU:      sku,
		ColorTag: colorTag,
		Price:    price,
		BOM:      lines,
	}, nil
}

// SubProducts returns the product components referenced directly by this BOM
func (p *Product) SubProducts() []ProductID {
	var ids []ProductID
	for _, line := range p.BOM {
		if line.Kind == KindProduct {
			ids = append(ids, ProductID(line.ComponentID))
		}
	}
	return ids
}

// References reports whether the BOM names the given component directly
func (p *Product) References(kind TargetKind, componentID string) bool {
	for _, line := range p.BOM {
		if line.Kind == kind && line.ComponentID == componentID {
			return true
		}
	}
	return false
}
