package testing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/repositories/memory"
)

// Material ids of the T-shirt shop scenario
const (
	RedM   entities.MaterialID = "TEE-RED-M"
	RedL   entities.MaterialID = "TEE-RED-L"
	BlackS entities.MaterialID = "TEE-BLK-S"
	BlackM entities.MaterialID = "TEE-BLK-M"
	BlackL entities.MaterialID = "TEE-BLK-L"
	WhiteS entities.MaterialID = "TEE-WHT-S"
	WhiteM entities.MaterialID = "TEE-WHT-M"
	WhiteL entities.MaterialID = "TEE-WHT-L"
	Print  entities.MaterialID = "PRINT-CUSTOM"
)

// Product ids of the T-shirt shop scenario
const (
	ShirtRedM   entities.ProductID = "TSH-RED-M"
	ShirtBlackL entities.ProductID = "TSH-BLK-L"
	ShirtWhiteS entities.ProductID = "TSH-WHT-S"
	MixedPack   entities.ProductID = "PACK-MIX-3"
)

// MustMaterial is a helper for tests - panics on validation error
func MustMaterial(id entities.MaterialID, name, color string, onHand entities.Quantity, threshold entities.Quantity) *entities.Material {
	m, err := entities.NewMaterial(id, name, color, onHand, "PCS", threshold)
	if err != nil {
		panic(err)
	}
	return m
}

// MustProduct is a helper for tests - panics on validation error
func MustProduct(id entities.ProductID, name, sku, color, price string, bom ...entities.BOMLine) *entities.Product {
	p, err := entities.NewProduct(id, name, sku, color, decimal.RequireFromString(price), bom)
	if err != nil {
		panic(err)
	}
	return p
}

// MaterialLine builds a BOM line pointing at a material
func MaterialLine(id entities.MaterialID, qty entities.Quantity) entities.BOMLine {
	return entities.BOMLine{ComponentID: string(id), Kind: entities.KindMaterial, QtyPer: qty}
}

// ProductLine builds a BOM line pointing at a sub-product
func ProductLine(id entities.ProductID, qty entities.Quantity) entities.BOMLine {
	return entities.BOMLine{ComponentID: string(id), Kind: entities.KindProduct, QtyPer: qty}
}

// ShopMaterials returns the blank-garment and print stock of the shop
func ShopMaterials() []*entities.Material {
	return []*entities.Material{
		MustMaterial(RedM, "Gildan T-Shirt - Red / M", "red", 13, 24),
		MustMaterial(RedL, "Gildan T-Shirt - Red / L", "red", 46, 24),
		MustMaterial(BlackS, "Gildan T-Shirt - Black / S", "black", 21, 24),
		MustMaterial(BlackM, "Gildan T-Shirt - Black / M", "black", 34, 24),
		MustMaterial(BlackL, "Gildan T-Shirt - Black / L", "black", 27, 24),
		MustMaterial(WhiteS, "Gildan T-Shirt - White / S", "white", 34, 24),
		MustMaterial(WhiteM, "Gildan T-Shirt - White / M", "white", 51, 24),
		MustMaterial(WhiteL, "Gildan T-Shirt - White / L", "white", 29, 24),
		MustMaterial(Print, "Custom Print Design", "blue", 100, 1),
	}
}

// ShopProducts returns the printed shirts plus one kit built from them
func ShopProducts() []*entities.Product {
	return []*entities.Product{
		MustProduct(ShirtRedM, "Custom T-Shirt - Red / M", "TSH-RED-M-001", "red", "25.99",
			MaterialLine(RedM, 1), MaterialLine(Print, 1)),
		MustProduct(ShirtBlackL, "Custom T-Shirt - Black / L", "TSH-BLK-L-002", "black", "25.99",
			MaterialLine(BlackL, 1), MaterialLine(Print, 1)),
		MustProduct(ShirtWhiteS, "Custom T-Shirt - White / S", "TSH-WHT-S-003", "white", "25.99",
			MaterialLine(WhiteS, 1), MaterialLine(Print, 1)),
		MustProduct(MixedPack, "Mixed 3-Pack", "PACK-MIX-3-004", "", "69.99",
			ProductLine(ShirtRedM, 2), ProductLine(ShirtBlackL, 1)),
	}
}

// BuildTShirtShop returns a memory store seeded with the shop catalog and no orders
func BuildTShirtShop() *memory.Store {
	store := memory.NewStore()
	if err := store.LoadMaterials(ShopMaterials()); err != nil {
		panic(err)
	}
	if err := store.LoadProducts(ShopProducts()); err != nil {
		panic(err)
	}
	return store
}

// BuildLedgerOnly returns a memory store holding only the given materials
func BuildLedgerOnly(materials ...*entities.Material) *memory.Store {
	store := memory.NewStore()
	for _, m := range materials {
		if err := store.CreateMaterial(context.Background(), m); err != nil {
			panic(err)
		}
	}
	return store
}

// ProductDraft builds a single-line order draft for a product at the shirt list price
func ProductDraft(customer string, id entities.ProductID, qty entities.Quantity) entities.OrderDraft {
	return entities.OrderDraft{
		Customer: customer,
		Email:    customer + "@example.com",
		Lines: []entities.OrderLine{{
			TargetID:  string(id),
			Kind:      entities.KindProduct,
			Quantity:  qty,
			UnitPrice: decimal.RequireFromString("25.99"),
		}},
	}
}
