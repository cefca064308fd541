package repositories

import (
	"context"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// MaterialRepository provides access to material master data.
// Stock positions (on-hand, reserved) are only changed through LedgerStore.
type MaterialRepository interface {
	CreateMaterial(ctx context.Context, material *entities.Material) error
	// UpdateMaterialInfo replaces descriptive fields; on-hand and reserved are left untouched
	UpdateMaterialInfo(ctx context.Context, material *entities.Material) error
	// DeleteMaterial fails with entities.ErrMaterialInUse while units are reserved
	DeleteMaterial(ctx context.Context, id entities.MaterialID) error
	GetMaterial(ctx context.Context, id entities.MaterialID) (*entities.Material, error)
	ListMaterials(ctx context.Context) ([]*entities.Material, error)
}
