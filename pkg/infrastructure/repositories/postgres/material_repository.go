package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// CreateMaterial inserts a material with its opening on-hand quantity
func (s *Store) CreateMaterial(ctx context.Context, material *entities.Material) error {
	if err := material.CheckInvariant(); err != nil {
		return err
	}
	row := materialFromEntity(material)
	row.UpdatedAt = s.now()
	err := s.db.WithContext(ctx).Create(&row).Error
	return mapError(err, "material "+string(material.ID), entities.ErrDuplicateID)
}

// UpdateMaterialInfo replaces descriptive fields; on_hand and reserved are untouched
func (s *Store) UpdateMaterialInfo(ctx context.Context, material *entities.Material) error {
	result := s.db.WithContext(ctx).Model(&materialRow{}).
		Where("material_id = ?", string(material.ID)).
		Updates(map[string]any{
			"name":              material.Name,
			"color_tag":         material.ColorTag,
			"unit_label":        material.UnitLabel,
			"reorder_threshold": int64(material.ReorderThreshold),
			"updated_at":        s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("material %s: %w", material.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("material %s: %w", material.ID, entities.ErrMaterialNotFound)
	}
	return nil
}

// DeleteMaterial removes a material that nothing reserves or references
func (s *Store) DeleteMaterial(ctx context.Context, id entities.MaterialID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row materialRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("material_id = ?", string(id)).
			First(&row).Error
		if err != nil {
			return notFound(err, "material "+string(id), entities.ErrMaterialNotFound)
		}
		if row.Reserved > 0 {
			return fmt.Errorf("material %s has %d units reserved: %w", id, row.Reserved, entities.ErrMaterialInUse)
		}

		var refs int64
		err = tx.Model(&bomEdgeRow{}).
			Where("kind = ? AND component_id = ?", entities.KindMaterial.String(), string(id)).
			Count(&refs).Error
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("material %s is used by %d BOM lines: %w", id, refs, entities.ErrMaterialInUse)
		}

		return tx.Delete(&materialRow{}, "material_id = ?", string(id)).Error
	})
}

// GetMaterial retrieves a material by id
func (s *Store) GetMaterial(ctx context.Context, id entities.MaterialID) (*entities.Material, error) {
	var row materialRow
	err := s.db.WithContext(ctx).Where("material_id = ?", string(id)).First(&row).Error
	if err != nil {
		return nil, notFound(err, "material "+string(id), entities.ErrMaterialNotFound)
	}
	return row.toEntity(), nil
}

// ListMaterials returns every material sorted by id
func (s *Store) ListMaterials(ctx context.Context) ([]*entities.Material, error) {
	var rows []materialRow
	if err := s.db.WithContext(ctx).Order("material_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	materials := make([]*entities.Material, len(rows))
	for i, row := range rows {
		materials[i] = row.toEntity()
	}
	return materials, nil
}
