package memory

import (
	"context"
	"fmt"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// CreateMaterial adds a new material with its opening on-hand quantity
func (s *Store) CreateMaterial(ctx context.Context, material *entities.Material) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := material.CheckInvariant(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.materials[material.ID]; exists {
		return fmt.Errorf("material %s: %w", material.ID, entities.ErrDuplicateID)
	}
	m := *material
	m.UpdatedAt = s.now()
	s.materials[material.ID] = &materialEntry{material: m}
	return nil
}

// LoadMaterials loads materials into the repository
func (s *Store) LoadMaterials(materials []*entities.Material) error {
	for _, m := range materials {
		if err := s.CreateMaterial(context.Background(), m); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMaterialInfo replaces the descriptive fields of a material
func (s *Store) UpdateMaterialInfo(ctx context.Context, material *entities.Material) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.materials[material.ID]
	if !exists {
		return fmt.Errorf("material %s: %w", material.ID, entities.ErrMaterialNotFound)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.material.Name = material.Name
	entry.material.ColorTag = material.ColorTag
	entry.material.UnitLabel = material.UnitLabel
	entry.material.ReorderThreshold = material.ReorderThreshold
	entry.material.UpdatedAt = s.now()
	return nil
}

// DeleteMaterial removes a material that nothing reserves or references
func (s *Store) DeleteMaterial(ctx context.Context, id entities.MaterialID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.materials[id]
	if !exists {
		return fmt.Errorf("material %s: %w", id, entities.ErrMaterialNotFound)
	}

	entry.mu.Lock()
	reserved := entry.material.Reserved
	entry.mu.Unlock()
	if reserved > 0 {
		return fmt.Errorf("material %s has %d units reserved: %w", id, reserved, entities.ErrMaterialInUse)
	}
	for _, p := range s.products {
		if p.References(entities.KindMaterial, string(id)) {
			return fmt.Errorf("material %s is used by product %s: %w", id, p.ID, entities.ErrMaterialInUse)
		}
	}

	delete(s.materials, id)
	return nil
}

// GetMaterial returns a copy of the material's current state
func (s *Store) GetMaterial(ctx context.Context, id entities.MaterialID) (*entities.Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.materials[id]
	if !exists {
		return nil, fmt.Errorf("material %s: %w", id, entities.ErrMaterialNotFound)
	}
	entry.mu.Lock()
	m := entry.material
	entry.mu.Unlock()
	return &m, nil
}

// ListMaterials returns every material sorted by id
func (s *Store) ListMaterials(ctx context.Context) ([]*entities.Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]entities.MaterialID, 0, len(s.materials))
	for id := range s.materials {
		ids = append(ids, id)
	}
	entities.SortMaterialIDs(ids)

	materials := make([]*entities.Material, 0, len(ids))
	for _, id := range ids {
		entry := s.materials[id]
		entry.mu.Lock()
		m := entry.material
		entry.mu.Unlock()
		materials = append(materials, &m)
	}
	return materials, nil
}
