package entities

import (
	"fmt"
	"time"
)

// Material represents a raw material and its ledger position.
// OnHand and Reserved are owned by the ledger; every mutation goes through
// the methods below so that 0 <= Reserved <= OnHand always holds.
type Material struct {
	ID               MaterialID `json:"id"`
	Name             string     `json:"name"`
	ColorTag         string     `json:"color_tag"`
	OnHand           Quantity   `json:"on_hand"`
	Reserved         Quantity   `json:"reserved"`
	UnitLabel        string     `json:"unit_label"`
	ReorderThreshold Quantity   `json:"reorder_threshold"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewMaterial creates a validated Material with nothing reserved
func NewMaterial(id MaterialID, name, colorTag string, onHand Quantity, unitLabel string, reorderThreshold Quantity) (*Material, error) {
	if string(id) == "" {
		return nil, fmt.Errorf("material id cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("material name cannot be empty")
	}
	if onHand < 0 {
		return nil, fmt.Errorf("on-hand quantity cannot be negative, got %d", onHand)
	}
	if reorderThreshold < 0 {
		return nil, fmt.Errorf("reorder threshold cannot be negative, got %d", reorderThreshold)
	}

	return &Material{
		ID:               id,
		Name:             name,
		ColorTag:         colorTag,
		OnHand:           onHand,
		UnitLabel:        unitLabel,
		ReorderThreshold: reorderThreshold,
	}, nil
}

// Available is the quantity eligible for new reservations
func (m *Material) Available() Quantity {
	return m.OnHand - m.Reserved
}

// BelowReorderThreshold reports whether available stock has fallen under the threshold
func (m *Material) BelowReorderThreshold() bool {
	return m.ReorderThreshold > 0 && m.Available() < m.ReorderThreshold
}

// AdjustOnHand applies a manual stock correction (receiving, audit)
func (m *Material) AdjustOnHand(delta Quantity) error {
	if _, err := AddQuantity(m.OnHand, delta); err != nil {
		return fmt.Errorf("adjust %s: %w", m.ID, err)
	}
	if m.OnHand+delta < m.Reserved {
		return &NegativeStockError{MaterialID: m.ID, OnHand: m.OnHand, Reserved: m.Reserved, Delta: delta}
	}
	m.OnHand += delta
	return nil
}

// Reserve claims units of available stock
func (m *Material) Reserve(units Quantity) error {
	if units <= 0 {
		return fmt.Errorf("reserve %s: %w", m.ID, ErrInvalidQuantity)
	}
	if units > m.Available() {
		return &InsufficientStockError{MaterialID: m.ID, Requested: units, Available: m.Available()}
	}
	m.Reserved += units
	return nil
}

// Release returns previously reserved units to available stock
func (m *Material) Release(units Quantity) error {
	if units <= 0 {
		return fmt.Errorf("release %s: %w", m.ID, ErrInvalidQuantity)
	}
	if units > m.Reserved {
		return &InvalidReleaseError{MaterialID: m.ID, Units: units, Reserved: m.Reserved}
	}
	m.Reserved -= units
	return nil
}

// Commit consumes reserved units, decrementing both on-hand and reserved
func (m *Material) Commit(units Quantity) error {
	if units <= 0 {
		return fmt.Errorf("commit %s: %w", m.ID, ErrInvalidQuantity)
	}
	if units > m.Reserved {
		return &InvalidCommitError{MaterialID: m.ID, Units: units, Reserved: m.Reserved}
	}
	m.OnHand -= units
	m.Reserved -= units
	return nil
}

// CheckInvariant verifies 0 <= Reserved <= OnHand
func (m *Material) CheckInvariant() error {
	if m.Reserved < 0 || m.Reserved > m.OnHand {
		return fmt.Errorf("ledger invariant violated for material %s: on-hand %d, reserved %d", m.ID, m.OnHand, m.Reserved)
	}
	return nil
}
