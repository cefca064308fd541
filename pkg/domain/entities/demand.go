package entities

import (
	"fmt"
	"sort"
	"time"
)

// Requirements maps each leaf material to the units needed of it
type Requirements map[MaterialID]Quantity

// Add accumulates units for a material
func (r Requirements) Add(id MaterialID, units Quantity) error {
	sum, err := AddQuantity(r[id], units)
	if err != nil {
		return fmt.Errorf("material %s: %w", id, err)
	}
	r[id] = sum
	return nil
}

// Merge accumulates every entry of other into r. On overflow r is left unchanged.
func (r Requirements) Merge(other Requirements) error {
	sums := make(Requirements, len(other))
	for id, units := range other {
		sum, err := AddQuantity(r[id], units)
		if err != nil {
			return fmt.Errorf("material %s: %w", id, err)
		}
		sums[id] = sum
	}
	for id, sum := range sums {
		r[id] = sum
	}
	return nil
}

// MaterialIDs returns the material ids in ascending order, the fixed lock order
func (r Requirements) MaterialIDs() []MaterialID {
	ids := make([]MaterialID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	SortMaterialIDs(ids)
	return ids
}

// SortMaterialIDs sorts ids ascending in place
func SortMaterialIDs(ids []MaterialID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// ShortageLine represents the deficit of one material against an order's needs
type ShortageLine struct {
	MaterialID   MaterialID `json:"material_id"`
	MaterialName string     `json:"material_name"`
	Needed       Quantity   `json:"needed"`
	Available    Quantity   `json:"available"`
	Short        Quantity   `json:"short"`
}

// Reservation records the units an order has claimed from each material
type Reservation struct {
	OrderID   string                  `json:"order_id"`
	Units     map[MaterialID]Quantity `json:"units"`
	CreatedAt time.Time               `json:"created_at"`
}

// MaterialIDs returns the reserved material ids in lock order
func (r *Reservation) MaterialIDs() []MaterialID {
	return Requirements(r.Units).MaterialIDs()
}

// TotalUnits sums every reserved unit in the reservation
func (r *Reservation) TotalUnits() Quantity {
	var total Quantity
	for _, units := range r.Units {
		total += units
	}
	return total
}
