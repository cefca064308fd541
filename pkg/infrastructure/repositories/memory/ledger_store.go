package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// lockMaterials resolves and locks the entries for ids in ascending order.
// The caller must hold s.mu (read) and must call the returned unlock.
func (s *Store) lockMaterials(ids []entities.MaterialID) ([]entities.MaterialID, map[entities.MaterialID]*materialEntry, func(), error) {
	sorted := make([]entities.MaterialID, 0, len(ids))
	seen := make(map[entities.MaterialID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	entities.SortMaterialIDs(sorted)

	entries := make(map[entities.MaterialID]*materialEntry, len(sorted))
	for _, id := range sorted {
		entry, exists := s.materials[id]
		if !exists {
			return nil, nil, nil, fmt.Errorf("material %s: %w", id, entities.ErrMaterialNotFound)
		}
		entries[id] = entry
	}

	for _, id := range sorted {
		entries[id].mu.Lock()
	}
	unlock := func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			entries[sorted[i]].mu.Unlock()
		}
	}
	return sorted, entries, unlock, nil
}

// Snapshot reads the given materials under their locks
func (s *Store) Snapshot(ctx context.Context, ids []entities.MaterialID) (map[entities.MaterialID]entities.Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted, entries, unlock, err := s.lockMaterials(ids)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snapshot := make(map[entities.MaterialID]entities.Material, len(sorted))
	for _, id := range sorted {
		snapshot[id] = entries[id].material
	}
	return snapshot, nil
}

// Update runs fn against staged copies of the locked materials and applies
// the result only when fn succeeds and every material still satisfies
// 0 <= reserved <= on-hand.
func (s *Store) Update(ctx context.Context, ids []entities.MaterialID, fn func(tx repositories.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted, entries, unlock, err := s.lockMaterials(ids)
	if err != nil {
		return err
	}
	defer unlock()

	tx := &ledgerTx{
		store:        s,
		staged:       make(map[entities.MaterialID]*entities.Material, len(sorted)),
		reservations: make(map[string]*entities.Reservation),
	}
	for _, id := range sorted {
		m := entries[id].material
		tx.staged[id] = &m
	}

	if err := fn(tx); err != nil {
		return err
	}

	for _, id := range sorted {
		if err := tx.staged[id].CheckInvariant(); err != nil {
			return err
		}
	}

	now := s.now()
	for _, id := range sorted {
		staged := *tx.staged[id]
		if staged.OnHand != entries[id].material.OnHand || staged.Reserved != entries[id].material.Reserved {
			staged.UpdatedAt = now
		}
		entries[id].material = staged
	}

	s.resMu.Lock()
	for orderID, r := range tx.reservations {
		if r == nil || len(r.Units) == 0 {
			delete(s.reservations, orderID)
		} else {
			s.reservations[orderID] = r
		}
	}
	s.resMu.Unlock()
	return nil
}

// GetReservation returns the order's reservation or nil when it holds none
func (s *Store) GetReservation(ctx context.Context, orderID string) (*entities.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.resMu.Lock()
	defer s.resMu.Unlock()
	return copyReservation(s.reservations[orderID]), nil
}

// ListReservations returns every reservation sorted by order id
func (s *Store) ListReservations(ctx context.Context) ([]*entities.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.resMu.Lock()
	defer s.resMu.Unlock()

	reservations := make([]*entities.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		reservations = append(reservations, copyReservation(r))
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].OrderID < reservations[j].OrderID })
	return reservations, nil
}

// ledgerTx stages material and reservation changes for one Update call
type ledgerTx struct {
	store  *Store
	staged map[entities.MaterialID]*entities.Material
	// nil value marks a deletion
	reservations map[string]*entities.Reservation
}

func (tx *ledgerTx) Material(id entities.MaterialID) (*entities.Material, error) {
	m, ok := tx.staged[id]
	if !ok {
		return nil, fmt.Errorf("material %s is not locked in this update", id)
	}
	return m, nil
}

func (tx *ledgerTx) Reservation(orderID string) (*entities.Reservation, error) {
	if r, touched := tx.reservations[orderID]; touched {
		return copyReservation(r), nil
	}
	tx.store.resMu.Lock()
	defer tx.store.resMu.Unlock()
	return copyReservation(tx.store.reservations[orderID]), nil
}

func (tx *ledgerTx) PutReservation(reservation *entities.Reservation) error {
	for id := range reservation.Units {
		if _, ok := tx.staged[id]; !ok {
			return fmt.Errorf("reservation for order %s names unlocked material %s", reservation.OrderID, id)
		}
	}
	tx.reservations[reservation.OrderID] = copyReservation(reservation)
	return nil
}

func (tx *ledgerTx) DeleteReservation(orderID string) error {
	tx.reservations[orderID] = nil
	return nil
}
