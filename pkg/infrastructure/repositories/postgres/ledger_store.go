package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

func sortedUnique(ids []entities.MaterialID) []entities.MaterialID {
	sorted := make([]entities.MaterialID, 0, len(ids))
	seen := make(map[entities.MaterialID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	entities.SortMaterialIDs(sorted)
	return sorted
}

func idStrings(ids []entities.MaterialID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// lockRows selects the material rows with the given lock strength, ordered by
// id so that every transaction acquires row locks in the same order
func lockRows(tx *gorm.DB, ids []entities.MaterialID, strength string) (map[entities.MaterialID]materialRow, error) {
	var rows []materialRow
	err := tx.Clauses(clause.Locking{Strength: strength}).
		Where("material_id IN ?", idStrings(ids)).
		Order("material_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[entities.MaterialID]materialRow, len(rows))
	for _, row := range rows {
		byID[entities.MaterialID(row.ID)] = row
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("material %s: %w", id, entities.ErrMaterialNotFound)
		}
	}
	return byID, nil
}

// Snapshot reads the given materials under shared row locks
func (s *Store) Snapshot(ctx context.Context, ids []entities.MaterialID) (map[entities.MaterialID]entities.Material, error) {
	sorted := sortedUnique(ids)
	snapshot := make(map[entities.MaterialID]entities.Material, len(sorted))
	if len(sorted) == 0 {
		return snapshot, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := lockRows(tx, sorted, "SHARE")
		if err != nil {
			return err
		}
		for id, row := range rows {
			snapshot[id] = *row.toEntity()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Update runs fn against staged copies of the locked rows inside one database
// transaction; the transaction rolls back when fn fails or a staged material
// breaks 0 <= reserved <= on-hand
func (s *Store) Update(ctx context.Context, ids []entities.MaterialID, fn func(tx repositories.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sorted := sortedUnique(ids)

	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		rows, err := lockRows(db, sorted, "UPDATE")
		if err != nil {
			return err
		}

		ltx := &ledgerTx{
			db:           db,
			staged:       make(map[entities.MaterialID]*entities.Material, len(sorted)),
			reservations: make(map[string]*entities.Reservation),
		}
		for _, id := range sorted {
			ltx.staged[id] = rows[id].toEntity()
		}

		if err := fn(ltx); err != nil {
			return err
		}
		for _, id := range sorted {
			if err := ltx.staged[id].CheckInvariant(); err != nil {
				return err
			}
		}

		now := s.now()
		for _, id := range sorted {
			staged, original := ltx.staged[id], rows[id]
			if int64(staged.OnHand) == original.OnHand && int64(staged.Reserved) == original.Reserved {
				continue
			}
			err := db.Model(&materialRow{}).
				Where("material_id = ?", string(id)).
				Updates(map[string]any{
					"on_hand":    int64(staged.OnHand),
					"reserved":   int64(staged.Reserved),
					"updated_at": now,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to update material %s: %w", id, err)
			}
		}

		for orderID, r := range ltx.reservations {
			if err := db.Delete(&reservationRow{}, "order_id = ?", orderID).Error; err != nil {
				return fmt.Errorf("failed to clear reservation for order %s: %w", orderID, err)
			}
			if r == nil || len(r.Units) == 0 {
				continue
			}
			resRows := make([]reservationRow, 0, len(r.Units))
			for _, id := range r.MaterialIDs() {
				resRows = append(resRows, reservationRow{
					OrderID:    orderID,
					MaterialID: string(id),
					Units:      int64(r.Units[id]),
					CreatedAt:  r.CreatedAt,
				})
			}
			if err := db.Create(&resRows).Error; err != nil {
				return fmt.Errorf("failed to record reservation for order %s: %w", orderID, err)
			}
		}
		return nil
	})
}

// GetReservation returns the order's reservation or nil when it holds none
func (s *Store) GetReservation(ctx context.Context, orderID string) (*entities.Reservation, error) {
	return loadReservation(s.db.WithContext(ctx), orderID)
}

func loadReservation(db *gorm.DB, orderID string) (*entities.Reservation, error) {
	var rows []reservationRow
	if err := db.Where("order_id = ?", orderID).Order("material_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reservation for order %s: %w", orderID, err)
	}
	reservations := reservationsFromRows(rows)
	if len(reservations) == 0 {
		return nil, nil
	}
	return reservations[0], nil
}

// ListReservations returns every reservation sorted by order id
func (s *Store) ListReservations(ctx context.Context) ([]*entities.Reservation, error) {
	var rows []reservationRow
	if err := s.db.WithContext(ctx).Order("order_id, material_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservationsFromRows(rows), nil
}

// ledgerTx stages material and reservation changes for one Update call
type ledgerTx struct {
	db     *gorm.DB
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
	return loadReservation(tx.db, orderID)
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

func copyReservation(r *entities.Reservation) *entities.Reservation {
	if r == nil {
		return nil
	}
	units := make(map[entities.MaterialID]entities.Quantity, len(r.Units))
	for id, q := range r.Units {
		units[id] = q
	}
	return &entities.Reservation{OrderID: r.OrderID, Units: units, CreatedAt: r.CreatedAt}
}
