package repositories

import (
	"context"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// LedgerTx is the view of the ledger inside one atomic unit of work.
// Only the materials named when the unit was opened are reachable.
type LedgerTx interface {
	// Material returns the staged, mutable copy of a locked material
	Material(id entities.MaterialID) (*entities.Material, error)
	// Reservation returns the recorded reservation of an order, or nil
	Reservation(orderID string) (*entities.Reservation, error)
	PutReservation(reservation *entities.Reservation) error
	DeleteReservation(orderID string) error
}

// LedgerStore holds on-hand and reserved quantities plus the reservation ledger.
//
// Update locks the given materials in ascending id order, runs fn against
// staged copies, and applies every change only when fn returns nil.
// Snapshot reads the given materials under the same locks so the values are
// mutually consistent.
type LedgerStore interface {
	Snapshot(ctx context.Context, ids []entities.MaterialID) (map[entities.MaterialID]entities.Material, error)
	Update(ctx context.Context, ids []entities.MaterialID, fn func(tx LedgerTx) error) error
	// GetReservation returns nil without error when the order holds none
	GetReservation(ctx context.Context, orderID string) (*entities.Reservation, error)
	ListReservations(ctx context.Context) ([]*entities.Reservation, error)
}

// Store bundles every repository an engine needs
type Store interface {
	MaterialRepository
	ProductRepository
	OrderRepository
	OrderLocker
	LedgerStore
}
