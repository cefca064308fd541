// Package allocation turns an order's flattened requirements into ledger
// reservations. It lives under internal/ so that only the order lifecycle can
// move stock on an order's behalf.
package allocation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/services/bom"
	"github.com/vsinha/fulfillment/pkg/application/services/ledger"
	"github.com/vsinha/fulfillment/pkg/application/services/shortage"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// Manager reserves, releases and commits the stock held by orders
type Manager struct {
	resolver *bom.Resolver
	store    repositories.LedgerStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates an allocation manager
func NewManager(resolver *bom.Resolver, store repositories.LedgerStore, logger *zap.Logger, now func() time.Time) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{resolver: resolver, store: store, logger: logger.Named("allocation"), now: now}
}

// ReserveForOrder reserves every material the order needs, or nothing.
// The shortage check runs against the values read under the material locks.
// An order that already holds a reservation gets it back unchanged.
func (m *Manager) ReserveForOrder(ctx context.Context, order *entities.Order) (*entities.Reservation, error) {
	existing, err := m.store.GetReservation(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reservation of order %s: %w", order.ID, err)
	}
	if existing != nil {
		return existing, nil
	}

	reqs, err := m.resolver.FlattenLines(ctx, order.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve order %s: %w", order.ID, err)
	}

	var reserved *entities.Reservation
	err = m.store.Update(ctx, reqs.MaterialIDs(), func(tx repositories.LedgerTx) error {
		current, err := tx.Reservation(order.ID)
		if err != nil {
			return err
		}
		if current != nil {
			reserved = current
			return nil
		}

		live := make(map[entities.MaterialID]entities.Material, len(reqs))
		for _, id := range reqs.MaterialIDs() {
			material, err := tx.Material(id)
			if err != nil {
				return err
			}
			live[id] = *material
		}
		if lines := shortage.Compute(reqs, live); len(lines) > 0 {
			return &entities.ShortageError{OrderID: order.ID, Lines: lines}
		}

		if err := ledger.ApplyReserve(tx, reqs); err != nil {
			return err
		}

		units := make(map[entities.MaterialID]entities.Quantity, len(reqs))
		for id, q := range reqs {
			units[id] = q
		}
		reserved = &entities.Reservation{OrderID: order.ID, Units: units, CreatedAt: m.now()}
		return tx.PutReservation(reserved)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("order reserved",
		zap.String("order_id", order.ID),
		zap.Int("materials", len(reserved.Units)),
		zap.Int64("units", int64(reserved.TotalUnits())))
	return reserved, nil
}

// ReleaseForOrder returns the order's reserved units to available stock and
// drops the reservation. Returns nil without error when there is none.
func (m *Manager) ReleaseForOrder(ctx context.Context, orderID string) (*entities.Reservation, error) {
	released, err := m.settle(ctx, orderID, ledger.ApplyRelease)
	if err != nil || released == nil {
		return released, err
	}
	m.logger.Info("order reservation released",
		zap.String("order_id", orderID),
		zap.Int64("units", int64(released.TotalUnits())))
	return released, nil
}

// CommitForOrder turns the order's reservation into a permanent decrement.
// Returns nil without error when there is none.
func (m *Manager) CommitForOrder(ctx context.Context, orderID string) (*entities.Reservation, error) {
	committed, err := m.settle(ctx, orderID, ledger.ApplyCommit)
	if err != nil || committed == nil {
		return committed, err
	}
	m.logger.Info("order reservation committed",
		zap.String("order_id", orderID),
		zap.Int64("units", int64(committed.TotalUnits())))
	return committed, nil
}

func (m *Manager) settle(
	ctx context.Context,
	orderID string,
	apply func(repositories.LedgerTx, map[entities.MaterialID]entities.Quantity) error,
) (*entities.Reservation, error) {
	recorded, err := m.store.GetReservation(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reservation of order %s: %w", orderID, err)
	}
	if recorded == nil {
		return nil, nil
	}

	var settled *entities.Reservation
	err = m.store.Update(ctx, recorded.MaterialIDs(), func(tx repositories.LedgerTx) error {
		current, err := tx.Reservation(orderID)
		if err != nil || current == nil {
			return err
		}
		if err := apply(tx, current.Units); err != nil {
			return err
		}
		settled = current
		return tx.DeleteReservation(orderID)
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// Restore puts a settled reservation back: released units are re-reserved
// and committed units are returned to on-hand before being re-reserved.
// Used to undo a side effect whose status change could not be persisted.
func (m *Manager) Restore(ctx context.Context, reservation *entities.Reservation, committed bool) error {
	err := m.store.Update(ctx, reservation.MaterialIDs(), func(tx repositories.LedgerTx) error {
		if committed {
			for _, id := range reservation.MaterialIDs() {
				material, err := tx.Material(id)
				if err != nil {
					return err
				}
				if err := material.AdjustOnHand(reservation.Units[id]); err != nil {
					return err
				}
			}
		}
		if err := ledger.ApplyReserve(tx, reservation.Units); err != nil {
			return err
		}
		return tx.PutReservation(reservation)
	})
	if err != nil {
		m.logger.Error("failed to restore reservation",
			zap.String("order_id", reservation.OrderID),
			zap.Bool("committed", committed),
			zap.Error(err))
		return err
	}
	return nil
}
