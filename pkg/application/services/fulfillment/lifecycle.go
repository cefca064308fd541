package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/events"
)

// Transition moves an order to target, running the stock side effect the
// lifecycle attaches to that edge:
//
//	Queued     -> Reserved   reserve every required material, or fail on shortage
//	InProgress -> Shipped    commit the reservation (on-hand decremented once, here)
//	*          -> Cancelled  release the reservation if one is held
//
// Transitions of one order are serialized across every engine sharing the
// store. If the new status cannot be persisted the side effect is undone
// before the error is returned.
func (e *Engine) Transition(ctx context.Context, orderID string, target entities.OrderStatus) (*dto.OrderSnapshot, error) {
	unlock, err := e.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !from.CanTransitionTo(target) {
		return nil, &entities.IllegalTransitionError{OrderID: orderID, From: from, To: target}
	}

	var (
		moved     *entities.Reservation
		moveEvent string
		undo      func(context.Context) error
	)

	switch target {
	case entities.StatusReserved:
		moved, err = e.allocator.ReserveForOrder(ctx, order)
		if err != nil {
			var shortageErr *entities.ShortageError
			if errors.As(err, &shortageErr) {
				e.logger.Warn("order cannot be reserved",
					zap.String("order_id", orderID),
					zap.Int("short_materials", len(shortageErr.Lines)))
				e.publish(events.NewShortageIdentifiedEvent(orderID, shortageErr.Lines))
			}
			return nil, err
		}
		moveEvent = events.StockReservedEvent
		undo = func(ctx context.Context) error {
			_, err := e.allocator.ReleaseForOrder(ctx, orderID)
			return err
		}

	case entities.StatusShipped:
		moved, err = e.allocator.CommitForOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if moved == nil {
			e.logger.Warn("order shipped without a reservation", zap.String("order_id", orderID))
		} else {
			moveEvent = events.StockCommittedEvent
			committed := moved
			undo = func(ctx context.Context) error {
				return e.allocator.Restore(ctx, committed, true)
			}
		}

	case entities.StatusCancelled:
		moved, err = e.allocator.ReleaseForOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if moved != nil {
			moveEvent = events.StockReleasedEvent
			released := moved
			undo = func(ctx context.Context) error {
				return e.allocator.Restore(ctx, released, false)
			}
		}
	}

	previousUpdate := order.UpdatedAt
	order.Status = target
	order.UpdatedAt = e.now()
	if err := e.store.UpdateOrderStatus(ctx, order, from); err != nil {
		order.Status = from
		order.UpdatedAt = previousUpdate
		if undo != nil {
			// Compensation runs even when ctx is already done
			if undoErr := undo(context.WithoutCancel(ctx)); undoErr != nil {
				e.logger.Error("failed to compensate transition",
					zap.String("order_id", orderID),
					zap.String("from", string(from)),
					zap.String("to", string(target)),
					zap.Error(undoErr))
				return nil, fmt.Errorf("failed to save order %s: %w (compensation failed: %v)", orderID, err, undoErr)
			}
		}
		return nil, fmt.Errorf("failed to save order %s: %w", orderID, err)
	}

	e.logger.Info("order transitioned",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(target)))

	if moved != nil && moveEvent != "" {
		e.publish(events.NewStockMovedEvent(moveEvent, moved))
	}
	e.publish(events.NewOrderTransitionedEvent(orderID, from, target))
	if moveEvent == events.StockCommittedEvent {
		e.publishLowStock(ctx, moved.MaterialIDs())
	}

	var held *entities.Reservation
	if target.HoldsReservation() {
		held = moved
	}
	snap := dto.NewOrderSnapshot(order, held)
	return &snap, nil
}

// AttachTracking records the carrier tracking number of a shipped order
func (e *Engine) AttachTracking(ctx context.Context, orderID, trackingNumber string) (*dto.OrderSnapshot, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("tracking number cannot be empty")
	}

	unlock, err := e.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entities.StatusShipped && order.Status != entities.StatusFulfilled {
		return nil, fmt.Errorf("cannot attach tracking to order %s in status %s", orderID, order.Status)
	}

	order.TrackingNumber = trackingNumber
	order.UpdatedAt = e.now()
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order %s: %w", orderID, err)
	}

	snap := dto.NewOrderSnapshot(order, nil)
	return &snap, nil
}

// Reconcile releases reservations whose order no longer holds stock, which
// can only happen when a process died between reserving and saving the status.
func (e *Engine) Reconcile(ctx context.Context) (*dto.ReconcileResult, error) {
	reservations, err := e.store.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	result := &dto.ReconcileResult{Released: make([]dto.ReleasedReservation, 0)}
	for _, r := range reservations {
		released, status, err := e.reconcileOne(ctx, r.OrderID)
		if err != nil {
			return result, err
		}
		if released != nil {
			result.Released = append(result.Released, dto.ReleasedReservation{
				OrderID: released.OrderID,
				Status:  status,
				Units:   released.Units,
			})
		}
	}
	return result, nil
}

func (e *Engine) reconcileOne(ctx context.Context, orderID string) (*entities.Reservation, entities.OrderStatus, error) {
	unlock, err := e.lockOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	defer unlock()

	var status entities.OrderStatus
	order, err := e.store.GetOrder(ctx, orderID)
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
	case err != nil:
		return nil, "", err
	default:
		status = order.Status
		if status.HoldsReservation() {
			return nil, status, nil
		}
	}

	released, err := e.allocator.ReleaseForOrder(ctx, orderID)
	if err != nil {
		return nil, status, fmt.Errorf("failed to release orphaned reservation of order %s: %w", orderID, err)
	}
	if released != nil {
		e.logger.Warn("released orphaned reservation",
			zap.String("order_id", orderID),
			zap.String("status", string(status)))
		e.publish(events.NewStockMovedEvent(events.StockReleasedEvent, released))
	}
	return released, status, nil
}
