package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/events"
)

// GetShortages reports what the draft would be short of right now
func (e *Engine) GetShortages(ctx context.Context, draft entities.OrderDraft) ([]entities.ShortageLine, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return e.calculator.ShortagesForLines(ctx, draft.Lines)
}

// SubmitOrder accepts a draft into the queue as a Queued order. Stock is not
// reserved until the order transitions to Reserved. A draft that is short is
// refused with a ShortageError unless it is flagged as a backorder, in which
// case it is queued and the result carries the shortages.
func (e *Engine) SubmitOrder(ctx context.Context, draft entities.OrderDraft) (*dto.SubmitResult, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	shortages, err := e.calculator.ShortagesForLines(ctx, draft.Lines)
	if err != nil {
		return nil, err
	}

	id := draft.ID
	if id == "" {
		id = e.newID()
	}

	if len(shortages) > 0 {
		e.logger.Warn("order draft is short",
			zap.String("order_id", draft.ID),
			zap.Bool("backorder", draft.Backorder),
			zap.Int("short_materials", len(shortages)))
		if !draft.Backorder {
			return nil, &entities.ShortageError{OrderID: draft.ID, Lines: shortages}
		}
	}

	order, err := entities.NewOrder(id, draft, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order %s: %w", id, err)
	}

	e.logger.Info("order submitted",
		zap.String("order_id", id),
		zap.String("customer", order.Customer),
		zap.String("total", order.Total().StringFixed(2)))
	e.publish(events.NewOrderSubmittedEvent(*order, shortages))
	if len(shortages) > 0 {
		e.publish(events.NewShortageIdentifiedEvent(id, shortages))
	}

	return &dto.SubmitResult{
		Order:      dto.NewOrderSnapshot(order, nil),
		CanFulfill: len(shortages) == 0,
		Shortages:  shortages,
	}, nil
}

// GetOrderShortages re-checks a stored order against current stock. Only a
// Queued order can be short; later statuses hold or consumed their stock.
func (e *Engine) GetOrderShortages(ctx context.Context, orderID string) ([]entities.ShortageLine, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entities.StatusQueued {
		return []entities.ShortageLine{}, nil
	}

	shortages, err := e.calculator.ShortagesForLines(ctx, order.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to check order %s: %w", orderID, err)
	}
	return shortages, nil
}

// UpdateOrderInfo edits the contact details and expected delivery of an order
// that has not shipped yet
func (e *Engine) UpdateOrderInfo(ctx context.Context, orderID string, info entities.OrderInfo) (*dto.OrderSnapshot, error) {
	if err := info.Validate(); err != nil {
		return nil, err
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
	if !order.Status.Editable() {
		return nil, fmt.Errorf("cannot edit order %s in status %s", orderID, order.Status)
	}

	order.ApplyInfo(info)
	order.UpdatedAt = e.now()
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order %s: %w", orderID, err)
	}

	var held *entities.Reservation
	if order.Status.HoldsReservation() {
		if held, err = e.store.GetReservation(ctx, orderID); err != nil {
			return nil, err
		}
	}

	e.logger.Info("order updated", zap.String("order_id", orderID))
	e.publish(events.NewOrderUpdatedEvent(orderID, order.Info()))

	snap := dto.NewOrderSnapshot(order, held)
	return &snap, nil
}

// DeleteOrder removes a Queued, Fulfilled or Cancelled order. Orders that
// hold stock or are on their way to the customer must be cancelled or
// fulfilled first. A reservation left behind by a crash is released.
func (e *Engine) DeleteOrder(ctx context.Context, orderID string) error {
	unlock, err := e.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.Deletable() {
		return fmt.Errorf("cannot delete order %s in status %s: %w", orderID, order.Status, entities.ErrOrderActive)
	}

	released, err := e.allocator.ReleaseForOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to release reservation of order %s: %w", orderID, err)
	}
	if released != nil {
		e.logger.Warn("released stray reservation of deleted order", zap.String("order_id", orderID))
		e.publish(events.NewStockMovedEvent(events.StockReleasedEvent, released))
	}

	if err := e.store.DeleteOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderID, err)
	}

	e.logger.Info("order deleted",
		zap.String("order_id", orderID),
		zap.String("status", string(order.Status)))
	e.publish(events.NewOrderDeletedEvent(orderID, order.Status))
	return nil
}

// GetOrder returns an order with the units it currently holds
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*dto.OrderSnapshot, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	reservation, err := e.store.GetReservation(ctx, orderID)
	if err != nil {
		return nil, err
	}
	snap := dto.NewOrderSnapshot(order, reservation)
	return &snap, nil
}

// ListOrders returns orders oldest first, optionally filtered by status
func (e *Engine) ListOrders(ctx context.Context, statuses ...entities.OrderStatus) ([]dto.OrderSnapshot, error) {
	orders, err := e.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[entities.OrderStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	snaps := make([]dto.OrderSnapshot, 0, len(orders))
	for _, o := range orders {
		if len(wanted) > 0 && !wanted[o.Status] {
			continue
		}
		var reservation *entities.Reservation
		if o.Status.HoldsReservation() {
			if reservation, err = e.store.GetReservation(ctx, o.ID); err != nil {
				return nil, err
			}
		}
		snaps = append(snaps, dto.NewOrderSnapshot(o, reservation))
	}
	return snaps, nil
}
