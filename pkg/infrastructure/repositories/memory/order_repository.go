package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// CreateOrder stores a new order
func (s *Store) CreateOrder(ctx context.Context, order *entities.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s: %w", order.ID, entities.ErrDuplicateID)
	}
	s.orders[order.ID] = copyOrder(order)
	return nil
}

// UpdateOrder persists the descriptive fields of an order still in order.Status
func (s *Store) UpdateOrder(ctx context.Context, order *entities.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.currentOrder(order.ID, order.Status)
	if err != nil {
		return err
	}
	updated := copyOrder(existing)
	updated.Customer = order.Customer
	updated.Email = order.Email
	updated.ShippingAddress = order.ShippingAddress
	updated.TrackingNumber = order.TrackingNumber
	updated.UpdatedAt = order.UpdatedAt
	updated.ExpectedDelivery = nil
	if order.ExpectedDelivery != nil {
		t := *order.ExpectedDelivery
		updated.ExpectedDelivery = &t
	}
	s.orders[order.ID] = updated
	return nil
}

// UpdateOrderStatus moves an order from from to order.Status
func (s *Store) UpdateOrderStatus(ctx context.Context, order *entities.Order, from entities.OrderStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.currentOrder(order.ID, from)
	if err != nil {
		return err
	}
	updated := copyOrder(existing)
	updated.Status = order.Status
	updated.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = updated
	return nil
}

// DeleteOrder removes an order that holds no reservation
func (s *Store) DeleteOrder(ctx context.Context, order *entities.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.currentOrder(order.ID, order.Status); err != nil {
		return err
	}

	s.resMu.Lock()
	_, reserved := s.reservations[order.ID]
	s.resMu.Unlock()
	if reserved {
		return fmt.Errorf("order %s still holds a reservation: %w", order.ID, entities.ErrOrderActive)
	}

	delete(s.orders, order.ID)
	return nil
}

// currentOrder returns the stored order if it is still in status; s.mu must be held
func (s *Store) currentOrder(id string, status entities.OrderStatus) (*entities.Order, error) {
	existing, exists := s.orders[id]
	if !exists {
		return nil, fmt.Errorf("order %s: %w", id, entities.ErrOrderNotFound)
	}
	if existing.Status != status {
		return nil, &entities.OrderConflictError{OrderID: id, Expected: status}
	}
	return existing, nil
}

// GetOrder returns a copy of the order
func (s *Store) GetOrder(ctx context.Context, id string) (*entities.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	if !exists {
		return nil, fmt.Errorf("order %s: %w", id, entities.ErrOrderNotFound)
	}
	return copyOrder(o), nil
}

// ListOrders returns every order, oldest first
func (s *Store) ListOrders(ctx context.Context) ([]*entities.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]*entities.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// LockOrder serializes work on one order across engines sharing this store
func (s *Store) LockOrder(ctx context.Context, orderID string) (func(), error) {
	s.lockMu.Lock()
	l, ok := s.orderLocks[orderID]
	if !ok {
		l = &orderLock{slot: make(chan struct{}, 1)}
		s.orderLocks[orderID] = l
	}
	l.refs++
	s.lockMu.Unlock()

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		s.dropOrderLock(orderID, l)
		return nil, ctx.Err()
	}
	return func() {
		<-l.slot
		s.dropOrderLock(orderID, l)
	}, nil
}

func (s *Store) dropOrderLock(orderID string, l *orderLock) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.orderLocks, orderID)
	}
}
