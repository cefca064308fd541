package repositories

import (
	"context"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// OrderRepository provides access to orders.
//
// Writes are conditional on the stored status: UpdateOrder and DeleteOrder
// expect order.Status to still be current, UpdateOrderStatus expects from.
// A mismatch fails with *entities.OrderConflictError and changes nothing.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *entities.Order) error
	// UpdateOrder persists contact details, expected delivery, tracking number
	// and updated time. Status and lines are never written here.
	UpdateOrder(ctx context.Context, order *entities.Order) error
	// UpdateOrderStatus moves the stored order from from to order.Status
	UpdateOrderStatus(ctx context.Context, order *entities.Order, from entities.OrderStatus) error
	// DeleteOrder removes the order and its lines; fails with ErrOrderActive
	// while a reservation is still recorded for it
	DeleteOrder(ctx context.Context, order *entities.Order) error
	GetOrder(ctx context.Context, id string) (*entities.Order, error)
	ListOrders(ctx context.Context) ([]*entities.Order, error)
}

// OrderLocker serializes work on one order across every engine sharing the store
type OrderLocker interface {
	// LockOrder blocks until the order is free or ctx is done
	LockOrder(ctx context.Context, orderID string) (unlock func(), err error)
}
