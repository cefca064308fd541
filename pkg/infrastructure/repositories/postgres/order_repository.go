package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// CreateOrder inserts an order and its lines
func (s *Store) CreateOrder(ctx context.Context, order *entities.Order) error {
	row, lines := orderFromEntity(order)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
	return mapError(err, "order "+order.ID, entities.ErrDuplicateID)
}

// UpdateOrder persists the descriptive fields of an order still in order.Status
func (s *Store) UpdateOrder(ctx context.Context, order *entities.Order) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&orderRow{}).
		Where("order_id = ? AND status = ?", order.ID, string(order.Status)).
		Updates(map[string]any{
			"customer":          order.Customer,
			"email":             order.Email,
			"shipping_address":  order.ShippingAddress,
			"tracking_number":   order.TrackingNumber,
			"expected_delivery": order.ExpectedDelivery,
			"updated_at":        order.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("order %s: %w", order.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return missedOrder(db, order.ID, order.Status)
	}
	return nil
}

// UpdateOrderStatus moves an order from from to order.Status in one conditional update
func (s *Store) UpdateOrderStatus(ctx context.Context, order *entities.Order, from entities.OrderStatus) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&orderRow{}).
		Where("order_id = ? AND status = ?", order.ID, string(from)).
		Updates(map[string]any{
			"status":     string(order.Status),
			"updated_at": order.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("order %s: %w", order.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return missedOrder(db, order.ID, from)
	}
	return nil
}

// DeleteOrder removes an order and its lines once it holds no reservation
func (s *Store) DeleteOrder(ctx context.Context, order *entities.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row orderRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", order.ID).
			First(&row).Error
		if err != nil {
			return notFound(err, "order "+order.ID, entities.ErrOrderNotFound)
		}
		if row.Status != string(order.Status) {
			return &entities.OrderConflictError{OrderID: order.ID, Expected: order.Status}
		}

		var reserved int64
		if err := tx.Model(&reservationRow{}).Where("order_id = ?", order.ID).Count(&reserved).Error; err != nil {
			return fmt.Errorf("failed to check reservation of order %s: %w", order.ID, err)
		}
		if reserved > 0 {
			return fmt.Errorf("order %s still holds a reservation: %w", order.ID, entities.ErrOrderActive)
		}

		if err := tx.Delete(&orderLineRow{}, "order_id = ?", order.ID).Error; err != nil {
			return fmt.Errorf("failed to delete lines of order %s: %w", order.ID, err)
		}
		if err := tx.Delete(&orderRow{}, "order_id = ?", order.ID).Error; err != nil {
			return fmt.Errorf("failed to delete order %s: %w", order.ID, err)
		}
		return nil
	})
}

// LockOrder takes a session advisory lock keyed on the order id. The lock
// lives on a dedicated pooled connection until unlock is called.
func (s *Store) LockOrder(ctx context.Context, orderID string) (func(), error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve connection for order %s: %w", orderID, err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtextextended($1, 0))", orderID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to lock order %s: %w", orderID, err)
	}

	return func() {
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtextextended($1, 0))", orderID); err != nil {
			s.logger.Warn("failed to unlock order", zap.String("order_id", orderID), zap.Error(err))
		}
		_ = conn.Close()
	}, nil
}

// missedOrder explains why a conditional order update touched no row
func missedOrder(db *gorm.DB, id string, expected entities.OrderStatus) error {
	var count int64
	if err := db.Model(&orderRow{}).Where("order_id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("order %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("order %s: %w", id, entities.ErrOrderNotFound)
	}
	return &entities.OrderConflictError{OrderID: id, Expected: expected}
}

// GetOrder retrieves an order with its lines
func (s *Store) GetOrder(ctx context.Context, id string) (*entities.Order, error) {
	db := s.db.WithContext(ctx)

	var row orderRow
	if err := db.Where("order_id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "order "+id, entities.ErrOrderNotFound)
	}
	var lines []orderLineRow
	if err := db.Where("order_id = ?", id).Order("line_no").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load lines for order %s: %w", id, err)
	}
	return row.toEntity(lines)
}

// ListOrders returns every order, oldest first
func (s *Store) ListOrders(ctx context.Context) ([]*entities.Order, error) {
	db := s.db.WithContext(ctx)

	var rows []orderRow
	if err := db.Order("created_at, order_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	var lines []orderLineRow
	if err := db.Order("order_id, line_no").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}

	byOrder := make(map[string][]orderLineRow, len(rows))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}

	orders := make([]*entities.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toEntity(byOrder[row.ID])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
