package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

func TestStore_OrderRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	draft := entities.OrderDraft{
		Customer: "Ada",
		Lines:    []entities.OrderLine{{TargetID: "TEE", Kind: entities.KindProduct, Quantity: 2}},
	}
	order, err := entities.NewOrder("ORD-2", draft, created)
	if err != nil {
		t.Fatalf("Failed to build order: %v", err)
	}
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	if err := store.CreateOrder(ctx, order); !errors.Is(err, entities.ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}

	earlier, _ := entities.NewOrder("ORD-1", draft, created.Add(-time.Hour))
	_ = store.CreateOrder(ctx, earlier)

	order.Status = entities.StatusReserved
	order.UpdatedAt = created.Add(time.Minute)
	order.Lines = nil
	if err := store.UpdateOrderStatus(ctx, order, entities.StatusQueued); err != nil {
		t.Fatalf("Failed to update order status: %v", err)
	}

	order.Customer = "Ada Lovelace"
	order.ShippingAddress = "12 St James's Square"
	if err := store.UpdateOrder(ctx, order); err != nil {
		t.Fatalf("Failed to update order: %v", err)
	}

	got, err := store.GetOrder(ctx, "ORD-2")
	if err != nil {
		t.Fatalf("Failed to get order: %v", err)
	}
	if got.Status != entities.StatusReserved {
		t.Errorf("Expected status Reserved, got %s", got.Status)
	}
	if got.Customer != "Ada Lovelace" || got.ShippingAddress != "12 St James's Square" {
		t.Errorf("Expected edited contact details, got %+v", got)
	}
	if len(got.Lines) != 1 {
		t.Errorf("Expected lines to be immutable after creation, got %d", len(got.Lines))
	}

	orders, _ := store.ListOrders(ctx)
	if len(orders) != 2 || orders[0].ID != "ORD-1" {
		t.Errorf("Expected oldest order first, got %v", orders)
	}

	if err := store.UpdateOrder(ctx, &entities.Order{ID: "MISSING"}); !errors.Is(err, entities.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestStore_OrderWritesAreConditionalOnStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	order, err := entities.NewOrder("ORD-1", entities.OrderDraft{
		Customer: "Ada",
		Lines:    []entities.OrderLine{{TargetID: "TEE", Kind: entities.KindProduct, Quantity: 1}},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.CreateOrder(ctx, order))

	// A writer that read InProgress loses to whoever moved the order first
	stale := *order
	stale.Status = entities.StatusShipped
	err = store.UpdateOrderStatus(ctx, &stale, entities.StatusInProgress)
	var conflict *entities.OrderConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, entities.StatusInProgress, conflict.Expected)

	stale = *order
	stale.Status = entities.StatusShipped
	stale.TrackingNumber = "1Z"
	require.ErrorAs(t, store.UpdateOrder(ctx, &stale), &conflict)

	got, err := store.GetOrder(ctx, "ORD-1")
	require.NoError(t, err)
	require.Equal(t, entities.StatusQueued, got.Status)
	require.Empty(t, got.TrackingNumber)
}

func TestStore_DeleteOrder(t *testing.T) {
	store := seededStore(t, entities.Material{ID: "A", Name: "A", OnHand: 10})
	ctx := context.Background()

	order, err := entities.NewOrder("ORD-1", entities.OrderDraft{
		Customer: "Ada",
		Lines:    []entities.OrderLine{{TargetID: "A", Kind: entities.KindMaterial, Quantity: 2}},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.CreateOrder(ctx, order))

	err = store.Update(ctx, []entities.MaterialID{"A"}, func(tx repositories.LedgerTx) error {
		a, _ := tx.Material("A")
		if err := a.Reserve(2); err != nil {
			return err
		}
		return tx.PutReservation(&entities.Reservation{OrderID: "ORD-1", Units: map[entities.MaterialID]entities.Quantity{"A": 2}})
	})
	require.NoError(t, err)
	require.ErrorIs(t, store.DeleteOrder(ctx, order), entities.ErrOrderActive)

	err = store.Update(ctx, []entities.MaterialID{"A"}, func(tx repositories.LedgerTx) error {
		a, _ := tx.Material("A")
		if err := a.Release(2); err != nil {
			return err
		}
		return tx.DeleteReservation("ORD-1")
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteOrder(ctx, order))
	_, err = store.GetOrder(ctx, "ORD-1")
	require.ErrorIs(t, err, entities.ErrOrderNotFound)
	require.ErrorIs(t, store.DeleteOrder(ctx, order), entities.ErrOrderNotFound)
}

func TestStore_LockOrder(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	unlock, err := store.LockOrder(ctx, "ORD-1")
	require.NoError(t, err)

	// A different order is independent
	other, err := store.LockOrder(ctx, "ORD-2")
	require.NoError(t, err)
	other()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.LockOrder(waitCtx, "ORD-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := store.LockOrder(ctx, "ORD-1")
	require.NoError(t, err)
	again()

	store.lockMu.Lock()
	defer store.lockMu.Unlock()
	require.Empty(t, store.orderLocks)
}
