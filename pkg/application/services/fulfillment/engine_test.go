package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/events"
	testhelpers "github.com/vsinha/fulfillment/pkg/infrastructure/testing"
)

func TestEngine_GetBuildable(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	tests := []struct {
		product  entities.ProductID
		expected entities.Quantity
	}{
		{testhelpers.ShirtRedM, 13},
		{testhelpers.ShirtBlackL, 27},
		{testhelpers.ShirtWhiteS, 34},
		// Two red M per pack
		{testhelpers.MixedPack, 6},
	}

	for _, tt := range tests {
		t.Run(string(tt.product), func(t *testing.T) {
			got, err := engine.GetBuildable(ctx, tt.product)
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}

	_, err := engine.GetBuildable(ctx, "NOPE")
	require.ErrorIs(t, err, entities.ErrProductNotFound)
}

func TestEngine_SubmitOrder(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine, store := newShopEngine(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	t.Run("accepted orders are queued without reserving", func(t *testing.T) {
		draft := testhelpers.ProductDraft("john", testhelpers.ShirtRedM, 3)
		result, err := engine.SubmitOrder(ctx, draft)
		require.NoError(t, err)
		require.True(t, result.CanFulfill)
		require.Equal(t, entities.StatusQueued, result.Order.Status)
		require.Equal(t, "ORD-001", result.Order.ID)
		require.True(t, result.Order.Total.Equal(decimal.RequireFromString("77.97")))
		require.Equal(t, clock, result.Order.CreatedAt)
		require.Zero(t, material(t, store, testhelpers.RedM).Reserved)
	})

	t.Run("short drafts are refused and not persisted", func(t *testing.T) {
		draft := testhelpers.ProductDraft("mike", testhelpers.ShirtRedM, 14)
		draft.ID = "ORD-SHORT"
		_, err := engine.SubmitOrder(ctx, draft)

		var shortageErr *entities.ShortageError
		require.ErrorAs(t, err, &shortageErr)
		require.Equal(t, testhelpers.RedM, shortageErr.Lines[0].MaterialID)
		require.Equal(t, entities.Quantity(1), shortageErr.Lines[0].Short)

		_, err = engine.GetOrder(ctx, "ORD-SHORT")
		require.ErrorIs(t, err, entities.ErrOrderNotFound)
	})

	t.Run("backorders are queued with their shortages", func(t *testing.T) {
		draft := testhelpers.ProductDraft("mike", testhelpers.ShirtRedM, 14)
		draft.Backorder = true
		result, err := engine.SubmitOrder(ctx, draft)
		require.NoError(t, err)
		require.False(t, result.CanFulfill)
		require.Len(t, result.Shortages, 1)

		_, err = engine.Transition(ctx, result.Order.ID, entities.StatusReserved)
		var shortageErr *entities.ShortageError
		require.ErrorAs(t, err, &shortageErr)
	})

	t.Run("invalid drafts", func(t *testing.T) {
		_, err := engine.SubmitOrder(ctx, entities.OrderDraft{Customer: "x"})
		require.Error(t, err)

		_, err = engine.SubmitOrder(ctx, testhelpers.ProductDraft("x", "NOPE", 1))
		require.ErrorIs(t, err, entities.ErrProductNotFound)
	})
}

func TestEngine_GetShortagesSeesReservations(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	id := submit(t, engine, testhelpers.ProductDraft("first", testhelpers.ShirtRedM, 10))
	_, err := engine.Transition(ctx, id, entities.StatusReserved)
	require.NoError(t, err)

	shortages, err := engine.GetShortages(ctx, testhelpers.ProductDraft("second", testhelpers.ShirtRedM, 5))
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	require.Equal(t, entities.Quantity(5), shortages[0].Needed)
	require.Equal(t, entities.Quantity(3), shortages[0].Available)
	require.Equal(t, entities.Quantity(2), shortages[0].Short)
}

func TestEngine_AdjustStock(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	snap, err := engine.AdjustStock(ctx, testhelpers.RedM, 20)
	require.NoError(t, err)
	require.Equal(t, entities.Quantity(33), snap.OnHand)
	require.False(t, snap.Low)

	id := submit(t, engine, testhelpers.ProductDraft("a", testhelpers.ShirtRedM, 30))
	_, err = engine.Transition(ctx, id, entities.StatusReserved)
	require.NoError(t, err)

	_, err = engine.AdjustStock(ctx, testhelpers.RedM, -4)
	var negative *entities.NegativeStockError
	require.ErrorAs(t, err, &negative)

	snap, err = engine.AdjustStock(ctx, testhelpers.RedM, -3)
	require.NoError(t, err)
	require.Equal(t, entities.Quantity(30), snap.OnHand)
	require.Equal(t, entities.Quantity(0), snap.Available)
	require.True(t, snap.Low)
}

func TestEngine_DefineProduct(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	t.Run("nested kit", func(t *testing.T) {
		snap, err := engine.DefineProduct(ctx, *testhelpers.MustProduct("GIFT", "Gift box", "GIFT-005", "", "99.00",
			testhelpers.ProductLine(testhelpers.MixedPack, 1), testhelpers.MaterialLine(testhelpers.WhiteM, 1)))
		require.NoError(t, err)
		require.Equal(t, entities.Quantity(6), snap.Buildable)
	})

	t.Run("self reference", func(t *testing.T) {
		_, err := engine.DefineProduct(ctx, entities.Product{ID: "LOOP", Name: "Loop", SKU: "LOOP",
			BOM: []entities.BOMLine{testhelpers.ProductLine("LOOP", 1)}})
		var cyclic *entities.CyclicBOMError
		require.ErrorAs(t, err, &cyclic)
	})

	t.Run("cycle through the catalog", func(t *testing.T) {
		redefined := *testhelpers.MustProduct(testhelpers.ShirtRedM, "Custom T-Shirt - Red / M", "TSH-RED-M-001", "red", "25.99",
			testhelpers.MaterialLine(testhelpers.RedM, 1), testhelpers.ProductLine("GIFT", 1))
		_, err := engine.DefineProduct(ctx, redefined)
		var cyclic *entities.CyclicBOMError
		require.ErrorAs(t, err, &cyclic)

		// The catalog still resolves
		got, err := engine.GetBuildable(ctx, testhelpers.ShirtRedM)
		require.NoError(t, err)
		require.Equal(t, entities.Quantity(13), got)
	})

	t.Run("unknown components", func(t *testing.T) {
		_, err := engine.DefineProduct(ctx, *testhelpers.MustProduct("X", "X", "X-1", "", "1.00", testhelpers.MaterialLine("GHOST", 1)))
		require.ErrorIs(t, err, entities.ErrMaterialNotFound)

		_, err = engine.DefineProduct(ctx, *testhelpers.MustProduct("Y", "Y", "Y-1", "", "1.00", testhelpers.ProductLine("GHOST", 1)))
		require.ErrorIs(t, err, entities.ErrProductNotFound)
	})

	t.Run("duplicate sku", func(t *testing.T) {
		_, err := engine.DefineProduct(ctx, *testhelpers.MustProduct("Z", "Z", "TSH-RED-M-001", "", "1.00"))
		require.ErrorIs(t, err, entities.ErrDuplicateSKU)
	})
}

func TestEngine_CatalogDeletionGuards(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	require.ErrorIs(t, engine.DeleteMaterial(ctx, testhelpers.RedM), entities.ErrMaterialInUse)
	require.ErrorIs(t, engine.DeleteProduct(ctx, testhelpers.ShirtRedM), entities.ErrProductInUse)

	// Unreferenced material with stock reserved by a raw-material order
	id := submit(t, engine, entities.OrderDraft{Customer: "raw", Lines: []entities.OrderLine{
		{TargetID: string(testhelpers.WhiteL), Kind: entities.KindMaterial, Quantity: 2},
	}})
	_, err := engine.Transition(ctx, id, entities.StatusReserved)
	require.NoError(t, err)
	require.ErrorIs(t, engine.DeleteMaterial(ctx, testhelpers.WhiteL), entities.ErrMaterialInUse)

	_, err = engine.Transition(ctx, id, entities.StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, engine.DeleteMaterial(ctx, testhelpers.WhiteL))

	require.NoError(t, engine.DeleteProduct(ctx, testhelpers.MixedPack))
	require.NoError(t, engine.DeleteProduct(ctx, testhelpers.ShirtRedM))
}

func TestEngine_UpdateMaterialInfo(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	snap, err := engine.UpdateMaterialInfo(ctx, entities.Material{ID: testhelpers.Print, Name: "Print transfer", ReorderThreshold: 200})
	require.NoError(t, err)
	require.Equal(t, "Print transfer", snap.Name)
	require.Equal(t, entities.Quantity(100), snap.OnHand)
	require.True(t, snap.Low)

	_, err = engine.UpdateMaterialInfo(ctx, entities.Material{ID: testhelpers.Print})
	require.Error(t, err)

	_, err = engine.UpdateMaterialInfo(ctx, entities.Material{ID: "NOPE", Name: "x"})
	require.True(t, errors.Is(err, entities.ErrMaterialNotFound))
}

func TestEngine_ReportsAndListing(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	low, err := engine.LowStock(ctx)
	require.NoError(t, err)
	// Red M (13) and Black S (21) sit under the threshold of 24
	require.Len(t, low, 2)
	require.Equal(t, testhelpers.BlackS, low[0].ID)
	require.Equal(t, testhelpers.RedM, low[1].ID)

	report, err := engine.StockReport(ctx)
	require.NoError(t, err)
	require.Len(t, report.Materials, 9)
	require.Len(t, report.Products, 4)
	require.Len(t, report.LowStock, 2)

	queued := submit(t, engine, testhelpers.ProductDraft("a", testhelpers.ShirtBlackL, 1))
	reserved := submit(t, engine, testhelpers.ProductDraft("b", testhelpers.ShirtBlackL, 2))
	_, err = engine.Transition(ctx, reserved, entities.StatusReserved)
	require.NoError(t, err)

	all, err := engine.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	onlyReserved, err := engine.ListOrders(ctx, entities.StatusReserved)
	require.NoError(t, err)
	require.Len(t, onlyReserved, 1)
	require.Equal(t, reserved, onlyReserved[0].ID)
	require.Equal(t, entities.Quantity(2), onlyReserved[0].Reserved[testhelpers.BlackL])

	got, err := engine.GetOrder(ctx, queued)
	require.NoError(t, err)
	require.Empty(t, got.Reserved)
}

func TestEngine_ShortageEventsOnlyForQueuedOrders(t *testing.T) {
	eventStore := events.NewInMemoryEventStore(nil)
	engine, _ := newShopEngine(t, WithEventStore(eventStore))
	ctx := context.Background()

	refused := testhelpers.ProductDraft("mike", testhelpers.ShirtRedM, 14)
	_, err := engine.SubmitOrder(ctx, refused)
	var shortageErr *entities.ShortageError
	require.ErrorAs(t, err, &shortageErr)
	require.Empty(t, shortageErr.OrderID)

	all, err := eventStore.ReadAllEvents(0)
	require.NoError(t, err)
	require.Empty(t, all, "a refused draft creates no order and publishes nothing")

	backorder := refused
	backorder.Backorder = true
	result, err := engine.SubmitOrder(ctx, backorder)
	require.NoError(t, err)

	stream, err := eventStore.ReadEvents(result.Order.ID, 1)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	require.Equal(t, events.OrderSubmittedEvent, stream[0].Type())
	require.Equal(t, events.ShortageIdentifiedEvent, stream[1].Type())
}

func TestEngine_GetOrderShortages(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()

	draft := testhelpers.ProductDraft("mike", testhelpers.ShirtRedM, 14)
	draft.Backorder = true
	id := submitBackorder(t, engine, draft)

	shortages, err := engine.GetOrderShortages(ctx, id)
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	require.Equal(t, testhelpers.RedM, shortages[0].MaterialID)
	require.Equal(t, entities.Quantity(1), shortages[0].Short)

	// Receiving stock clears the backorder without resubmitting it
	_, err = engine.AdjustStock(ctx, testhelpers.RedM, 1)
	require.NoError(t, err)
	shortages, err = engine.GetOrderShortages(ctx, id)
	require.NoError(t, err)
	require.Empty(t, shortages)

	_, err = engine.Transition(ctx, id, entities.StatusReserved)
	require.NoError(t, err)
	shortages, err = engine.GetOrderShortages(ctx, id)
	require.NoError(t, err)
	require.Empty(t, shortages, "a reserved order is not short of its own stock")

	_, err = engine.GetOrderShortages(ctx, "MISSING")
	require.ErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestEngine_UpdateOrderInfo(t *testing.T) {
	engine, _ := newShopEngine(t)
	ctx := context.Background()
	id := submit(t, engine, testhelpers.ProductDraft("john", testhelpers.ShirtRedM, 2))
	_, err := engine.Transition(ctx, id, entities.StatusReserved)
	require.NoError(t, err)

	delivery := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	info := entities.OrderInfo{
		Customer:         "John Smith",
		Email:            "john@example.com",
		ShippingAddress:  "221B Baker Street",
		ExpectedDelivery: &delivery,
	}
	snap, err := engine.UpdateOrderInfo(ctx, id, info)
	require.NoError(t, err)
	require.Equal(t, "John Smith", snap.Customer)
	require.Equal(t, "221B Baker Street", snap.ShippingAddress)
	require.Equal(t, delivery, *snap.ExpectedDelivery)
	require.Equal(t, entities.StatusReserved, snap.Status)
	require.Equal(t, entities.Quantity(2), snap.Reserved[testhelpers.RedM])
	require.Len(t, snap.Lines, 1)

	_, err = engine.UpdateOrderInfo(ctx, id, entities.OrderInfo{Customer: "  "})
	require.Error(t, err)

	for _, to := range []entities.OrderStatus{entities.StatusInProgress, entities.StatusShipped} {
		_, err := engine.Transition(ctx, id, to)
		require.NoError(t, err)
	}
	_, err = engine.UpdateOrderInfo(ctx, id, info)
	require.Error(t, err, "shipped orders cannot be edited")

	_, err = engine.UpdateOrderInfo(ctx, "MISSING", info)
	require.ErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestEngine_DeleteOrder(t *testing.T) {
	engine, store := newShopEngine(t)
	ctx := context.Background()

	queued := submit(t, engine, testhelpers.ProductDraft("a", testhelpers.ShirtRedM, 1))
	require.NoError(t, engine.DeleteOrder(ctx, queued))
	_, err := engine.GetOrder(ctx, queued)
	require.ErrorIs(t, err, entities.ErrOrderNotFound)

	active := submit(t, engine, testhelpers.ProductDraft("b", testhelpers.ShirtRedM, 3))
	_, err = engine.Transition(ctx, active, entities.StatusReserved)
	require.NoError(t, err)
	require.ErrorIs(t, engine.DeleteOrder(ctx, active), entities.ErrOrderActive)
	require.Equal(t, entities.Quantity(3), material(t, store, testhelpers.RedM).Reserved)

	_, err = engine.Transition(ctx, active, entities.StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, engine.DeleteOrder(ctx, active))
	require.Zero(t, material(t, store, testhelpers.RedM).Reserved)

	require.ErrorIs(t, engine.DeleteOrder(ctx, "MISSING"), entities.ErrOrderNotFound)
}

func TestEngine_DeleteOrderReleasesStrayReservation(t *testing.T) {
	eventStore := events.NewInMemoryEventStore(nil)
	engine, store := newShopEngine(t, WithEventStore(eventStore))
	ctx := context.Background()

	id := submit(t, engine, testhelpers.ProductDraft("crash", testhelpers.ShirtRedM, 4))
	_, err := engine.Transition(ctx, id, entities.StatusReserved)
	require.NoError(t, err)

	// A crash after reserving that left the status at Queued
	order, err := store.GetOrder(ctx, id)
	require.NoError(t, err)
	order.Status = entities.StatusQueued
	require.NoError(t, store.UpdateOrderStatus(ctx, order, entities.StatusReserved))

	require.NoError(t, engine.DeleteOrder(ctx, id))
	require.Zero(t, material(t, store, testhelpers.RedM).Reserved)
	r, err := store.GetReservation(ctx, id)
	require.NoError(t, err)
	require.Nil(t, r)

	stream, err := eventStore.ReadEvents(id, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(stream), 2)
	require.Equal(t, events.StockReleasedEvent, stream[len(stream)-2].Type())
	deleted := stream[len(stream)-1]
	require.Equal(t, events.OrderDeletedEvent, deleted.Type())
	require.Equal(t, entities.StatusQueued, deleted.Data().(events.OrderDeleted).Status)
}
