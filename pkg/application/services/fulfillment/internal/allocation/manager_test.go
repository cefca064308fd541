package allocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsinha/fulfillment/pkg/application/services/bom"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	testhelpers "github.com/vsinha/fulfillment/pkg/infrastructure/testing"
)

func newOrder(t *testing.T, id string, lines ...entities.OrderLine) *entities.Order {
	t.Helper()
	o, err := entities.NewOrder(id, entities.OrderDraft{Customer: "Test", Lines: lines}, time.Now())
	require.NoError(t, err)
	return o
}

func packLine(qty entities.Quantity) entities.OrderLine {
	return entities.OrderLine{TargetID: string(testhelpers.MixedPack), Kind: entities.KindProduct, Quantity: qty}
}

func TestManager_ReserveForOrder(t *testing.T) {
	store := testhelpers.BuildTShirtShop()
	manager := NewManager(bom.NewResolver(store), store, nil, nil)
	ctx := context.Background()

	// 2 packs = 4 red M, 2 black L, 6 prints
	reservation, err := manager.ReserveForOrder(ctx, newOrder(t, "ORD-1", packLine(2)))
	require.NoError(t, err)
	require.Equal(t, entities.Quantity(4), reservation.Units[testhelpers.RedM])
	require.Equal(t, entities.Quantity(2), reservation.Units[testhelpers.BlackL])
	require.Equal(t, entities.Quantity(6), reservation.Units[testhelpers.Print])

	snap, err := store.Snapshot(ctx, []entities.MaterialID{testhelpers.RedM, testhelpers.Print})
	require.NoError(t, err)
	red, prints := snap[testhelpers.RedM], snap[testhelpers.Print]
	require.Equal(t, entities.Quantity(9), red.Available())
	require.Equal(t, entities.Quantity(94), prints.Available())

	// Reserving again returns the recorded reservation without double counting
	again, err := manager.ReserveForOrder(ctx, newOrder(t, "ORD-1", packLine(2)))
	require.NoError(t, err)
	require.Equal(t, reservation.Units, again.Units)
	snap, _ = store.Snapshot(ctx, []entities.MaterialID{testhelpers.RedM})
	require.Equal(t, entities.Quantity(4), snap[testhelpers.RedM].Reserved)
}

func TestManager_ShortageLeavesLedgerUntouched(t *testing.T) {
	store := testhelpers.BuildTShirtShop()
	manager := NewManager(bom.NewResolver(store), store, nil, nil)
	ctx := context.Background()

	// 7 packs need 14 red M but only 13 exist
	_, err := manager.ReserveForOrder(ctx, newOrder(t, "ORD-BIG", packLine(7)))

	var shortageErr *entities.ShortageError
	require.ErrorAs(t, err, &shortageErr)
	require.Len(t, shortageErr.Lines, 1)
	require.Equal(t, testhelpers.RedM, shortageErr.Lines[0].MaterialID)
	require.Equal(t, entities.Quantity(1), shortageErr.Lines[0].Short)

	var insufficient *entities.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	materials, err := store.ListMaterials(ctx)
	require.NoError(t, err)
	for _, m := range materials {
		require.Zero(t, m.Reserved, "material %s", m.ID)
	}
	r, err := store.GetReservation(ctx, "ORD-BIG")
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestManager_ReleaseAndCommit(t *testing.T) {
	store := testhelpers.BuildTShirtShop()
	manager := NewManager(bom.NewResolver(store), store, nil, nil)
	ctx := context.Background()

	shirt := entities.OrderLine{TargetID: string(testhelpers.ShirtWhiteS), Kind: entities.KindProduct, Quantity: 5}
	_, err := manager.ReserveForOrder(ctx, newOrder(t, "ORD-A", shirt))
	require.NoError(t, err)
	_, err = manager.ReserveForOrder(ctx, newOrder(t, "ORD-B", shirt))
	require.NoError(t, err)

	released, err := manager.ReleaseForOrder(ctx, "ORD-A")
	require.NoError(t, err)
	require.Equal(t, entities.Quantity(5), released.Units[testhelpers.WhiteS])

	committed, err := manager.CommitForOrder(ctx, "ORD-B")
	require.NoError(t, err)
	require.NotNil(t, committed)

	white, err := store.GetMaterial(ctx, testhelpers.WhiteS)
	require.NoError(t, err)
	require.Equal(t, entities.Quantity(29), white.OnHand)
	require.Zero(t, white.Reserved)

	// Both are no-ops once settled
	again, err := manager.ReleaseForOrder(ctx, "ORD-A")
	require.NoError(t, err)
	require.Nil(t, again)
	again, err = manager.CommitForOrder(ctx, "ORD-B")
	require.NoError(t, err)
	require.Nil(t, again)

	white, _ = store.GetMaterial(ctx, testhelpers.WhiteS)
	require.Equal(t, entities.Quantity(29), white.OnHand)
}

func TestManager_Restore(t *testing.T) {
	store := testhelpers.BuildTShirtShop()
	manager := NewManager(bom.NewResolver(store), store, nil, nil)
	ctx := context.Background()

	line := entities.OrderLine{TargetID: string(testhelpers.BlackL), Kind: entities.KindMaterial, Quantity: 7}
	_, err := manager.ReserveForOrder(ctx, newOrder(t, "ORD-R", line))
	require.NoError(t, err)

	committed, err := manager.CommitForOrder(ctx, "ORD-R")
	require.NoError(t, err)
	require.NoError(t, manager.Restore(ctx, committed, true))

	black, _ := store.GetMaterial(ctx, testhelpers.BlackL)
	require.Equal(t, entities.Quantity(27), black.OnHand)
	require.Equal(t, entities.Quantity(7), black.Reserved)

	r, _ := store.GetReservation(ctx, "ORD-R")
	require.NotNil(t, r)
}

func TestManager_UnknownTarget(t *testing.T) {
	store := testhelpers.BuildTShirtShop()
	manager := NewManager(bom.NewResolver(store), store, nil, nil)

	line := entities.OrderLine{TargetID: "NOPE", Kind: entities.KindProduct, Quantity: 1}
	_, err := manager.ReserveForOrder(context.Background(), newOrder(t, "ORD-X", line))
	require.True(t, errors.Is(err, entities.ErrProductNotFound), "got %v", err)
}
