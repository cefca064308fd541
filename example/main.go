package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vsinha/fulfillment/pkg/application/services/fulfillment"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/events"
	"github.com/vsinha/fulfillment/pkg/infrastructure/repositories/memory"
)

func main() {
	ctx := context.Background()

	eventStore := events.NewInMemoryEventStore(nil)
	engine := fulfillment.NewEngine(memory.NewStore(), fulfillment.WithEventStore(eventStore))

	// Set up a print shop: every tee takes 2 blanks and 1 ink cartridge
	if err := setupPrintShop(ctx, engine); err != nil {
		fmt.Printf("❌ Setup failed: %v\n", err)
		return
	}

	buildable, err := engine.GetBuildable(ctx, "TEE")
	if err != nil {
		fmt.Printf("❌ Buildable failed: %v\n", err)
		return
	}
	fmt.Printf("👕 Buildable tees: %d\n\n", buildable)

	// Five customers race for 3 tees each; stock covers only two of them
	fmt.Println("🏁 Five customers order 3 tees each at the same time...")
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved []string
	)
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			draft := entities.OrderDraft{
				ID:        fmt.Sprintf("ORD-%d", n),
				Customer:  fmt.Sprintf("customer-%d", n),
				Backorder: true,
				Lines: []entities.OrderLine{{
					TargetID:  "TEE",
					Kind:      entities.KindProduct,
					Quantity:  3,
					UnitPrice: decimal.RequireFromString("25.99"),
				}},
			}
			if _, err := engine.SubmitOrder(ctx, draft); err != nil {
				fmt.Printf("  %s rejected: %v\n", draft.ID, err)
				return
			}
			_, err := engine.Transition(ctx, draft.ID, entities.StatusReserved)
			var shortage *entities.ShortageError
			switch {
			case errors.As(err, &shortage):
				fmt.Printf("  ⏳ %s stays queued: %v\n", draft.ID, shortage)
			case err != nil:
				fmt.Printf("  ❌ %s failed: %v\n", draft.ID, err)
			default:
				mu.Lock()
				reserved = append(reserved, draft.ID)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	fmt.Printf("  🔒 Reserved: %v\n\n", reserved)

	// Ship the first reserved order, cancel the second
	if len(reserved) > 0 {
		for _, step := range []entities.OrderStatus{entities.StatusInProgress, entities.StatusShipped} {
			if _, err := engine.Transition(ctx, reserved[0], step); err != nil {
				fmt.Printf("❌ %s: %v\n", reserved[0], err)
				return
			}
		}
		if _, err := engine.AttachTracking(ctx, reserved[0], "1Z999AA10123456784"); err != nil {
			fmt.Printf("❌ Tracking failed: %v\n", err)
		}
		fmt.Printf("🚚 %s shipped\n", reserved[0])
	}
	if len(reserved) > 1 {
		if _, err := engine.Transition(ctx, reserved[1], entities.StatusCancelled); err != nil {
			fmt.Printf("❌ %s: %v\n", reserved[1], err)
			return
		}
		fmt.Printf("↩️  %s cancelled, stock released\n", reserved[1])
	}
	fmt.Println()

	report, err := engine.StockReport(ctx)
	if err != nil {
		fmt.Printf("❌ Report failed: %v\n", err)
		return
	}
	fmt.Println("📦 Stock:")
	for _, m := range report.Materials {
		fmt.Printf("  %-6s on hand %3d  reserved %3d  available %3d\n", m.ID, m.OnHand, m.Reserved, m.Available)
	}
	for _, m := range report.LowStock {
		fmt.Printf("  ⚠️  %s is below its reorder threshold of %d\n", m.ID, m.ReorderThreshold)
	}

	all, _ := eventStore.ReadAllEvents(0)
	fmt.Printf("\n📣 %d domain events published\n", len(all))
	fmt.Println("✅ Done!")
}

func setupPrintShop(ctx context.Context, engine *fulfillment.Engine) error {
	materials := []entities.Material{
		{ID: "BLANK", Name: "Blank tee", OnHand: 13, UnitLabel: "PCS", ReorderThreshold: 6},
		{ID: "INK", Name: "Ink cartridge", OnHand: 50, UnitLabel: "PCS", ReorderThreshold: 10},
	}
	for _, m := range materials {
		if _, err := engine.DefineMaterial(ctx, m); err != nil {
			return err
		}
	}

	_, err := engine.DefineProduct(ctx, entities.Product{
		ID:    "TEE",
		Name:  "Printed tee",
		SKU:   "TEE-001",
		Price: decimal.RequireFromString("25.99"),
		BOM: []entities.BOMLine{
			{ComponentID: "BLANK", Kind: entities.KindMaterial, QtyPer: 2},
			{ComponentID: "INK", Kind: entities.KindMaterial, QtyPer: 1},
		},
	})
	return err
}
