package fulfillment_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"github.com/vsinha/fulfillment/pkg/application/services/fulfillment"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/repositories/memory"
)

type lifecycleTestContext struct {
	store  *memory.Store
	engine *fulfillment.Engine
	err    error
	errs   []error
}

func (c *lifecycleTestContext) reset() {
	c.store = memory.NewStore()
	c.engine = fulfillment.NewEngine(c.store)
	c.err = nil
	c.errs = nil
}

func (c *lifecycleTestContext) aMaterialWithOnHand(id string, onHand int) error {
	_, err := c.engine.DefineMaterial(context.Background(), entities.Material{
		ID:     entities.MaterialID(id),
		Name:   id,
		OnHand: entities.Quantity(onHand),
	})
	return err
}

func (c *lifecycleTestContext) aProductBuiltFrom(id string, table *godog.Table) error {
	var bom []entities.BOMLine
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		kind, err := entities.ParseTargetKind(row.Cells[1].Value)
		if err != nil {
			return err
		}
		qty, err := strconv.ParseInt(row.Cells[2].Value, 10, 64)
		if err != nil {
			return err
		}
		bom = append(bom, entities.BOMLine{ComponentID: row.Cells[0].Value, Kind: kind, QtyPer: entities.Quantity(qty)})
	}
	_, err := c.engine.DefineProduct(context.Background(), entities.Product{
		ID:   entities.ProductID(id),
		Name: id,
		SKU:  id,
		BOM:  bom,
	})
	return err
}

func (c *lifecycleTestContext) anOrderFor(id string, qty int, kind, target string) error {
	targetKind, err := entities.ParseTargetKind(kind)
	if err != nil {
		return err
	}
	_, err = c.engine.SubmitOrder(context.Background(), entities.OrderDraft{
		ID:       id,
		Customer: "feature",
		Lines:    []entities.OrderLine{{TargetID: target, Kind: targetKind, Quantity: entities.Quantity(qty)}},
	})
	return err
}

func (c *lifecycleTestContext) orderMovesTo(id, status string) error {
	target, err := entities.ParseOrderStatus(status)
	if err != nil {
		return err
	}
	_, c.err = c.engine.Transition(context.Background(), id, target)
	return nil
}

func (c *lifecycleTestContext) ordersAreReservedConcurrently(a, b string) error {
	var wg sync.WaitGroup
	c.errs = make([]error, 2)
	for i, id := range []string{a, b} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, c.errs[i] = c.engine.Transition(context.Background(), id, entities.StatusReserved)
		}(i, id)
	}
	wg.Wait()
	return nil
}

func (c *lifecycleTestContext) theTransitionFailsWith(fragment string) error {
	if c.err == nil {
		return errors.New("expected the transition to fail")
	}
	if !strings.Contains(c.err.Error(), fragment) {
		return fmt.Errorf("expected error containing %q, got %q", fragment, c.err.Error())
	}
	return nil
}

func (c *lifecycleTestContext) exactlyOneReservationSucceeds() error {
	succeeded := 0
	for _, err := range c.errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		return fmt.Errorf("expected exactly one success, got %d (%v)", succeeded, c.errs)
	}
	return nil
}

func (c *lifecycleTestContext) theOtherFailsWith(fragment string) error {
	for _, err := range c.errs {
		if err == nil {
			continue
		}
		var insufficient *entities.InsufficientStockError
		if !errors.As(err, &insufficient) {
			return fmt.Errorf("expected InsufficientStockError, got %v", err)
		}
		if !strings.Contains(insufficient.Error(), fragment) {
			return fmt.Errorf("expected error containing %q, got %q", fragment, insufficient.Error())
		}
		return nil
	}
	return errors.New("no reservation failed")
}

func (c *lifecycleTestContext) materialHasOnHandAndReserved(id string, onHand, reserved int) error {
	m, err := c.engine.GetMaterial(context.Background(), entities.MaterialID(id))
	if err != nil {
		return err
	}
	if m.OnHand != entities.Quantity(onHand) || m.Reserved != entities.Quantity(reserved) {
		return fmt.Errorf("expected %s at %d on hand / %d reserved, got %d / %d", id, onHand, reserved, m.OnHand, m.Reserved)
	}
	return nil
}

func (c *lifecycleTestContext) orderHasStatus(id, status string) error {
	order, err := c.engine.GetOrder(context.Background(), id)
	if err != nil {
		return err
	}
	if string(order.Status) != status {
		return fmt.Errorf("expected order %s in %q, got %q", id, status, order.Status)
	}
	return nil
}

func (c *lifecycleTestContext) productCanBuild(id string, expected int) error {
	got, err := c.engine.GetBuildable(context.Background(), entities.ProductID(id))
	if err != nil {
		return err
	}
	if got != entities.Quantity(expected) {
		return fmt.Errorf("expected %s buildable %d, got %d", id, expected, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a material "([^"]*)" with (\d+) on hand$`, tc.aMaterialWithOnHand)
	ctx.Step(`^a product "([^"]*)" built from:$`, tc.aProductBuiltFrom)
	ctx.Step(`^an order "([^"]*)" for (\d+) of (material|product) "([^"]*)"$`, tc.anOrderFor)

	// When steps
	ctx.Step(`^order "([^"]*)" moves to "([^"]*)"$`, tc.orderMovesTo)
	ctx.Step(`^orders "([^"]*)" and "([^"]*)" are reserved concurrently$`, tc.ordersAreReservedConcurrently)

	// Then steps
	ctx.Step(`^the transition fails with "([^"]*)"$`, tc.theTransitionFailsWith)
	ctx.Step(`^exactly one reservation succeeds$`, tc.exactlyOneReservationSucceeds)
	ctx.Step(`^the other fails with "([^"]*)"$`, tc.theOtherFailsWith)
	ctx.Step(`^material "([^"]*)" has (\d+) on hand and (\d+) reserved$`, tc.materialHasOnHandAndReserved)
	ctx.Step(`^order "([^"]*)" has status "([^"]*)"$`, tc.orderHasStatus)
	ctx.Step(`^product "([^"]*)" can build (\d+)$`, tc.productCanBuild)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../../../features/order_lifecycle.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
