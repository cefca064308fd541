package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

func (c *FulfillmentCommand) scenarioOrders() ([]entities.OrderDraft, error) {
	if c.scenario == nil || len(c.scenario.Orders) == 0 {
		return nil, fmt.Errorf("scenario has no orders.csv")
	}
	return c.scenario.Orders, nil
}

func (c *FulfillmentCommand) shortages(ctx context.Context) (string, any, error) {
	drafts, err := c.scenarioOrders()
	if err != nil {
		return "", nil, err
	}

	outcomes := make([]dto.OrderOutcome, 0, len(drafts))
	for _, draft := range drafts {
		lines, err := c.engine.GetShortages(ctx, draft)
		outcome := dto.OrderOutcome{
			OrderID:    draft.ID,
			Customer:   draft.Customer,
			CanFulfill: err == nil && len(lines) == 0,
			Shortages:  lines,
		}
		if err != nil {
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return "shortages", outcomes, nil
}

func (c *FulfillmentCommand) run(ctx context.Context) (string, any, error) {
	outcomes, err := c.runScenario(ctx)
	if err != nil {
		return "", nil, err
	}
	return "run", outcomes, nil
}

// runScenario submits every scenario order in file order and moves each
// accepted one to Reserved. Per-order failures are reported, not returned.
func (c *FulfillmentCommand) runScenario(ctx context.Context) ([]dto.OrderOutcome, error) {
	drafts, err := c.scenarioOrders()
	if err != nil {
		return nil, err
	}

	outcomes := make([]dto.OrderOutcome, 0, len(drafts))
	for _, draft := range drafts {
		outcome := dto.OrderOutcome{OrderID: draft.ID, Customer: draft.Customer}

		submitted, err := c.engine.SubmitOrder(ctx, draft)
		if err != nil {
			var shortage *entities.ShortageError
			if errors.As(err, &shortage) {
				outcome.Shortages = shortage.Lines
			}
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.OrderID = submitted.Order.ID
		outcome.Status = submitted.Order.Status
		outcome.Shortages = submitted.Shortages

		reserved, err := c.engine.Transition(ctx, submitted.Order.ID, entities.StatusReserved)
		if err != nil {
			var shortage *entities.ShortageError
			if errors.As(err, &shortage) {
				outcome.Shortages = shortage.Lines
			}
			outcome.Error = err.Error()
			c.logger.Info("order left queued", zap.String("order_id", outcome.OrderID), zap.Error(err))
		} else {
			outcome.Status = reserved.Status
			outcome.CanFulfill = true
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (c *FulfillmentCommand) orders(ctx context.Context) (string, any, error) {
	if err := c.replayForMemory(ctx); err != nil {
		return "", nil, err
	}

	statuses := make([]entities.OrderStatus, 0, len(c.args))
	for _, arg := range c.args {
		status, err := entities.ParseOrderStatus(arg)
		if err != nil {
			return "", nil, err
		}
		statuses = append(statuses, status)
	}

	orders, err := c.engine.ListOrders(ctx, statuses...)
	if err != nil {
		return "", nil, err
	}
	return "orders", orders, nil
}

func (c *FulfillmentCommand) transition(ctx context.Context) (string, any, error) {
	if len(c.args) < 2 {
		return "", nil, fmt.Errorf("usage: transition <order> <status>...")
	}
	if err := c.replayForMemory(ctx); err != nil {
		return "", nil, err
	}

	orderID := c.args[0]
	var last *dto.OrderSnapshot
	for _, arg := range c.args[1:] {
		target, err := entities.ParseOrderStatus(arg)
		if err != nil {
			return "", nil, err
		}
		last, err = c.engine.Transition(ctx, orderID, target)
		if err != nil {
			return "", nil, err
		}
	}
	return "transition", last, nil
}

func (c *FulfillmentCommand) track(ctx context.Context) (string, any, error) {
	if len(c.args) != 2 {
		return "", nil, fmt.Errorf("usage: track <order> <number>")
	}
	if err := c.replayForMemory(ctx); err != nil {
		return "", nil, err
	}

	order, err := c.engine.AttachTracking(ctx, c.args[0], c.args[1])
	if err != nil {
		return "", nil, err
	}
	return "tracking", order, nil
}

func (c *FulfillmentCommand) reconcile(ctx context.Context) (string, any, error) {
	result, err := c.engine.Reconcile(ctx)
	if err != nil {
		return "", nil, err
	}
	return "reconcile", result, nil
}

func (c *FulfillmentCommand) orderShortages(ctx context.Context) (string, any, error) {
	if len(c.args) != 1 {
		return "", nil, fmt.Errorf("usage: order-shortages <order>")
	}
	if err := c.replayForMemory(ctx); err != nil {
		return "", nil, err
	}

	order, err := c.engine.GetOrder(ctx, c.args[0])
	if err != nil {
		return "", nil, err
	}
	lines, err := c.engine.GetOrderShortages(ctx, order.ID)
	if err != nil {
		return "", nil, err
	}
	return "shortages", []dto.OrderOutcome{{
		OrderID:    order.ID,
		Customer:   order.Customer,
		Status:     order.Status,
		CanFulfill: len(lines) == 0,
		Shortages:  lines,
	}}, nil
}

// readdress replaces the shipping address, keeping the other editable fields
func (c *FulfillmentCommand) readdress(ctx context.Context) (string, any, error) {
	if len(c.args) != 2 {
		return "", nil, fmt.Errorf("usage: readdress <order> <address>")
	}
	if err := c.replayForMemory(ctx); err != nil {
		return "", nil, err
	}

	current, err := c.engine.GetOrder(ctx, c.args[0])
	if err != nil {
		return "", nil, err
	}
	order, err := c.engine.UpdateOrderInfo(ctx, current.ID, entities.OrderInfo{
		Customer:         current.Customer,
		Email:            current.Email,
		ShippingAddress:  c.args[1],
		ExpectedDelivery: current.ExpectedDelivery,
	})
	if err != nil {
		return "", nil, err
	}
	return "order", order, nil
}

func (c *FulfillmentCommand) deleteOrder(ctx context.Context) (string, any, error) {
	if len(c.args) != 1 {
		return "", nil, fmt.Errorf("usage: delete-order <order>")
	}
	if err := c.replayForMemory(ctx); err != nil {
		return "", nil, err
	}

	order, err := c.engine.GetOrder(ctx, c.args[0])
	if err != nil {
		return "", nil, err
	}
	if err := c.engine.DeleteOrder(ctx, order.ID); err != nil {
		return "", nil, err
	}
	return "deleted", order, nil
}
