package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

func (c *FulfillmentCommand) report(ctx context.Context) (string, any, error) {
	report, err := c.engine.StockReport(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("error building stock report: %w", err)
	}
	return "report", report, nil
}

func (c *FulfillmentCommand) buildable(ctx context.Context) (string, any, error) {
	if len(c.args) == 0 {
		report, err := c.engine.StockReport(ctx)
		if err != nil {
			return "", nil, err
		}
		return "buildable", report.Products, nil
	}

	products := make([]dto.ProductSnapshot, 0, len(c.args))
	for _, id := range c.args {
		p, err := c.engine.GetProduct(ctx, entities.ProductID(id))
		if err != nil {
			return "", nil, err
		}
		products = append(products, *p)
	}
	return "buildable", products, nil
}

func (c *FulfillmentCommand) lowStock(ctx context.Context) (string, any, error) {
	low, err := c.engine.LowStock(ctx)
	if err != nil {
		return "", nil, err
	}
	return "low_stock", low, nil
}

func (c *FulfillmentCommand) explode(ctx context.Context) (string, any, error) {
	if len(c.args) < 1 || len(c.args) > 2 {
		return "", nil, fmt.Errorf("usage: explode <product> [qty]")
	}
	quantity := entities.Quantity(1)
	if len(c.args) == 2 {
		n, err := strconv.ParseInt(c.args[1], 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid quantity: %s", c.args[1])
		}
		quantity = entities.Quantity(n)
	}

	tree, err := c.engine.Resolver().Explode(ctx, entities.ProductID(c.args[0]), quantity)
	if err != nil {
		return "", nil, err
	}
	return "explosion", tree, nil
}

func (c *FulfillmentCommand) adjust(ctx context.Context) (string, any, error) {
	if len(c.args) != 2 {
		return "", nil, fmt.Errorf("usage: adjust <material> <delta>")
	}
	delta, err := strconv.ParseInt(c.args[1], 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid delta: %s", c.args[1])
	}

	material, err := c.engine.AdjustStock(ctx, entities.MaterialID(c.args[0]), entities.Quantity(delta))
	if err != nil {
		return "", nil, err
	}
	return "adjustment", material, nil
}
