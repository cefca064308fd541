package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/services/fulfillment"
	"github.com/vsinha/fulfillment/pkg/config"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
	"github.com/vsinha/fulfillment/pkg/infrastructure/events"
	"github.com/vsinha/fulfillment/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/fulfillment/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/fulfillment/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/fulfillment/pkg/interfaces/cli/output"
)

// FulfillmentCommand runs one CLI action against a fulfillment engine
type FulfillmentCommand struct {
	config *config.Config
	action string
	args   []string
	logger *zap.Logger
	out    io.Writer

	engine   *fulfillment.Engine
	events   *events.InMemoryEventStore
	scenario *csv.Scenario
}

// NewFulfillmentCommand creates a command for action with its positional args
func NewFulfillmentCommand(cfg *config.Config, action string, args []string, logger *zap.Logger) *FulfillmentCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentCommand{
		config: cfg,
		action: action,
		args:   args,
		logger: logger,
		out:    os.Stdout,
	}
}

// SetOutput redirects results away from stdout
func (c *FulfillmentCommand) SetOutput(w io.Writer) {
	c.out = w
}

// Execute opens the store, seeds the scenario and runs the action
func (c *FulfillmentCommand) Execute(ctx context.Context) error {
	if c.action == "" || c.action == "help" {
		c.showHelp()
		return nil
	}
	run, ok := c.actions()[c.action]
	if !ok {
		return fmt.Errorf("unknown action %q (run with -help for usage)", c.action)
	}

	if err := c.config.Validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	closeStore, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	name, result, err := run(ctx)
	if err != nil {
		return err
	}

	if c.config.Verbose {
		all, _ := c.events.ReadAllEvents(0)
		fmt.Fprintf(c.out, "📣 %d domain events published\n", len(all))
	}

	return output.Generate(name, result, output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.Output,
		Verbose:   c.config.Verbose,
		Writer:    c.out,
	})
}

type actionFunc func(ctx context.Context) (string, any, error)

func (c *FulfillmentCommand) actions() map[string]actionFunc {
	return map[string]actionFunc{
		"report":     c.report,
		"buildable":  c.buildable,
		"low-stock":  c.lowStock,
		"explode":    c.explode,
		"adjust":     c.adjust,
		"shortages":  c.shortages,
		"run":        c.run,
		"orders":     c.orders,
		"transition": c.transition,
		"track":      c.track,
		"reconcile":  c.reconcile,

		"order-shortages": c.orderShortages,
		"readdress":       c.readdress,
		"delete-order":    c.deleteOrder,
	}
}

// open builds the store and engine, then seeds the catalog from the scenario
func (c *FulfillmentCommand) open(ctx context.Context) (func(), error) {
	if c.config.Scenario != "" {
		scenario, err := csv.NewLoader().LoadScenario(c.config.Scenario)
		if err != nil {
			return nil, fmt.Errorf("error loading scenario: %w", err)
		}
		c.scenario = scenario
		c.logger.Info("scenario loaded",
			zap.String("dir", c.config.Scenario),
			zap.Int("materials", len(scenario.Materials)),
			zap.Int("products", len(scenario.Products)),
			zap.Int("orders", len(scenario.Orders)))
	}

	var store repositories.Store
	closeStore := func() {}
	switch c.config.Store {
	case config.StorePostgres:
		pg, err := postgres.Connect(ctx, c.config.DSN, c.config.ConnectAttempts, c.logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		store = pg
		closeStore = func() {
			if err := pg.Close(); err != nil {
				c.logger.Warn("failed to close postgres", zap.Error(err))
			}
		}
	default:
		store = memory.NewStore()
	}

	c.events = events.NewInMemoryEventStore(c.logger)
	alerts, err := c.events.Subscribe([]string{events.StockLowEvent}, events.HandlerFunc(func(event events.Event) error {
		low, ok := event.Data().(events.StockLow)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Data(), event.Type())
		}
		c.logger.Warn("low stock alert",
			zap.String("material_id", string(low.MaterialID)),
			zap.Int64("available", int64(low.Available)),
			zap.Int64("reorder_threshold", int64(low.ReorderThreshold)))
		return nil
	}))
	if err != nil {
		closeStore()
		return nil, err
	}
	closeConn := closeStore
	closeStore = func() {
		if err := c.events.Unsubscribe(alerts); err != nil {
			c.logger.Warn("failed to drop low stock alerts", zap.Error(err))
		}
		closeConn()
	}

	c.engine = fulfillment.NewEngine(store,
		fulfillment.WithLogger(c.logger),
		fulfillment.WithEventStore(c.events))

	if c.scenario != nil {
		if err := c.seedCatalog(ctx); err != nil {
			closeStore()
			return nil, err
		}
	}
	return closeStore, nil
}

// seedCatalog defines the scenario materials and products. Entries already
// present (a reused database) are left as they are.
func (c *FulfillmentCommand) seedCatalog(ctx context.Context) error {
	for _, m := range c.scenario.Materials {
		if _, err := c.engine.DefineMaterial(ctx, *m); err != nil {
			if errors.Is(err, entities.ErrDuplicateID) {
				c.logger.Debug("material already defined", zap.String("material_id", string(m.ID)))
				continue
			}
			return fmt.Errorf("failed to define material %s: %w", m.ID, err)
		}
	}
	for _, p := range c.scenario.Products {
		if _, err := c.engine.GetProduct(ctx, p.ID); err == nil {
			c.logger.Debug("product already defined", zap.String("product_id", string(p.ID)))
			continue
		}
		if _, err := c.engine.DefineProduct(ctx, *p); err != nil {
			return fmt.Errorf("failed to define product %s: %w", p.ID, err)
		}
	}
	return nil
}

// replayForMemory runs the scenario orders first when the store is in-memory,
// so order commands have something to act on
func (c *FulfillmentCommand) replayForMemory(ctx context.Context) error {
	if c.config.Store != config.StoreMemory {
		return nil
	}
	_, err := c.runScenario(ctx)
	return err
}

// showHelp displays the help message
func (c *FulfillmentCommand) showHelp() {
	fmt.Fprintf(c.out, `Fulfillment Engine CLI - inventory allocation and order fulfillment

USAGE:
    fulfillment [options] <action> [args]

ACTIONS:
    report                          Materials, products with buildable counts, low stock
    buildable [product...]          Buildable quantity per product (all when none given)
    low-stock                       Materials below their reorder threshold
    explode <product> [qty]         Exploded BOM tree
    adjust <material> <delta>       Manual on-hand correction (receiving, audit)
    shortages                       Shortages of every scenario order against current stock
    run                             Submit every scenario order and reserve stock for it
    orders [status...]              List orders, optionally filtered by status
    transition <order> <status>...  Move an order through one or more lifecycle steps
    track <order> <number>          Attach a tracking number to a shipped order
    reconcile                       Release reservations of orders that no longer hold stock
    order-shortages <order>         Shortages of a queued order against current stock
    readdress <order> <address>     Change the shipping address of an open order
    delete-order <order>            Delete a queued, fulfilled or cancelled order
    generate [options]              Write a synthetic scenario (see generate -help)

OPTIONS:
    -config <file>      Config file (yaml, toml or json)
    -store <kind>       memory or postgres (default: memory)
    -dsn <dsn>          Postgres connection string
    -scenario <dir>     Scenario directory with CSV files
    -format <fmt>       Output format: text, json, csv (default: text)
    -output <dir>       Output directory for results (optional)
    -log-level <level>  debug, info, warn, error (default: info)
    -verbose            Enable verbose output
    -help               Show this help message

Every option may also be set through FULFILLMENT_<OPTION> environment variables.
With the memory store, order actions replay 'run' on the scenario first.

SCENARIO DIRECTORY STRUCTURE:
    scenario_name/
    ├── materials.csv   # material_id,name,color_tag,on_hand,unit_label,reorder_threshold
    ├── products.csv    # product_id,name,sku,color_tag,price
    ├── bom.csv         # product_id,component_id,kind,qty_per
    └── orders.csv      # order_id,customer,email,shipping_address,target_id,kind,quantity,unit_price,backorder

EXAMPLES:
    fulfillment -scenario example/tshirt-shop report
    fulfillment -scenario example/tshirt-shop -format json run
    fulfillment -scenario example/tshirt-shop transition ORD-1001 InProgress Shipped
    fulfillment -store postgres -dsn postgres://localhost/shop adjust TEE-RED-M 24
`)
}
