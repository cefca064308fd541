package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/application/services/bom"
	"github.com/vsinha/fulfillment/pkg/application/services/fulfillment/internal/allocation"
	"github.com/vsinha/fulfillment/pkg/application/services/ledger"
	"github.com/vsinha/fulfillment/pkg/application/services/shortage"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
	"github.com/vsinha/fulfillment/pkg/domain/services"
	"github.com/vsinha/fulfillment/pkg/infrastructure/events"
)

// Engine is the fulfillment facade: catalog administration, stock queries,
// order submission and the order lifecycle over one shared ledger.
type Engine struct {
	store      repositories.Store
	resolver   *bom.Resolver
	calculator *shortage.Calculator
	ledger     *ledger.Ledger
	allocator  *allocation.Manager
	validator  *services.BOMValidator
	events     events.EventStore
	logger     *zap.Logger

	// orderLocks keeps goroutines of this engine off the store's order lock
	orderLocks *keyedMutex
	// catalogMu serializes catalog edits so BOM validation sees a stable catalog
	catalogMu sync.Mutex

	now   func() time.Time
	newID func() string
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventStore publishes domain events to store
func WithEventStore(store events.EventStore) Option {
	return func(e *Engine) {
		e.events = store
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides how order ids are generated
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// NewEngine creates an engine over the given store
func NewEngine(store repositories.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		logger:     zap.NewNop(),
		orderLocks: newKeyedMutex(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.resolver = bom.NewResolver(store)
	e.calculator = shortage.NewCalculator(e.resolver, store)
	e.ledger = ledger.NewLedger(store, e.logger)
	e.allocator = allocation.NewManager(e.resolver, store, e.logger, e.now)
	e.validator = services.NewBOMValidator()
	return e
}

// Resolver exposes the BOM resolver for read-only explosion queries
func (e *Engine) Resolver() *bom.Resolver {
	return e.resolver
}

// lockOrder serializes work on one order, first within this engine and then
// across every engine sharing the store
func (e *Engine) lockOrder(ctx context.Context, orderID string) (func(), error) {
	unlock := e.orderLocks.Lock(orderID)
	release, err := e.store.LockOrder(ctx, orderID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to lock order %s: %w", orderID, err)
	}
	return func() {
		release()
		unlock()
	}, nil
}

func (e *Engine) publish(event events.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.AppendEvent(event.StreamID(), event); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("event_type", event.Type()),
			zap.String("stream_id", event.StreamID()),
			zap.Error(err))
	}
}
