package memory

import (
	"sync"
	"time"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// materialEntry pairs a material with the lock that serializes its ledger mutations
type materialEntry struct {
	mu       sync.Mutex
	material entities.Material
}

// Store provides in-memory storage for the whole engine.
//
// Lock order: mu (structural) before any materialEntry.mu, entries in
// ascending material id, then resMu.
type Store struct {
	mu        sync.RWMutex
	materials map[entities.MaterialID]*materialEntry
	products  map[entities.ProductID]*entities.Product
	orders    map[string]*entities.Order

	resMu        sync.Mutex
	reservations map[string]*entities.Reservation

	lockMu     sync.Mutex
	orderLocks map[string]*orderLock

	now func() time.Time
}

// orderLock is a one-slot semaphore so waiters can give up when ctx is done
type orderLock struct {
	slot chan struct{}
	refs int
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		materials:    make(map[entities.MaterialID]*materialEntry),
		products:     make(map[entities.ProductID]*entities.Product),
		orders:       make(map[string]*entities.Order),
		reservations: make(map[string]*entities.Reservation),
		orderLocks:   make(map[string]*orderLock),
		now:          time.Now,
	}
}

// Verify interface compliance
var _ repositories.Store = (*Store)(nil)

func copyReservation(r *entities.Reservation) *entities.Reservation {
	if r == nil {
		return nil
	}
	units := make(map[entities.MaterialID]entities.Quantity, len(r.Units))
	for id, q := range r.Units {
		units[id] = q
	}
	return &entities.Reservation{OrderID: r.OrderID, Units: units, CreatedAt: r.CreatedAt}
}

func copyProduct(p *entities.Product) *entities.Product {
	cp := *p
	cp.BOM = make([]entities.BOMLine, len(p.BOM))
	copy(cp.BOM, p.BOM)
	return &cp
}

func copyOrder(o *entities.Order) *entities.Order {
	cp := *o
	cp.Lines = make([]entities.OrderLine, len(o.Lines))
	copy(cp.Lines, o.Lines)
	if o.ExpectedDelivery != nil {
		t := *o.ExpectedDelivery
		cp.ExpectedDelivery = &t
	}
	return &cp
}
