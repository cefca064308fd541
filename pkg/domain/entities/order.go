package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents a step in the order lifecycle
type OrderStatus string

const (
	StatusQueued     OrderStatus = "Queued"
	StatusReserved   OrderStatus = "Reserved"
	StatusInProgress OrderStatus = "In Progress"
	StatusShipped    OrderStatus = "Shipped"
	StatusFulfilled  OrderStatus = "Fulfilled"
	StatusCancelled  OrderStatus = "Cancelled"
)

// transitions is the complete lifecycle table; any pair not listed is illegal
var transitions = map[OrderStatus][]OrderStatus{
	StatusQueued:     {StatusReserved, StatusCancelled},
	StatusReserved:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusFulfilled},
}

// ParseOrderStatus accepts the display form as well as compact spellings like "inprogress"
func ParseOrderStatus(s string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
	for _, status := range []OrderStatus{StatusQueued, StatusReserved, StatusInProgress, StatusShipped, StatusFulfilled, StatusCancelled} {
		if strings.ToLower(strings.ReplaceAll(string(status), " ", "")) == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid order status: %s", s)
}

// CanTransitionTo reports whether the lifecycle table allows moving to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

// HoldsReservation reports whether an order in this status owns reserved stock
func (s OrderStatus) HoldsReservation() bool {
	return s == StatusReserved || s == StatusInProgress
}

// Editable reports whether an order's contact details may still change
func (s OrderStatus) Editable() bool {
	return s == StatusQueued || s.HoldsReservation()
}

// Deletable reports whether an order may be removed outright
func (s OrderStatus) Deletable() bool {
	return s == StatusQueued || s.IsTerminal()
}

// OrderLine is a polymorphic order line: it targets either a product or a raw material
type OrderLine struct {
	TargetID  string          `json:"target_id"`
	Kind      TargetKind      `json:"kind"`
	Quantity  Quantity        `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal returns quantity times unit price
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderDraft is the caller-supplied shape of an order before it is accepted
type OrderDraft struct {
	ID               string      `json:"id,omitempty"`
	Customer         string      `json:"customer"`
	Email            string      `json:"email"`
	ShippingAddress  string      `json:"shipping_address"`
	ExpectedDelivery *time.Time  `json:"expected_delivery,omitempty"`
	Lines            []OrderLine `json:"lines"`
	// Backorder queues the order even when stock cannot currently cover it
	Backorder bool `json:"backorder"`
}

// Validate checks the draft independent of stock levels
func (d OrderDraft) Validate() error {
	if d.Customer == "" {
		return fmt.Errorf("customer cannot be empty")
	}
	if len(d.Lines) == 0 {
		return fmt.Errorf("order must have at least one line")
	}
	for i, line := range d.Lines {
		if line.TargetID == "" {
			return fmt.Errorf("line %d: target id cannot be empty", i+1)
		}
		if line.Kind != KindMaterial && line.Kind != KindProduct {
			return fmt.Errorf("line %d: invalid target kind %d", i+1, line.Kind)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d: quantity must be positive, got %d", i+1, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d: unit price cannot be negative, got %s", i+1, line.UnitPrice)
		}
	}
	return nil
}

// OrderInfo holds the fields of an order that can be edited after submission.
// Lines and status are never edited this way.
type OrderInfo struct {
	Customer         string     `json:"customer"`
	Email            string     `json:"email"`
	ShippingAddress  string     `json:"shipping_address"`
	ExpectedDelivery *time.Time `json:"expected_delivery,omitempty"`
}

// Validate checks the edited fields
func (i OrderInfo) Validate() error {
	if strings.TrimSpace(i.Customer) == "" {
		return fmt.Errorf("customer cannot be empty")
	}
	return nil
}

// Order is the single order entity covering both product and material orders
type Order struct {
	ID               string      `json:"id"`
	Customer         string      `json:"customer"`
	Email            string      `json:"email"`
	ShippingAddress  string      `json:"shipping_address"`
	Status           OrderStatus `json:"status"`
	Lines            []OrderLine `json:"lines"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ExpectedDelivery *time.Time  `json:"expected_delivery,omitempty"`
	TrackingNumber   string      `json:"tracking_number,omitempty"`
}

// NewOrder creates a validated Order in the Queued state
func NewOrder(id string, draft OrderDraft, createdAt time.Time) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("order id cannot be empty")
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	lines := make([]OrderLine, len(draft.Lines))
	copy(lines, draft.Lines)

	return &Order{
		ID:               id,
		Customer:         draft.Customer,
		Email:            draft.Email,
		ShippingAddress:  draft.ShippingAddress,
		Status:           StatusQueued,
		Lines:            lines,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
		ExpectedDelivery: draft.ExpectedDelivery,
	}, nil
}

// Info returns the editable fields of the order
func (o *Order) Info() OrderInfo {
	return OrderInfo{
		Customer:         o.Customer,
		Email:            o.Email,
		ShippingAddress:  o.ShippingAddress,
		ExpectedDelivery: o.ExpectedDelivery,
	}
}

// ApplyInfo replaces the editable fields of the order
func (o *Order) ApplyInfo(info OrderInfo) {
	o.Customer = info.Customer
	o.Email = info.Email
	o.ShippingAddress = info.ShippingAddress
	o.ExpectedDelivery = info.ExpectedDelivery
}

// Total sums every line total
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.LineTotal())
	}
	return total
}
