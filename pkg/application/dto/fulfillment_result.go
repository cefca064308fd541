package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// MaterialSnapshot is the authoritative post-state of a material returned to callers
type MaterialSnapshot struct {
	ID               entities.MaterialID `json:"id"`
	Name             string              `json:"name"`
	ColorTag         string              `json:"color_tag,omitempty"`
	OnHand           entities.Quantity   `json:"on_hand"`
	Reserved         entities.Quantity   `json:"reserved"`
	Available        entities.Quantity   `json:"available"`
	UnitLabel        string              `json:"unit_label,omitempty"`
	ReorderThreshold entities.Quantity   `json:"reorder_threshold"`
	Low              bool                `json:"low"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// NewMaterialSnapshot copies a material into its snapshot form
func NewMaterialSnapshot(m entities.Material) MaterialSnapshot {
	return MaterialSnapshot{
		ID:               m.ID,
		Name:             m.Name,
		ColorTag:         m.ColorTag,
		OnHand:           m.OnHand,
		Reserved:         m.Reserved,
		Available:        m.Available(),
		UnitLabel:        m.UnitLabel,
		ReorderThreshold: m.ReorderThreshold,
		Low:              m.BelowReorderThreshold(),
		UpdatedAt:        m.UpdatedAt,
	}
}

// ProductSnapshot is a product with its derived buildable quantity
type ProductSnapshot struct {
	ID        entities.ProductID `json:"id"`
	Name      string             `json:"name"`
	SKU       string             `json:"sku"`
	ColorTag  string             `json:"color_tag,omitempty"`
	Price     decimal.Decimal    `json:"price"`
	BOM       []entities.BOMLine `json:"bom"`
	Buildable entities.Quantity  `json:"buildable"`
}

// NewProductSnapshot copies a product and attaches its buildable count
func NewProductSnapshot(p *entities.Product, buildable entities.Quantity) ProductSnapshot {
	bom := make([]entities.BOMLine, len(p.BOM))
	copy(bom, p.BOM)
	return ProductSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		ColorTag:  p.ColorTag,
		Price:     p.Price,
		BOM:       bom,
		Buildable: buildable,
	}
}

// OrderSnapshot is the authoritative post-state of an order
type OrderSnapshot struct {
	ID               string                                     `json:"id"`
	Customer         string                                     `json:"customer"`
	Email            string                                     `json:"email,omitempty"`
	ShippingAddress  string                                     `json:"shipping_address,omitempty"`
	Status           entities.OrderStatus                       `json:"status"`
	Lines            []entities.OrderLine                       `json:"lines"`
	Total            decimal.Decimal                            `json:"total"`
	CreatedAt        time.Time                                  `json:"created_at"`
	UpdatedAt        time.Time                                  `json:"updated_at"`
	ExpectedDelivery *time.Time                                 `json:"expected_delivery,omitempty"`
	TrackingNumber   string                                     `json:"tracking_number,omitempty"`
	Reserved         map[entities.MaterialID]entities.Quantity `json:"reserved,omitempty"`
}

// NewOrderSnapshot copies an order; reservation may be nil
func NewOrderSnapshot(o *entities.Order, reservation *entities.Reservation) OrderSnapshot {
	lines := make([]entities.OrderLine, len(o.Lines))
	copy(lines, o.Lines)

	snap := OrderSnapshot{
		ID:               o.ID,
		Customer:         o.Customer,
		Email:            o.Email,
		ShippingAddress:  o.ShippingAddress,
		Status:           o.Status,
		Lines:            lines,
		Total:            o.Total(),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		ExpectedDelivery: o.ExpectedDelivery,
		TrackingNumber:   o.TrackingNumber,
	}
	if reservation != nil {
		snap.Reserved = make(map[entities.MaterialID]entities.Quantity, len(reservation.Units))
		for id, units := range reservation.Units {
			snap.Reserved[id] = units
		}
	}
	return snap
}

// SubmitResult is returned when an order is accepted into the queue
type SubmitResult struct {
	Order      OrderSnapshot           `json:"order"`
	CanFulfill bool                    `json:"can_fulfill"`
	Shortages  []entities.ShortageLine `json:"shortages,omitempty"`
}

// StockReport is a point-in-time view of the whole catalog
type StockReport struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Materials   []MaterialSnapshot `json:"materials"`
	Products    []ProductSnapshot  `json:"products"`
	LowStock    []MaterialSnapshot `json:"low_stock"`
}

// ReleasedReservation describes a reservation discarded by reconciliation
type ReleasedReservation struct {
	OrderID string                                     `json:"order_id"`
	Status  entities.OrderStatus                       `json:"status,omitempty"`
	Units   map[entities.MaterialID]entities.Quantity `json:"units"`
}

// ReconcileResult lists every reservation reconciliation released
type ReconcileResult struct {
	Released []ReleasedReservation `json:"released"`
}

// OrderOutcome records what a batch run did with one order draft
type OrderOutcome struct {
	OrderID    string                  `json:"order_id"`
	Customer   string                  `json:"customer"`
	Status     entities.OrderStatus    `json:"status,omitempty"`
	CanFulfill bool                    `json:"can_fulfill"`
	Shortages  []entities.ShortageLine `json:"shortages,omitempty"`
	Error      string                  `json:"error,omitempty"`
}
