package events

import (
	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

const (
	OrderSubmittedEvent    = "order.submitted"
	OrderTransitionedEvent = "order.transitioned"
	OrderUpdatedEvent      = "order.updated"
	OrderDeletedEvent      = "order.deleted"

	StockReservedEvent  = "stock.reserved"
	StockReleasedEvent  = "stock.released"
	StockCommittedEvent = "stock.committed"
	StockAdjustedEvent  = "stock.adjusted"
	StockLowEvent       = "stock.low"

	ShortageIdentifiedEvent = "shortage.identified"
)

type OrderSubmitted struct {
	Order     entities.Order          `json:"order"`
	Shortages []entities.ShortageLine `json:"shortages,omitempty"`
}

type OrderTransitioned struct {
	OrderID string               `json:"order_id"`
	From    entities.OrderStatus `json:"from"`
	To      entities.OrderStatus `json:"to"`
}

type OrderUpdated struct {
	OrderID string             `json:"order_id"`
	Info    entities.OrderInfo `json:"info"`
}

type OrderDeleted struct {
	OrderID string               `json:"order_id"`
	Status  entities.OrderStatus `json:"status"`
}

type StockMoved struct {
	OrderID string                                     `json:"order_id"`
	Units   map[entities.MaterialID]entities.Quantity `json:"units"`
}

type StockAdjusted struct {
	MaterialID entities.MaterialID `json:"material_id"`
	Delta      entities.Quantity   `json:"delta"`
	OnHand     entities.Quantity   `json:"on_hand"`
	Reserved   entities.Quantity   `json:"reserved"`
}

type StockLow struct {
	MaterialID       entities.MaterialID `json:"material_id"`
	Available        entities.Quantity   `json:"available"`
	ReorderThreshold entities.Quantity   `json:"reorder_threshold"`
}

type ShortageIdentified struct {
	OrderID string                  `json:"order_id"`
	Lines   []entities.ShortageLine `json:"lines"`
}

func NewOrderSubmittedEvent(order entities.Order, shortages []entities.ShortageLine) Event {
	return NewEvent(OrderSubmittedEvent, order.ID, OrderSubmitted{Order: order, Shortages: shortages})
}

func NewOrderTransitionedEvent(orderID string, from, to entities.OrderStatus) Event {
	return NewEvent(OrderTransitionedEvent, orderID, OrderTransitioned{OrderID: orderID, From: from, To: to})
}

func NewOrderUpdatedEvent(orderID string, info entities.OrderInfo) Event {
	return NewEvent(OrderUpdatedEvent, orderID, OrderUpdated{OrderID: orderID, Info: info})
}

func NewOrderDeletedEvent(orderID string, status entities.OrderStatus) Event {
	return NewEvent(OrderDeletedEvent, orderID, OrderDeleted{OrderID: orderID, Status: status})
}

// NewStockMovedEvent builds a reserved, released or committed event for an order's units
func NewStockMovedEvent(eventType string, reservation *entities.Reservation) Event {
	return NewEvent(eventType, reservation.OrderID, StockMoved{OrderID: reservation.OrderID, Units: reservation.Units})
}

func NewStockAdjustedEvent(material entities.Material, delta entities.Quantity) Event {
	return NewEvent(StockAdjustedEvent, string(material.ID), StockAdjusted{
		MaterialID: material.ID,
		Delta:      delta,
		OnHand:     material.OnHand,
		Reserved:   material.Reserved,
	})
}

func NewStockLowEvent(material entities.Material) Event {
	return NewEvent(StockLowEvent, string(material.ID), StockLow{
		MaterialID:       material.ID,
		Available:        material.Available(),
		ReorderThreshold: material.ReorderThreshold,
	})
}

func NewShortageIdentifiedEvent(orderID string, lines []entities.ShortageLine) Event {
	return NewEvent(ShortageIdentifiedEvent, orderID, ShortageIdentified{OrderID: orderID, Lines: lines})
}
