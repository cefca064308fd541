package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup and administrative errors
var (
	ErrMaterialNotFound = errors.New("material not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateSKU     = errors.New("sku already in use")
	ErrDuplicateID      = errors.New("id already in use")
	ErrMaterialInUse    = errors.New("material is referenced or reserved")
	ErrProductInUse     = errors.New("product is referenced by another product")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrOrderActive      = errors.New("order is active")
)

// InsufficientStockError is returned when a reservation exceeds available stock
type InsufficientStockError struct {
	MaterialID MaterialID
	Requested  Quantity
	Available  Quantity
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for material %s: requested %d, available %d",
		e.MaterialID, e.Requested, e.Available)
}

// QuantityOverflowError is returned when quantity arithmetic leaves the int64 range
type QuantityOverflowError struct {
	Op    string
	Left  Quantity
	Right Quantity
}

func (e *QuantityOverflowError) Error() string {
	return fmt.Sprintf("quantity overflow: %d %s %d is out of range", e.Left, e.Op, e.Right)
}

// Unwrap lets callers treat an overflow as an invalid quantity
func (e *QuantityOverflowError) Unwrap() error {
	return ErrInvalidQuantity
}

// OrderConflictError is returned when an order's status changed under a writer
// that expected it to still be Expected
type OrderConflictError struct {
	OrderID  string
	Expected OrderStatus
}

func (e *OrderConflictError) Error() string {
	return fmt.Sprintf("order %s is no longer %s", e.OrderID, e.Expected)
}

// NegativeStockError is returned when an adjustment would drive on-hand below reserved
type NegativeStockError struct {
	MaterialID MaterialID
	OnHand     Quantity
	Reserved   Quantity
	Delta      Quantity
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("adjusting material %s by %d would leave on-hand %d below reserved %d",
		e.MaterialID, e.Delta, e.OnHand+e.Delta, e.Reserved)
}

// InvalidReleaseError is returned when a release exceeds the reserved quantity
type InvalidReleaseError struct {
	MaterialID MaterialID
	Units      Quantity
	Reserved   Quantity
}

func (e *InvalidReleaseError) Error() string {
	return fmt.Sprintf("cannot release %d units of material %s: only %d reserved",
		e.Units, e.MaterialID, e.Reserved)
}

// InvalidCommitError is returned when a commit exceeds the reserved quantity
type InvalidCommitError struct {
	MaterialID MaterialID
	Units      Quantity
	Reserved   Quantity
}

func (e *InvalidCommitError) Error() string {
	return fmt.Sprintf("cannot commit %d units of material %s: only %d reserved",
		e.Units, e.MaterialID, e.Reserved)
}

// CyclicBOMError is returned when a product's BOM reaches itself
type CyclicBOMError struct {
	Path []ProductID
}

func (e *CyclicBOMError) Error() string {
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = string(p)
	}
	return fmt.Sprintf("BOM cycle detected: %s", strings.Join(parts, " -> "))
}

// IllegalTransitionError is returned for status changes absent from the lifecycle table
type IllegalTransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for order %s: %s -> %s", e.OrderID, e.From, e.To)
}

// ShortageError reports every material an order cannot currently be covered for
type ShortageError struct {
	OrderID string
	Lines   []ShortageLine
}

func (e *ShortageError) Error() string {
	parts := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		parts[i] = fmt.Sprintf("%s short %d (needed %d, available %d)", l.MaterialID, l.Short, l.Needed, l.Available)
	}
	subject := "order"
	if e.OrderID != "" {
		subject = "order " + e.OrderID
	}
	return fmt.Sprintf("cannot reserve %s: %s", subject, strings.Join(parts, "; "))
}

// Unwrap exposes the first shortage as an InsufficientStockError so callers can
// match either the aggregate or the single-material failure with errors.As.
func (e *ShortageError) Unwrap() error {
	if len(e.Lines) == 0 {
		return nil
	}
	l := e.Lines[0]
	return &InsufficientStockError{MaterialID: l.MaterialID, Requested: l.Needed, Available: l.Available}
}
