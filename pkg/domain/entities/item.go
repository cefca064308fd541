package entities

import (
	"fmt"
	"math"
)

// MaterialID identifies a raw material in the ledger
type MaterialID string

// ProductID identifies an assembled product (or kit)
type ProductID string

// Quantity represents an integer quantity value for discrete units
type Quantity int64

// MulQuantity returns a*b for non-negative quantities, failing instead of wrapping
func MulQuantity(a, b Quantity) (Quantity, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("multiply %d by %d: %w", a, b, ErrInvalidQuantity)
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, &QuantityOverflowError{Op: "*", Left: a, Right: b}
	}
	return a * b, nil
}

// AddQuantity returns a+b, failing instead of wrapping
func AddQuantity(a, b Quantity) (Quantity, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, &QuantityOverflowError{Op: "+", Left: a, Right: b}
	}
	return a + b, nil
}

// TargetKind tags what a BOM line or order line points at
type TargetKind int

const (
	KindMaterial TargetKind = iota
	KindProduct
)

// String method for TargetKind enum
func (k TargetKind) String() string {
	switch k {
	case KindMaterial:
		return "Material"
	case KindProduct:
		return "Product"
	default:
		return "Unknown"
	}
}

// ParseTargetKind parses the textual form used in CSV files and the CLI
func ParseTargetKind(s string) (TargetKind, error) {
	switch s {
	case "Material", "material", "M":
		return KindMaterial, nil
	case "Product", "product", "P":
		return KindProduct, nil
	default:
		return 0, fmt.Errorf("invalid target kind: %s", s)
	}
}

// MarshalText lets TargetKind render as text in JSON output
func (k TargetKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the textual form back into a TargetKind
func (k *TargetKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTargetKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
