package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_Transitions(t *testing.T) {
	all := []OrderStatus{StatusQueued, StatusReserved, StatusInProgress, StatusShipped, StatusFulfilled, StatusCancelled}
	legal := map[[2]OrderStatus]bool{
		{StatusQueued, StatusReserved}:      true,
		{StatusReserved, StatusInProgress}:  true,
		{StatusInProgress, StatusShipped}:   true,
		{StatusShipped, StatusFulfilled}:    true,
		{StatusQueued, StatusCancelled}:     true,
		{StatusReserved, StatusCancelled}:   true,
		{StatusInProgress, StatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			expected := legal[[2]OrderStatus{from, to}]
			if got := from.CanTransitionTo(to); got != expected {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, expected, got)
			}
		}
	}
}

func TestOrderStatus_Predicates(t *testing.T) {
	if !StatusFulfilled.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Error("Fulfilled and Cancelled must be terminal")
	}
	if StatusShipped.IsTerminal() {
		t.Error("Shipped is not terminal")
	}
	if !StatusReserved.HoldsReservation() || !StatusInProgress.HoldsReservation() {
		t.Error("Reserved and In Progress hold reservations")
	}
	if StatusQueued.HoldsReservation() || StatusShipped.HoldsReservation() {
		t.Error("Queued and Shipped hold no reservation")
	}

	for _, s := range []OrderStatus{StatusQueued, StatusReserved, StatusInProgress} {
		if !s.Editable() {
			t.Errorf("Expected %s to be editable", s)
		}
	}
	if StatusShipped.Editable() || StatusCancelled.Editable() {
		t.Error("Shipped and Cancelled orders are not editable")
	}
	for _, s := range []OrderStatus{StatusQueued, StatusFulfilled, StatusCancelled} {
		if !s.Deletable() {
			t.Errorf("Expected %s to be deletable", s)
		}
	}
	for _, s := range []OrderStatus{StatusReserved, StatusInProgress, StatusShipped} {
		if s.Deletable() {
			t.Errorf("Expected %s not to be deletable", s)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	testCases := map[string]OrderStatus{
		"Queued":      StatusQueued,
		"reserved":    StatusReserved,
		"In Progress": StatusInProgress,
		"in_progress": StatusInProgress,
		"inprogress":  StatusInProgress,
		"SHIPPED":     StatusShipped,
		"fulfilled":   StatusFulfilled,
		"cancelled":   StatusCancelled,
	}
	for input, expected := range testCases {
		got, err := ParseOrderStatus(input)
		if err != nil {
			t.Errorf("Expected %q to parse: %v", input, err)
			continue
		}
		if got != expected {
			t.Errorf("Expected %s for %q, got %s", expected, input, got)
		}
	}

	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestOrder_Validation(t *testing.T) {
	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	draft := OrderDraft{
		Customer:        "Sarah Johnson",
		Email:           "sarah@example.com",
		ShippingAddress: "123 Main St",
		Lines: []OrderLine{
			{TargetID: "TSH-RED-M", Kind: KindProduct, Quantity: 2, UnitPrice: decimal.RequireFromString("25.99")},
			{TargetID: "PRINT", Kind: KindMaterial, Quantity: 3, UnitPrice: decimal.RequireFromString("1.50")},
		},
	}

	order, err := NewOrder("ORD-001", draft, createdAt)
	if err != nil {
		t.Fatalf("Expected valid order creation to succeed: %v", err)
	}
	if order.Status != StatusQueued {
		t.Errorf("Expected status Queued, got %s", order.Status)
	}
	if !order.Total().Equal(decimal.RequireFromString("56.48")) {
		t.Errorf("Expected total 56.48, got %s", order.Total())
	}

	// Test validation failures
	testCases := []struct {
		name        string
		id          string
		mutate      func(d *OrderDraft)
		expectError string
	}{
		{"empty id", "", func(d *OrderDraft) {}, "order id cannot be empty"},
		{"empty customer", "ORD", func(d *OrderDraft) { d.Customer = "" }, "customer cannot be empty"},
		{"no lines", "ORD", func(d *OrderDraft) { d.Lines = nil }, "order must have at least one line"},
		{
			"zero quantity",
			"ORD",
			func(d *OrderDraft) { d.Lines = []OrderLine{{TargetID: "X", Kind: KindMaterial, Quantity: 0}} },
			"line 1: quantity must be positive, got 0",
		},
		{
			"empty target",
			"ORD",
			func(d *OrderDraft) { d.Lines = []OrderLine{{Kind: KindProduct, Quantity: 1}} },
			"line 1: target id cannot be empty",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := draft
			d.Lines = append([]OrderLine(nil), draft.Lines...)
			tc.mutate(&d)
			_, err := NewOrder(tc.id, d, createdAt)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestRequirements_MaterialIDsSorted(t *testing.T) {
	reqs := Requirements{}
	reqs.Add("M3", 1)
	reqs.Add("M1", 2)
	reqs.Merge(Requirements{"M2": 4, "M1": 1})

	ids := reqs.MaterialIDs()
	expected := []MaterialID{"M1", "M2", "M3"}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, ids)
		}
	}
	if reqs["M1"] != 3 {
		t.Errorf("Expected M1 = 3, got %d", reqs["M1"])
	}
}
