package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		dup     error
		wantDup bool
	}{
		{"unique violation", &pgconn.PgError{Code: PgErrUniqueViolation}, entities.ErrDuplicateSKU, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: PgErrUniqueViolation}), entities.ErrDuplicateID, true},
		{"check violation", &pgconn.PgError{Code: PgErrCheckViolation}, entities.ErrDuplicateID, false},
		{"plain error", errors.New("connection reset"), entities.ErrDuplicateID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "thing X", tt.dup)
			require.Error(t, err)
			assert.Equal(t, tt.wantDup, errors.Is(err, tt.dup))
			assert.Contains(t, err.Error(), "thing X")
		})
	}

	assert.NoError(t, mapError(nil, "thing X", entities.ErrDuplicateID))
}

func TestNotFound(t *testing.T) {
	err := notFound(gorm.ErrRecordNotFound, "order O-1", entities.ErrOrderNotFound)
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)

	other := errors.New("timeout")
	err = notFound(other, "order O-1", entities.ErrOrderNotFound)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestProductRowsKeepBOMOrder(t *testing.T) {
	p := &entities.Product{
		ID:    "KIT",
		Name:  "Kit",
		SKU:   "KIT-1",
		Price: decimal.RequireFromString("12.50"),
		BOM: []entities.BOMLine{
			{ComponentID: "SHIRT", Kind: entities.KindProduct, QtyPer: 2},
			{ComponentID: "BAG", Kind: entities.KindMaterial, QtyPer: 1},
		},
	}

	row, edges := productFromEntity(p)
	require.Len(t, edges, 2)
	assert.Equal(t, "Product", edges[0].Kind)
	assert.Equal(t, 1, edges[1].Position)

	back, err := row.toEntity(edges)
	require.NoError(t, err)
	assert.Equal(t, p.BOM, back.BOM)
	assert.True(t, p.Price.Equal(back.Price))
}

func TestOrderRowsNumberLinesFromOne(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	o := &entities.Order{
		ID:        "O-1",
		Customer:  "alice",
		Status:    entities.StatusInProgress,
		CreatedAt: created,
		UpdatedAt: created,
		Lines: []entities.OrderLine{
			{TargetID: "TSH", Kind: entities.KindProduct, Quantity: 3, UnitPrice: decimal.RequireFromString("25.99")},
			{TargetID: "INK", Kind: entities.KindMaterial, Quantity: 1, UnitPrice: decimal.Zero},
		},
	}

	row, lines := orderFromEntity(o)
	assert.Equal(t, "In Progress", row.Status)
	assert.Equal(t, 1, lines[0].LineNo)
	assert.Equal(t, 2, lines[1].LineNo)

	back, err := row.toEntity(lines)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusInProgress, back.Status)
	assert.Equal(t, o.Lines[1].Kind, back.Lines[1].Kind)
	assert.True(t, o.Total().Equal(back.Total()))
}

func TestReservationsFromRowsGroupsByOrder(t *testing.T) {
	rows := []reservationRow{
		{OrderID: "O-1", MaterialID: "A", Units: 2},
		{OrderID: "O-1", MaterialID: "B", Units: 1},
		{OrderID: "O-2", MaterialID: "A", Units: 4},
	}

	reservations := reservationsFromRows(rows)
	require.Len(t, reservations, 2)
	assert.Equal(t, entities.Quantity(3), reservations[0].TotalUnits())
	assert.Equal(t, entities.Quantity(4), reservations[1].Units["A"])
	assert.Empty(t, reservationsFromRows(nil))
}
