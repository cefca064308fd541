package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/application/services/bom"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

func sampleReport() *dto.StockReport {
	low := dto.MaterialSnapshot{ID: "TEE-RED-M", Name: "Red M", OnHand: 13, Reserved: 4, Available: 9, ReorderThreshold: 24, Low: true}
	return &dto.StockReport{
		Materials: []dto.MaterialSnapshot{low, {ID: "INK", Name: "Ink", OnHand: 50, Available: 50}},
		Products: []dto.ProductSnapshot{
			{ID: "TSH-RED-M", Name: "Red tee", SKU: "TSH-RED-M-001", Price: decimal.RequireFromString("25.99"), Buildable: 9},
		},
		LowStock: []dto.MaterialSnapshot{low},
	}
}

func TestGenerate_TextReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate("report", sampleReport(), Config{Format: "text", Writer: &buf}))

	out := buf.String()
	assert.Contains(t, out, "Materials")
	assert.Contains(t, out, "TSH-RED-M-001")
	assert.Contains(t, out, "25.99")
	assert.Contains(t, out, "Low Stock")
}

func TestGenerate_JSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate("report", sampleReport(), Config{Format: "json", Writer: &buf}))

	var decoded dto.StockReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Materials, 2)
	assert.Equal(t, entities.Quantity(9), decoded.Products[0].Buildable)
}

func TestGenerate_CSVToDirectory(t *testing.T) {
	dir := t.TempDir()
	outcomes := []dto.OrderOutcome{
		{OrderID: "ORD-1", Customer: "jane", Status: entities.StatusReserved, CanFulfill: true},
		{OrderID: "ORD-2", Customer: "wade", Status: entities.StatusQueued, Shortages: []entities.ShortageLine{
			{MaterialID: "TEE-RED-M", MaterialName: "Red M", Needed: 10, Available: 5, Short: 5},
		}},
	}
	require.NoError(t, Generate("run", outcomes, Config{Format: "csv", OutputDir: dir}))

	data, err := os.ReadFile(filepath.Join(dir, "run_shortages.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "order_id,material_id,material_name,needed,available,short", lines[0])
	assert.Equal(t, "ORD-2,TEE-RED-M,Red M,10,5,5", lines[1])

	_, err = os.Stat(filepath.Join(dir, "run_orders.csv"))
	assert.NoError(t, err)
}

func TestGenerate_TreeText(t *testing.T) {
	root := &bom.Node{ComponentID: "PACK", Name: "Pack", Kind: entities.KindProduct, Quantity: 1, Children: []*bom.Node{
		{ComponentID: "INK", Kind: entities.KindMaterial, Quantity: 3, Level: 1},
	}}

	var buf bytes.Buffer
	require.NoError(t, Generate("explode", root, Config{Format: "text", Writer: &buf}))
	assert.Contains(t, buf.String(), "PACK (Pack) x1 [Product]")
	assert.Contains(t, buf.String(), "  INK x3 [Material]")
}

func TestGenerate_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Generate("x", sampleReport(), Config{Format: "xml", Writer: &buf}))
	assert.Error(t, Generate("x", 42, Config{Format: "csv", Writer: &buf}))
}

func TestOrderTablesSortReservations(t *testing.T) {
	orders := []dto.OrderSnapshot{{
		ID:       "ORD-1",
		Status:   entities.StatusReserved,
		Total:    decimal.RequireFromString("51.98"),
		Reserved: map[entities.MaterialID]entities.Quantity{"PRINT": 2, "BLANK": 4},
	}}

	tables := orderTables(orders)
	require.Len(t, tables[1].rows, 2)
	assert.Equal(t, "BLANK", tables[1].rows[0][1])
	assert.Equal(t, "51.98", tables[0].rows[0][3])
}
