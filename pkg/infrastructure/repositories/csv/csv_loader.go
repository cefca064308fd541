package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// Scenario file names inside a scenario directory
const (
	MaterialsFile = "materials.csv"
	ProductsFile  = "products.csv"
	BOMFile       = "bom.csv"
	OrdersFile    = "orders.csv"
)

var (
	materialsHeader = []string{"material_id", "name", "color_tag", "on_hand", "unit_label", "reorder_threshold"}
	productsHeader  = []string{"product_id", "name", "sku", "color_tag", "price"}
	bomHeader       = []string{"product_id", "component_id", "kind", "qty_per"}
	ordersHeader    = []string{"order_id", "customer", "email", "shipping_address", "target_id", "kind", "quantity", "unit_price", "backorder"}
)

// Scenario is a complete shop loaded from a directory of CSV files.
// Products are ordered so that every kit follows the products it contains.
type Scenario struct {
	Materials []*entities.Material
	Products  []*entities.Product
	Orders    []entities.OrderDraft
}

// Loader handles loading shop data from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadScenario loads materials, products with their BOMs, and orders from dir.
// orders.csv is optional.
func (l *Loader) LoadScenario(dir string) (*Scenario, error) {
	materials, err := l.LoadMaterials(filepath.Join(dir, MaterialsFile))
	if err != nil {
		return nil, err
	}
	products, err := l.LoadProducts(filepath.Join(dir, ProductsFile), filepath.Join(dir, BOMFile))
	if err != nil {
		return nil, err
	}

	var orders []entities.OrderDraft
	ordersPath := filepath.Join(dir, OrdersFile)
	if _, statErr := os.Stat(ordersPath); statErr == nil {
		orders, err = l.LoadOrders(ordersPath)
		if err != nil {
			return nil, err
		}
	}

	return &Scenario{
		Materials: materials,
		Products:  dependencyOrder(products),
		Orders:    orders,
	}, nil
}

// LoadMaterials loads materials from a CSV file
func (l *Loader) LoadMaterials(filename string) ([]*entities.Material, error) {
	records, err := readRecords(filename, "materials", materialsHeader)
	if err != nil {
		return nil, err
	}

	var materials []*entities.Material
	for i, record := range records {
		m, err := parseMaterial(record)
		if err != nil {
			return nil, fmt.Errorf("materials CSV row %d: %w", i+2, err)
		}
		materials = append(materials, m)
	}
	return materials, nil
}

// LoadProducts loads products and attaches the BOM lines from bomFilename
func (l *Loader) LoadProducts(filename, bomFilename string) ([]*entities.Product, error) {
	records, err := readRecords(filename, "products", productsHeader)
	if err != nil {
		return nil, err
	}
	boms, err := l.LoadBOM(bomFilename)
	if err != nil {
		return nil, err
	}

	var products []*entities.Product
	seen := make(map[entities.ProductID]bool)
	for i, record := range records {
		id := entities.ProductID(record[0])
		price, err := decimal.NewFromString(record[4])
		if err != nil {
			return nil, fmt.Errorf("products CSV row %d: invalid price: %s", i+2, record[4])
		}
		p, err := entities.NewProduct(id, record[1], record[2], record[3], price, boms[id])
		if err != nil {
			return nil, fmt.Errorf("products CSV row %d: %w", i+2, err)
		}
		seen[id] = true
		products = append(products, p)
	}

	for id := range boms {
		if !seen[id] {
			return nil, fmt.Errorf("BOM CSV references unknown product %s", id)
		}
	}
	return products, nil
}

// LoadBOM loads BOM lines from a CSV file, grouped by parent product in file order
func (l *Loader) LoadBOM(filename string) (map[entities.ProductID][]entities.BOMLine, error) {
	records, err := readRecords(filename, "BOM", bomHeader)
	if err != nil {
		return nil, err
	}

	boms := make(map[entities.ProductID][]entities.BOMLine)
	for i, record := range records {
		kind, err := entities.ParseTargetKind(record[2])
		if err != nil {
			return nil, fmt.Errorf("BOM CSV row %d: %w", i+2, err)
		}
		qtyPer, err := strconv.ParseInt(record[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("BOM CSV row %d: invalid qty_per: %s", i+2, record[3])
		}
		line, err := entities.NewBOMLine(record[1], kind, entities.Quantity(qtyPer))
		if err != nil {
			return nil, fmt.Errorf("BOM CSV row %d: %w", i+2, err)
		}
		parent := entities.ProductID(record[0])
		boms[parent] = append(boms[parent], *line)
	}
	return boms, nil
}

// LoadOrders loads order drafts; consecutive rows sharing an order_id form one order
func (l *Loader) LoadOrders(filename string) ([]entities.OrderDraft, error) {
	records, err := readRecords(filename, "orders", ordersHeader)
	if err != nil {
		return nil, err
	}

	var drafts []entities.OrderDraft
	index := make(map[string]int)
	for i, record := range records {
		line, backorder, err := parseOrderLine(record)
		if err != nil {
			return nil, fmt.Errorf("orders CSV row %d: %w", i+2, err)
		}

		id := record[0]
		if pos, ok := index[id]; ok && id != "" {
			drafts[pos].Lines = append(drafts[pos].Lines, line)
			drafts[pos].Backorder = drafts[pos].Backorder || backorder
			continue
		}
		if id != "" {
			index[id] = len(drafts)
		}
		drafts = append(drafts, entities.OrderDraft{
			ID:              id,
			Customer:        record[1],
			Email:           record[2],
			ShippingAddress: record[3],
			Lines:           []entities.OrderLine{line},
			Backorder:       backorder,
		})
	}

	for i, d := range drafts {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("orders CSV order %d (%s): %w", i+1, d.ID, err)
		}
	}
	return drafts, nil
}

// Helper functions for parsing CSV records

// readRecords opens filename, checks the header and returns the data rows
func readRecords(filename, what string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", what, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", what, err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s CSV must have a header row", what)
	}
	if !validateHeader(records[0], expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", what, expectedHeader, records[0])
	}

	rows := records[1:]
	for i, record := range rows {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", what, i+2, len(expectedHeader), len(record))
		}
	}
	return rows, nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseMaterial(record []string) (*entities.Material, error) {
	onHand, err := strconv.ParseInt(record[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid on_hand: %s", record[3])
	}
	threshold := int64(0)
	if record[5] != "" {
		threshold, err = strconv.ParseInt(record[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reorder_threshold: %s", record[5])
		}
	}
	return entities.NewMaterial(
		entities.MaterialID(record[0]),
		record[1],
		record[2],
		entities.Quantity(onHand),
		record[4],
		entities.Quantity(threshold),
	)
}

func parseOrderLine(record []string) (entities.OrderLine, bool, error) {
	kind, err := entities.ParseTargetKind(record[5])
	if err != nil {
		return entities.OrderLine{}, false, err
	}
	quantity, err := strconv.ParseInt(record[6], 10, 64)
	if err != nil {
		return entities.OrderLine{}, false, fmt.Errorf("invalid quantity: %s", record[6])
	}
	unitPrice := decimal.Zero
	if record[7] != "" {
		unitPrice, err = decimal.NewFromString(record[7])
		if err != nil {
			return entities.OrderLine{}, false, fmt.Errorf("invalid unit_price: %s", record[7])
		}
	}
	backorder := false
	if record[8] != "" {
		backorder, err = strconv.ParseBool(record[8])
		if err != nil {
			return entities.OrderLine{}, false, fmt.Errorf("invalid backorder flag: %s", record[8])
		}
	}
	return entities.OrderLine{
		TargetID:  record[4],
		Kind:      kind,
		Quantity:  entities.Quantity(quantity),
		UnitPrice: unitPrice,
	}, backorder, nil
}

// dependencyOrder returns products in post-order over their kit references,
// visiting roots by id. Products caught in a cycle are still emitted once so
// the catalog can reject them with a proper error.
func dependencyOrder(products []*entities.Product) []*entities.Product {
	byID := make(map[entities.ProductID]*entities.Product, len(products))
	ids := make([]entities.ProductID, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ordered := make([]*entities.Product, 0, len(products))
	visited := make(map[entities.ProductID]bool, len(products))
	var visit func(id entities.ProductID)
	visit = func(id entities.ProductID) {
		p, ok := byID[id]
		if !ok || visited[id] {
			return
		}
		visited[id] = true
		for _, child := range p.SubProducts() {
			visit(child)
		}
		ordered = append(ordered, p)
	}
	for _, id := range ids {
		visit(id)
	}
	return ordered
}
