package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vsinha/fulfillment/pkg/application/dto"
	"github.com/vsinha/fulfillment/pkg/application/services/bom"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	// Writer receives output not saved to OutputDir; stdout when nil
	Writer io.Writer
}

func (c Config) writer() io.Writer {
	if c.Writer == nil {
		return os.Stdout
	}
	return c.Writer
}

// table is one titled grid of cells rendered as text or CSV
type table struct {
	name   string
	title  string
	header []string
	rows   [][]string
}

// Generate renders result in the configured format. name is used for the
// file names when OutputDir is set.
func Generate(name string, result any, config Config) error {
	switch config.Format {
	case "text", "":
		return generateTextOutput(result, config)
	case "json":
		return generateJSONOutput(name, result, config)
	case "csv":
		return generateCSVOutput(name, result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput creates human-readable text output
func generateTextOutput(result any, config Config) error {
	w := config.writer()
	if node, ok := result.(*bom.Node); ok {
		fmt.Fprintf(w, "🌳 BOM Explosion\n\n")
		writeTree(w, node)
		return nil
	}

	tables, err := toTables(result)
	if err != nil {
		return err
	}
	for _, t := range tables {
		writeTextTable(w, t)
	}
	return nil
}

// generateJSONOutput creates JSON output
func generateJSONOutput(name string, result any, config Config) error {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.writer(), string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, name+".json")
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes one CSV per table, to OutputDir or to the writer
func generateCSVOutput(name string, result any, config Config) error {
	tables, err := toTables(result)
	if err != nil {
		return err
	}

	if config.OutputDir == "" {
		for i, t := range tables {
			if i > 0 {
				fmt.Fprintln(config.writer())
			}
			if err := writeCSV(config.writer(), t); err != nil {
				return err
			}
		}
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, t := range tables {
		filename := filepath.Join(config.OutputDir, name+"_"+t.name+".csv")
		if err := writeCSVFile(filename, t); err != nil {
			return fmt.Errorf("failed to write %s CSV: %w", t.name, err)
		}
		if config.Verbose {
			fmt.Fprintf(config.writer(), "💾 %s saved to: %s\n", t.title, filename)
		}
	}
	return nil
}

func writeCSVFile(filename string, t table) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeCSV(file, t)
}

func writeCSV(w io.Writer, t table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeTextTable(w io.Writer, t table) {
	fmt.Fprintf(w, "%s\n", t.title)
	if len(t.rows) == 0 {
		fmt.Fprintf(w, "  (none)\n\n")
		return
	}

	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(t.header)
	dashes := make([]string, len(widths))
	for i, width := range widths {
		dashes[i] = strings.Repeat("-", width)
	}
	line(dashes)
	for _, row := range t.rows {
		line(row)
	}
	fmt.Fprintln(w)
}

func writeTree(w io.Writer, node *bom.Node) {
	label := node.ComponentID
	if node.Name != "" {
		label = fmt.Sprintf("%s (%s)", node.ComponentID, node.Name)
	}
	fmt.Fprintf(w, "%s%s x%d [%s]\n", strings.Repeat("  ", node.Level), label, node.Quantity, node.Kind)
	for _, child := range node.Children {
		writeTree(w, child)
	}
}

// toTables converts every result type the CLI produces into tables
func toTables(result any) ([]table, error) {
	switch r := result.(type) {
	case *dto.StockReport:
		return []table{
			materialTable("materials", "📦 Materials", r.Materials),
			productTable(r.Products),
			materialTable("low_stock", "⚠️  Low Stock", r.LowStock),
		}, nil
	case []dto.MaterialSnapshot:
		return []table{materialTable("materials", "📦 Materials", r)}, nil
	case *dto.MaterialSnapshot:
		return []table{materialTable("materials", "📦 Material", []dto.MaterialSnapshot{*r})}, nil
	case []dto.ProductSnapshot:
		return []table{productTable(r)}, nil
	case []dto.OrderOutcome:
		return outcomeTables(r), nil
	case []dto.OrderSnapshot:
		return orderTables(r), nil
	case *dto.OrderSnapshot:
		return orderTables([]dto.OrderSnapshot{*r}), nil
	case *dto.ReconcileResult:
		return []table{reconcileTable(r)}, nil
	case *bom.Node:
		return []table{treeTable(r)}, nil
	default:
		return nil, fmt.Errorf("unsupported result type %T", result)
	}
}

func qty(q entities.Quantity) string {
	return strconv.FormatInt(int64(q), 10)
}

func materialTable(name, title string, materials []dto.MaterialSnapshot) table {
	t := table{
		name:   name,
		title:  title,
		header: []string{"material_id", "name", "on_hand", "reserved", "available", "reorder_threshold", "low"},
	}
	for _, m := range materials {
		t.rows = append(t.rows, []string{
			string(m.ID), m.Name, qty(m.OnHand), qty(m.Reserved), qty(m.Available),
			qty(m.ReorderThreshold), strconv.FormatBool(m.Low),
		})
	}
	return t
}

func productTable(products []dto.ProductSnapshot) table {
	t := table{
		name:   "products",
		title:  "🏭 Products",
		header: []string{"product_id", "name", "sku", "price", "buildable"},
	}
	for _, p := range products {
		t.rows = append(t.rows, []string{string(p.ID), p.Name, p.SKU, p.Price.StringFixed(2), qty(p.Buildable)})
	}
	return t
}

func outcomeTables(outcomes []dto.OrderOutcome) []table {
	summary := table{
		name:   "orders",
		title:  "📋 Orders",
		header: []string{"order_id", "customer", "status", "can_fulfill", "error"},
	}
	shortages := table{
		name:   "shortages",
		title:  "⚠️  Shortages",
		header: []string{"order_id", "material_id", "material_name", "needed", "available", "short"},
	}
	for _, o := range outcomes {
		summary.rows = append(summary.rows, []string{
			o.OrderID, o.Customer, string(o.Status), strconv.FormatBool(o.CanFulfill), o.Error,
		})
		for _, s := range o.Shortages {
			shortages.rows = append(shortages.rows, []string{
				o.OrderID, string(s.MaterialID), s.MaterialName, qty(s.Needed), qty(s.Available), qty(s.Short),
			})
		}
	}
	return []table{summary, shortages}
}

func orderTables(orders []dto.OrderSnapshot) []table {
	summary := table{
		name:   "orders",
		title:  "📋 Orders",
		header: []string{"order_id", "customer", "status", "total", "tracking_number", "created_at"},
	}
	reserved := table{
		name:   "reservations",
		title:  "🔒 Reservations",
		header: []string{"order_id", "material_id", "units"},
	}
	for _, o := range orders {
		summary.rows = append(summary.rows, []string{
			o.ID, o.Customer, string(o.Status), o.Total.StringFixed(2), o.TrackingNumber,
			o.CreatedAt.Format("2006-01-02 15:04"),
		})
		ids := make([]entities.MaterialID, 0, len(o.Reserved))
		for id := range o.Reserved {
			ids = append(ids, id)
		}
		entities.SortMaterialIDs(ids)
		for _, id := range ids {
			reserved.rows = append(reserved.rows, []string{o.ID, string(id), qty(o.Reserved[id])})
		}
	}
	return []table{summary, reserved}
}

func reconcileTable(r *dto.ReconcileResult) table {
	t := table{
		name:   "released",
		title:  "🧹 Released Reservations",
		header: []string{"order_id", "status", "material_id", "units"},
	}
	for _, rel := range r.Released {
		status := string(rel.Status)
		if status == "" {
			status = "missing"
		}
		for _, id := range entities.Requirements(rel.Units).MaterialIDs() {
			t.rows = append(t.rows, []string{rel.OrderID, status, string(id), qty(rel.Units[id])})
		}
	}
	return t
}

func treeTable(root *bom.Node) table {
	t := table{
		name:   "explosion",
		title:  "🌳 BOM Explosion",
		header: []string{"level", "component_id", "kind", "name", "quantity"},
	}
	var walk func(n *bom.Node)
	walk = func(n *bom.Node) {
		t.rows = append(t.rows, []string{strconv.Itoa(n.Level), n.ComponentID, n.Kind.String(), n.Name, qty(n.Quantity)})
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
	return t
}
