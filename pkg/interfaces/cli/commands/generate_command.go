package commands

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/infrastructure/repositories/csv"
)

// GenerateConfig holds configuration for scenario generation
type GenerateConfig struct {
	Blanks    int     // Number of blank garment materials (color x size)
	Designs   int     // Number of print design materials
	Products  int     // Number of printed products
	Kits      int     // Number of kits built from products
	Orders    int     // Number of orders
	Stock     float64 // Stock multiplier against total order demand (e.g., 0.5 = half coverage)
	OutputDir string  // Output directory for generated files
	Seed      int64   // Random seed for reproducible generation
	Help      bool    // Show help
	Verbose   bool    // Verbose output
}

// GenerateCommand writes a synthetic shop scenario in the CSV layout the loader reads
type GenerateCommand struct {
	config GenerateConfig
	rand   *rand.Rand
	out    io.Writer

	blanks   []string
	designs  []string
	products []genProduct
	kits     []genKit
	demand   map[string]int
}

type genProduct struct {
	id, blank, design string
	price             string
}

type genKit struct {
	id       string
	price    string
	contents []genKitLine
}

type genKitLine struct {
	product int
	qty     int
}

var (
	garmentColors = []string{"RED", "BLK", "WHT", "NVY", "GRY", "GRN", "YEL", "PNK"}
	garmentSizes  = []string{"XS", "S", "M", "L", "XL", "XXL"}
)

// NewGenerateCommand creates a new generate command
func NewGenerateCommand(config GenerateConfig) *GenerateCommand {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &GenerateCommand{
		config: config,
		rand:   rand.New(rand.NewSource(seed)),
		out:    os.Stdout,
		demand: make(map[string]int),
	}
}

// Execute runs the generate command
func (cmd *GenerateCommand) Execute(ctx context.Context) error {
	if cmd.config.Help {
		cmd.printHelp()
		return nil
	}
	if err := cmd.validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.out,
			"🔧 Generating scenario with %d blanks, %d designs, %d products, %d kits, %d orders, %.1fx stock\n",
			cmd.config.Blanks, cmd.config.Designs, cmd.config.Products, cmd.config.Kits,
			cmd.config.Orders, cmd.config.Stock)
		fmt.Fprintf(cmd.out, "📁 Output directory: %s\n", cmd.config.OutputDir)
	}

	if err := os.MkdirAll(cmd.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd.generateCatalog()

	// orders first: stock is sized from their demand
	if err := cmd.generateOrders(); err != nil {
		return fmt.Errorf("failed to generate orders: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cmd.generateMaterials(); err != nil {
		return fmt.Errorf("failed to generate materials: %w", err)
	}
	if err := cmd.generateProducts(); err != nil {
		return fmt.Errorf("failed to generate products: %w", err)
	}
	if err := cmd.generateBOM(); err != nil {
		return fmt.Errorf("failed to generate BOM: %w", err)
	}

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.out, "✅ Scenario generated successfully in %s\n", cmd.config.OutputDir)
	}
	return nil
}

func (cmd *GenerateCommand) validate() error {
	if cmd.config.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if cmd.config.Blanks < 1 || cmd.config.Blanks > len(garmentColors)*len(garmentSizes) {
		return fmt.Errorf("blanks must be between 1 and %d, got %d", len(garmentColors)*len(garmentSizes), cmd.config.Blanks)
	}
	if cmd.config.Designs < 1 {
		return fmt.Errorf("designs must be positive, got %d", cmd.config.Designs)
	}
	if cmd.config.Products < 1 {
		return fmt.Errorf("products must be positive, got %d", cmd.config.Products)
	}
	if cmd.config.Kits > 0 && cmd.config.Products < 2 {
		return fmt.Errorf("kits need at least 2 products")
	}
	if cmd.config.Orders < 0 || cmd.config.Kits < 0 || cmd.config.Stock < 0 {
		return fmt.Errorf("orders, kits and stock cannot be negative")
	}
	return nil
}

// generateCatalog picks the materials, products and kits
func (cmd *GenerateCommand) generateCatalog() {
	for i := 0; i < cmd.config.Blanks; i++ {
		color := garmentColors[i/len(garmentSizes)]
		size := garmentSizes[i%len(garmentSizes)]
		cmd.blanks = append(cmd.blanks, fmt.Sprintf("BLANK-%s-%s", color, size))
	}
	for i := 0; i < cmd.config.Designs; i++ {
		cmd.designs = append(cmd.designs, fmt.Sprintf("PRINT-%03d", i+1))
	}

	for i := 0; i < cmd.config.Products; i++ {
		cmd.products = append(cmd.products, genProduct{
			id:     fmt.Sprintf("TSH-%04d", i+1),
			blank:  cmd.blanks[cmd.rand.Intn(len(cmd.blanks))],
			design: cmd.designs[cmd.rand.Intn(len(cmd.designs))],
			price:  cmd.generatePrice(1899, 3499),
		})
	}

	for i := 0; i < cmd.config.Kits; i++ {
		size := 2 + cmd.rand.Intn(2)
		if size > len(cmd.products) {
			size = len(cmd.products)
		}
		kit := genKit{id: fmt.Sprintf("KIT-%03d", i+1), price: cmd.generatePrice(4999, 8999)}
		for _, p := range cmd.rand.Perm(len(cmd.products))[:size] {
			kit.contents = append(kit.contents, genKitLine{product: p, qty: 1 + cmd.rand.Intn(3)})
		}
		cmd.kits = append(cmd.kits, kit)
	}
}

// generatePrice returns a price in [minCents, maxCents] ending in .99
func (cmd *GenerateCommand) generatePrice(minCents, maxCents int) string {
	dollars := (minCents + cmd.rand.Intn(maxCents-minCents+1)) / 100
	return fmt.Sprintf("%d.99", dollars)
}

// generateOrders creates the orders.csv file
func (cmd *GenerateCommand) generateOrders() error {
	file, err := os.Create(filepath.Join(cmd.config.OutputDir, csv.OrdersFile))
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintln(file, "order_id,customer,email,shipping_address,target_id,kind,quantity,unit_price,backorder")

	for i := 0; i < cmd.config.Orders; i++ {
		orderID := fmt.Sprintf("ORD-%05d", i+1)
		customer := fmt.Sprintf("Customer %d", 1+cmd.rand.Intn(cmd.config.Orders))
		email := fmt.Sprintf("customer%d@example.com", i+1)
		address := fmt.Sprintf("%d Market St", 1+cmd.rand.Intn(999))
		backorder := cmd.rand.Float64() < 0.1

		used := make(map[string]bool)
		lines := 1 + cmd.rand.Intn(3)
		for l := 0; l < lines; l++ {
			targetID, kind, price, qty, needs := cmd.generateOrderLine()
			if used[targetID] {
				continue
			}
			used[targetID] = true
			for id, units := range needs {
				cmd.demand[id] += units
			}
			fmt.Fprintf(file, "%s,%s,%s,%s,%s,%s,%d,%s,%t\n",
				orderID, customer, email, address, targetID, kind, qty, price, backorder)
		}
	}
	return nil
}

// generateOrderLine picks a kit, product or loose material and the material units it needs
func (cmd *GenerateCommand) generateOrderLine() (string, entities.TargetKind, string, int, map[string]int) {
	qty := 1 + cmd.rand.Intn(5)
	needs := make(map[string]int)
	addProduct := func(p genProduct, units int) {
		needs[p.blank] += units
		needs[p.design] += units
	}

	roll := cmd.rand.Float64()
	switch {
	case roll < 0.15 && len(cmd.kits) > 0:
		kit := cmd.kits[cmd.rand.Intn(len(cmd.kits))]
		for _, line := range kit.contents {
			addProduct(cmd.products[line.product], qty*line.qty)
		}
		return kit.id, entities.KindProduct, kit.price, qty, needs
	case roll < 0.9:
		p := cmd.products[cmd.rand.Intn(len(cmd.products))]
		addProduct(p, qty)
		return p.id, entities.KindProduct, p.price, qty, needs
	default:
		blank := cmd.blanks[cmd.rand.Intn(len(cmd.blanks))]
		needs[blank] += qty
		return blank, entities.KindMaterial, cmd.generatePrice(499, 899), qty, needs
	}
}

// generateMaterials creates the materials.csv file sized by the stock multiplier
func (cmd *GenerateCommand) generateMaterials() error {
	file, err := os.Create(filepath.Join(cmd.config.OutputDir, csv.MaterialsFile))
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintln(file, "material_id,name,color_tag,on_hand,unit_label,reorder_threshold")

	for i, id := range cmd.blanks {
		color := garmentColors[i/len(garmentSizes)]
		size := garmentSizes[i%len(garmentSizes)]
		onHand := int(float64(cmd.demand[id]) * cmd.config.Stock)
		fmt.Fprintf(file, "%s,Blank T-Shirt - %s / %s,%s,%d,PCS,%d\n",
			id, color, size, color, onHand, 12+cmd.rand.Intn(24))
	}
	for _, id := range cmd.designs {
		onHand := int(float64(cmd.demand[id]) * cmd.config.Stock)
		fmt.Fprintf(file, "%s,Print Design %s,,%d,PCS,%d\n", id, id, onHand, cmd.rand.Intn(10))
	}
	return nil
}

// generateProducts creates the products.csv file
func (cmd *GenerateCommand) generateProducts() error {
	file, err := os.Create(filepath.Join(cmd.config.OutputDir, csv.ProductsFile))
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintln(file, "product_id,name,sku,color_tag,price")
	for _, p := range cmd.products {
		fmt.Fprintf(file, "%s,Printed Tee %s,%s-SKU,,%s\n", p.id, p.id, p.id, p.price)
	}
	for _, k := range cmd.kits {
		fmt.Fprintf(file, "%s,Bundle %s,%s-SKU,,%s\n", k.id, k.id, k.id, k.price)
	}
	return nil
}

// generateBOM creates the bom.csv file
func (cmd *GenerateCommand) generateBOM() error {
	file, err := os.Create(filepath.Join(cmd.config.OutputDir, csv.BOMFile))
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintln(file, "product_id,component_id,kind,qty_per")
	for _, p := range cmd.products {
		fmt.Fprintf(file, "%s,%s,Material,1\n", p.id, p.blank)
		fmt.Fprintf(file, "%s,%s,Material,1\n", p.id, p.design)
	}
	for _, k := range cmd.kits {
		lines := append([]genKitLine(nil), k.contents...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].product < lines[j].product })
		for _, line := range lines {
			fmt.Fprintf(file, "%s,%s,Product,%d\n", k.id, cmd.products[line.product].id, line.qty)
		}
	}
	return nil
}

// printHelp shows usage information
func (cmd *GenerateCommand) printHelp() {
	fmt.Fprintln(cmd.out, `Fulfillment Scenario Generator

USAGE:
    fulfillment generate [OPTIONS]

OPTIONS:
    -blanks <N>         Number of blank garment materials, up to 48 (default: 12)
    -designs <N>        Number of print designs (default: 5)
    -products <N>       Number of printed products (default: 20)
    -kits <N>           Number of kits built from products (default: 3)
    -orders <N>         Number of orders (default: 50)
    -stock <F>          Stock multiplier against order demand (e.g., 0.5 = half coverage) (default: 1.0)
    -output <DIR>       Output directory for generated files (required)
    -seed <N>           Random seed for reproducible generation (optional)
    -verbose            Enable verbose output
    -help               Show this help message

EXAMPLES:
    # Generate a shop that can cover about half its orders
    fulfillment generate -orders 200 -stock 0.5 -output ./busy_shop

    # Generate reproducible scenario
    fulfillment generate -products 100 -kits 10 -orders 1000 -seed 12345 -output ./repro_shop`)
}
