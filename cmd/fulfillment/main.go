package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/vsinha/fulfillment/pkg/config"
	"github.com/vsinha/fulfillment/pkg/infrastructure/logging"
	"github.com/vsinha/fulfillment/pkg/interfaces/cli/commands"
)

func main() {
	// Command line flags
	var (
		configFile = flag.String("config", "", "Path to config file (optional)")
		store      = flag.String("store", "", "Store backend: memory, postgres")
		dsn        = flag.String("dsn", "", "Postgres connection string")
		scenario   = flag.String("scenario", "", "Path to scenario directory containing CSV files")
		format     = flag.String("format", "", "Output format: text, json, csv")
		outputDir  = flag.String("output", "", "Output directory for results (optional)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
		verbose    = flag.Bool("verbose", false, "Enable verbose output")
		help       = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if flag.Arg(0) == "generate" {
		runGenerate(flag.Args()[1:])
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// explicitly set flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			cfg.Store = *store
		case "dsn":
			cfg.DSN = *dsn
		case "scenario":
			cfg.Scenario = *scenario
		case "format":
			cfg.Format = *format
		case "output":
			cfg.Output = *outputDir
		case "log-level":
			cfg.LogLevel = *logLevel
		case "verbose":
			cfg.Verbose = *verbose
		}
	})

	logger, err := logging.New(cfg.LogLevel, cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	action := flag.Arg(0)
	if *help {
		action = "help"
	}
	var args []string
	if flag.NArg() > 1 {
		args = flag.Args()[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := commands.NewFulfillmentCommand(cfg, action, args, logger)
	if err := cmd.Execute(ctx); err != nil {
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runGenerate parses the generator's own flags and writes a scenario
func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	config := commands.GenerateConfig{}
	fs.IntVar(&config.Blanks, "blanks", 12, "Number of blank garment materials")
	fs.IntVar(&config.Designs, "designs", 5, "Number of print designs")
	fs.IntVar(&config.Products, "products", 20, "Number of printed products")
	fs.IntVar(&config.Kits, "kits", 3, "Number of kits built from products")
	fs.IntVar(&config.Orders, "orders", 50, "Number of orders")
	fs.Float64Var(&config.Stock, "stock", 1.0, "Stock multiplier against order demand")
	fs.StringVar(&config.OutputDir, "output", "", "Output directory for generated files")
	fs.Int64Var(&config.Seed, "seed", 0, "Random seed for reproducible generation")
	fs.BoolVar(&config.Verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&config.Help, "help", false, "Show help message")
	_ = fs.Parse(args)

	if err := commands.NewGenerateCommand(config).Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
