package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/discount-allocator/internal/cli"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/config"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/logging"
)

func main() {
	var configFile string

	// Global flags
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	subArgs := args[1:]

	cfg := loadConfig(configFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch subcommand {
	case "serve":
		var flags *cli.ServeFlags
		if flags, err = cli.ParseServeFlags(subArgs); err == nil {
			stop() // serve installs its own shutdown handler
			err = cli.RunServe(cfg, flags)
		}
	case "process":
		var flags *cli.ProcessFlags
		if flags, err = cli.ParseProcessFlags(subArgs); err == nil {
			err = cli.RunProcess(ctx, cfg, flags)
		}
	case "backfill":
		var flags *cli.BackfillFlags
		if flags, err = cli.ParseBackfillFlags(subArgs); err == nil {
			err = cli.RunBackfill(ctx, cfg, flags)
		}
	default:
		fmt.Printf("Unknown subcommand: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Discount allocation engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  discounts [-config file] <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [-port N]                         Run the HTTP API")
	fmt.Println("  process <order-id>...                   Allocate discounts for orders")
	fmt.Println("  backfill [-page-size N] [-cutoff DATE]  Migrate historical orders")
	fmt.Println("           [-all] [-retry-failed]")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  -config string   Configuration file path (default config.yaml, then environment)")
}

func loadConfig(configFile string) *config.Config {
	if configFile == "" {
		for _, candidate := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFile = candidate
				break
			}
		}
	}

	if configFile == "" {
		return config.LoadFromEnv()
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logger := logging.NewLogger(config.LoggingConfig{Level: "info"})
		logger.Error("Failed to load config", slog.String("path", configFile), slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}
