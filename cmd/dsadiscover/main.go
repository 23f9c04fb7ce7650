package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmpvdesign/dsa-scrape/config"
	"github.com/mmpvdesign/dsa-scrape/districts"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	baseDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("DSA_BASE_URL"); ok {
		baseDefault = value
	}
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("DSA_OUTPUT_DIR"); ok {
		outputDefault = value
	}

	baseURL := flag.String("base-url", baseDefault, "Tracker application base URL")
	outputDir := flag.String("output-dir", outputDefault, "Directory for the district catalog")
	parallel := flag.Int("parallel", 2, "Number of concurrent county pages")
	delayMs := flag.Int("delay", 500, "Delay between county pages (milliseconds)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	level := &slog.LevelVar{}
	if *verbose {
		level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("discovering districts", slog.String("base_url", *baseURL))

	d, err := districts.NewDiscoverer(*baseURL, districts.DiscoverOptions{
		Parallelism: *parallel,
		Delay:       time.Duration(*delayMs) * time.Millisecond,
	})
	if err != nil {
		slog.Error("initialising discoverer", slog.Any("error", err))
		os.Exit(1)
	}

	found, err := d.Discover(ctx)
	if err != nil {
		slog.Error("discovery failed", slog.Any("error", err))
		os.Exit(1)
	}

	path, err := districts.WriteCatalog(*outputDir, found, time.Now())
	if err != nil {
		slog.Error("writing catalog failed", slog.Any("error", err))
		os.Exit(1)
	}

	byCounty := districts.ByCounty(found)
	fmt.Printf("\nDiscovered %d districts across %d counties\n", len(found), len(byCounty))
	fmt.Printf("Catalog written to %s\n", path)
}
