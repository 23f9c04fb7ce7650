package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmpvdesign/dsa-scrape/config"
	"github.com/mmpvdesign/dsa-scrape/models"
	"github.com/mmpvdesign/dsa-scrape/pipeline"
	"github.com/mmpvdesign/dsa-scrape/scraper"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	clientsDefault := ""
	if value, ok := config.EnvString("DSA_CLIENT_IDS"); ok {
		clientsDefault = value
	}
	baseDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("DSA_BASE_URL"); ok {
		baseDefault = value
	}
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("DSA_OUTPUT_DIR"); ok {
		outputDefault = value
	}
	proxyDefault := defaultCfg.ProxyURL
	if value, ok := config.EnvString("DSA_PROXY_URL"); ok {
		proxyDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("DSA_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	retriesDefault := defaultCfg.MaxRetries
	if value, ok, err := config.EnvInt("DSA_MAX_RETRIES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid DSA_MAX_RETRIES: %v\n", err)
		os.Exit(1)
	} else if ok {
		retriesDefault = value
	}

	clients := flag.String("clients", clientsDefault, "Comma-separated district client IDs (e.g. 36-67,19-64)")
	baseURL := flag.String("base-url", baseDefault, "Tracker application base URL")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout.Seconds()), "Per-request timeout (seconds)")
	maxRetries := flag.Int("max-retries", retriesDefault, "Maximum retry attempts per request")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff.Milliseconds()), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax.Milliseconds()), "Maximum retry backoff (milliseconds)")
	proxyURL := flag.String("proxy", proxyDefault, "Proxy URL for outbound requests")
	outputDir := flag.String("output-dir", outputDefault, "Directory for output files")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	detailed := flag.Bool("detailed", defaultCfg.Detailed, "Fetch per-project detail pages")
	debugCapture := flag.Bool("debug-capture", false, "Record response snippets for troubleshooting")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := buildConfigFromFlags(*baseURL, *clients, *delayMs, *timeoutSec, *maxRetries, *retryBackoffMs, *retryBackoffMaxMs, *proxyURL, *outputDir, *outputFormat, *detailed, *debugCapture, *metricsAddr, *verbose)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if len(cfg.ClientIDs) == 0 {
		slog.Error("no districts given; pass -clients or set DSA_CLIENT_IDS")
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("districts", len(cfg.ClientIDs)),
		slog.Bool("detailed", cfg.Detailed),
	)

	s, err := scraper.New(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	startTime := time.Now()
	result, err := s.Run(ctx, cfg.ClientIDs)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	outputPath, err := pipeline.Export(result, pipeline.ExportOptions{
		Dir:       cfg.OutputDir,
		Format:    cfg.OutputFormat,
		Detailed:  cfg.Detailed,
		ClientIDs: cfg.ClientIDs,
	})
	if err != nil {
		slog.Error("writing output failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if cfg.DebugCapture {
		for _, line := range s.Client().DebugLog() {
			slog.Debug("capture", slog.String("entry", line))
		}
	}

	printSummary(result, time.Since(startTime), outputPath)
}

func buildConfigFromFlags(baseURL, clients string, delayMs, timeoutSec, maxRetries, retryBackoffMs, retryBackoffMaxMs int, proxyURL, outputDir, outputFormat string, detailed, debugCapture bool, metricsAddr string, verbose bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.ClientIDs = splitClientIDs(clients)
	cfg.Delay = time.Duration(delayMs) * time.Millisecond
	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.MaxRetries = maxRetries
	cfg.RetryBackoff = time.Duration(retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(retryBackoffMaxMs) * time.Millisecond
	cfg.ProxyURL = proxyURL
	cfg.OutputDir = outputDir
	cfg.OutputFormat = strings.ToLower(outputFormat)
	cfg.Detailed = detailed
	cfg.DebugCapture = debugCapture
	cfg.MetricsAddr = metricsAddr
	cfg.Verbose = verbose
	return cfg
}

func splitClientIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printSummary(result *models.ScrapeResult, duration time.Duration, outputPath string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	stats := result.Stats
	fmt.Printf("  Districts:     %d\n", result.Districts)
	fmt.Printf("  Projects:      %d\n", len(result.Projects))
	fmt.Printf("  Detail pages:  %d\n", len(result.DetailedProjects))
	successRate := 0.0
	if stats.TotalRequests > 0 {
		successRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests) * 100
	}
	fmt.Printf("  Requests:      %d\n", stats.TotalRequests)
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if len(result.FailedLinks) > 0 {
		fmt.Printf("  Failed links:  %d\n", len(result.FailedLinks))
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputPath)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
