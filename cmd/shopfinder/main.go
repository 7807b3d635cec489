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

	"github.com/idealinvestse/shoppi-shop-finder/config"
	"github.com/idealinvestse/shoppi-shop-finder/finder"
	"github.com/idealinvestse/shoppi-shop-finder/pipeline"
	"github.com/idealinvestse/shoppi-shop-finder/shopclient"
	"github.com/idealinvestse/shoppi-shop-finder/state"
)

func main() {
	defaultCfg := config.DefaultConfig()

	wordlistDefault := defaultCfg.WordlistPath
	if value, ok := config.EnvString("SHOPPI_WORDLIST"); ok {
		wordlistDefault = value
	}
	outputDefault := defaultCfg.OutputPath
	if value, ok := config.EnvString("SHOPPI_OUTPUT"); ok {
		outputDefault = value
	}
	stateDefault := defaultCfg.StatePath
	if value, ok := config.EnvString("SHOPPI_STATE"); ok {
		stateDefault = value
	}
	baseURLDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("SHOPPI_BASE_URL"); ok {
		baseURLDefault = value
	}
	concurrentDefault := defaultCfg.MaxConcurrent
	if value, ok, err := config.EnvInt("SHOPPI_CONCURRENT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SHOPPI_CONCURRENT: %v\n", err)
		os.Exit(1)
	} else if ok {
		concurrentDefault = value
	}
	resumeDefault := defaultCfg.Resume
	if value, ok, err := config.EnvBool("SHOPPI_RESUME"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SHOPPI_RESUME: %v\n", err)
		os.Exit(1)
	} else if ok {
		resumeDefault = value
	}
	dsnDefault := defaultCfg.PostgresDSN
	if value, ok := config.EnvString("SHOPPI_POSTGRES_DSN"); ok {
		dsnDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SHOPPI_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	wordlist := flag.String("wordlist", wordlistDefault, "Shop name wordlist, one name per line")
	output := flag.String("output", outputDefault, "Output file path")
	statePath := flag.String("state", stateDefault, "Checkpoint file path")
	baseURL := flag.String("base-url", baseURLDefault, "Product listing URL template with a {shop} placeholder")
	concurrent := flag.Int("concurrent", concurrentDefault, "Number of concurrent shop fetches")
	rateLimitMs := flag.Int("rate-limit", int(defaultCfg.RateLimit/time.Millisecond), "Delay between requests per worker (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Per-request timeout (seconds)")
	maxTries := flag.Int("max-tries", defaultCfg.MaxTries, "Maximum fetch attempts per shop")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	retryMaxElapsedSec := flag.Int("retry-max-elapsed", int(defaultCfg.RetryMaxElapsed/time.Second), "Total retry budget per shop (seconds)")
	circuitThreshold := flag.Int("circuit-threshold", defaultCfg.CircuitThreshold, "Consecutive failures before the circuit opens")
	circuitTimeoutSec := flag.Int("circuit-timeout", int(defaultCfg.CircuitTimeout/time.Second), "Circuit cool-down before a probe request (seconds)")
	bufferSize := flag.Int("buffer", defaultCfg.BufferSize, "Products buffered before a write")
	checkpointEvery := flag.Int("checkpoint-every", defaultCfg.CheckpointEvery, "Shops processed between checkpoint saves")
	resume := flag.Bool("resume", resumeDefault, "Resume from an existing checkpoint and append to output")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, dual, or postgres")
	postgresDSN := flag.String("postgres-dsn", dsnDefault, "PostgreSQL connection string (format=postgres)")
	pgBouncer := flag.Bool("pg-bouncer", false, "Connect through PgBouncer (simple protocol)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.WordlistPath = *wordlist
	cfg.OutputPath = *output
	cfg.StatePath = *statePath
	cfg.BaseURL = *baseURL
	cfg.MaxConcurrent = *concurrent
	cfg.RateLimit = time.Duration(*rateLimitMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.MaxTries = *maxTries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.RetryMaxElapsed = time.Duration(*retryMaxElapsedSec) * time.Second
	cfg.CircuitThreshold = *circuitThreshold
	cfg.CircuitTimeout = time.Duration(*circuitTimeoutSec) * time.Second
	cfg.BufferSize = *bufferSize
	cfg.CheckpointEvery = *checkpointEvery
	cfg.Resume = *resume
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.PostgresDSN = *postgresDSN
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	shops, err := finder.LoadWordlist(cfg.WordlistPath)
	if err != nil {
		slog.Error("loading wordlist", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	writer, err := createWriter(ctx, cfg, *pgBouncer)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	checkpoint := state.NewStore(cfg.StatePath, cfg.CheckpointEvery)
	if cfg.Resume {
		n, err := checkpoint.Load()
		if err != nil {
			slog.Error("loading checkpoint", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("resuming from checkpoint",
			slog.String("path", cfg.StatePath),
			slog.Int("processed_shops", n),
		)
	}

	client, err := shopclient.New(cfg)
	if err != nil {
		slog.Error("initialising client", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := finder.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting harvest",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("shops", len(shops)),
		slog.Int("workers", cfg.MaxConcurrent),
		slog.String("output", cfg.OutputPath),
	)

	f, err := finder.New(cfg, client, writer, checkpoint, metrics)
	if err != nil {
		slog.Error("initialising finder", slog.Any("error", err))
		os.Exit(1)
	}

	snapshot, runErr := f.Run(ctx, shops)

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	fmt.Println("\n" + snapshot.Summary())
	fmt.Printf("  Output file:     %s\n", cfg.OutputPath)

	if runErr != nil {
		slog.Error("harvest failed", slog.Any("error", runErr))
		os.Exit(1)
	}
}

func createWriter(ctx context.Context, cfg *config.Config, pgBouncer bool) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputPath, cfg.Resume)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputPath, cfg.Resume)
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputPath, ".csv") + ".json"
		return pipeline.NewDualWriter(cfg.OutputPath, jsonFilename, cfg.Resume)
	case "postgres":
		return pipeline.NewPostgresWriter(ctx, cfg.PostgresDSN, cfg.MaxConcurrent, pgBouncer)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
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
