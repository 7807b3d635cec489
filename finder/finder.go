// Package finder orchestrates the concurrent shop harvest.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/idealinvestse/shoppi-shop-finder/breaker"
	"github.com/idealinvestse/shoppi-shop-finder/config"
	"github.com/idealinvestse/shoppi-shop-finder/models"
	"github.com/idealinvestse/shoppi-shop-finder/parser"
	"github.com/idealinvestse/shoppi-shop-finder/pipeline"
	"github.com/idealinvestse/shoppi-shop-finder/shopclient"
	"github.com/idealinvestse/shoppi-shop-finder/state"
	"github.com/idealinvestse/shoppi-shop-finder/stats"
)

// kindCircuitOpen labels shops skipped while the breaker fast-fails.
const kindCircuitOpen = "circuit_open"

// dedupeWindow bounds the duplicate-product guard so memory stays flat over
// runs against hundreds of thousands of shops.
const dedupeWindow = 1 << 16

// Fetcher issues one GET per shop name.
type Fetcher interface {
	Fetch(shop string) ([]models.RawProduct, error)
}

// Finder drives the fetch-validate-write-checkpoint cycle across a bounded
// worker pool.
type Finder struct {
	cfg        *config.Config
	client     Fetcher
	policy     shopclient.RetryPolicy
	breaker    *breaker.CircuitBreaker
	buffer     *pipeline.BufferedWriter
	checkpoint *state.Store
	stats      *stats.Aggregator
	metrics    *Metrics
	seen       *lru.Cache[string, struct{}]

	mu       sync.Mutex
	fatalErr error

	shutdownOnce sync.Once
}

// New assembles a finder around the given collaborators. metrics may be nil.
func New(cfg *config.Config, client Fetcher, sink pipeline.OutputWriter, checkpoint *state.Store, metrics *Metrics) (*Finder, error) {
	seen, err := lru.New[string, struct{}](dedupeWindow)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	return &Finder{
		cfg:        cfg,
		client:     client,
		policy:     shopclient.NewRetryPolicy(cfg),
		breaker:    breaker.New(cfg.CircuitThreshold, cfg.CircuitTimeout),
		buffer:     pipeline.NewBufferedWriter(sink, cfg.BufferSize),
		checkpoint: checkpoint,
		stats:      stats.New(),
		metrics:    metrics,
		seen:       seen,
	}, nil
}

// Run processes every shop name not already checkpointed and returns the
// final statistics. The shutdown sequence (drain workers, flush the buffer,
// persist the checkpoint) executes exactly once whether the run completes,
// is cancelled, or hits a fatal write error; the snapshot is returned in
// every case.
func (f *Finder) Run(ctx context.Context, shops []string) (stats.Snapshot, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < f.cfg.MaxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shop := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				if err := f.processShop(runCtx, shop); err != nil {
					f.setFatal(err)
					cancel()
				}
			}
		}()
	}

	skipped := 0
feed:
	for _, shop := range shops {
		if f.checkpoint.Processed(shop) {
			skipped++
			continue
		}
		select {
		case jobs <- shop:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if skipped > 0 {
		slog.Info("skipped already-processed shops", slog.Int("count", skipped))
	}

	var shutdownErr error
	f.shutdownOnce.Do(func() {
		if err := f.buffer.Flush(); err != nil {
			shutdownErr = fmt.Errorf("final flush: %w", err)
		}
		if err := f.checkpoint.Save(); err != nil {
			// Degrades resume only; a later run may reprocess some shops.
			slog.Error("checkpoint save failed", slog.Any("error", err))
		}
	})

	snapshot := f.stats.Snapshot()
	if err := f.fatal(); err != nil {
		return snapshot, err
	}
	if shutdownErr != nil {
		return snapshot, shutdownErr
	}
	return snapshot, nil
}

// processShop runs one fetch-validate-write-checkpoint cycle. Only fatal
// sink failures are returned; every other outcome becomes statistics.
func (f *Finder) processShop(ctx context.Context, shop string) error {
	if !f.breaker.Allow() {
		f.stats.AddError(kindCircuitOpen)
		f.metrics.IncError(kindCircuitOpen)
		slog.Debug("circuit open, skipping shop", slog.String("shop", shop))
		f.finishShop(shop)
		return nil
	}

	raws, err := f.fetchWithRetry(ctx, shop)
	f.metrics.SetCircuitState(float64(f.breaker.State()))
	if err != nil {
		var notFound shopclient.ErrNotFound
		if errors.As(err, &notFound) {
			// The remote answered; an absent shop still releases the breaker
			// so a half-open probe landing on a 404 closes the circuit.
			f.breaker.OnSuccess()
			f.metrics.SetCircuitState(float64(f.breaker.State()))
			f.stats.AddNotFound(1)
			slog.Debug("shop not found", slog.String("shop", shop))
			f.finishShop(shop)
			return nil
		}

		kind := shopclient.Kind(err)
		f.stats.AddError(kind)
		f.metrics.IncError(kind)
		if shopclient.CircuitFault(err) {
			f.breaker.OnFailure()
		} else {
			f.breaker.OnSuccess()
		}
		f.metrics.SetCircuitState(float64(f.breaker.State()))
		slog.Debug("shop fetch failed",
			slog.String("shop", shop),
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		f.finishShop(shop)
		return nil
	}

	f.breaker.OnSuccess()
	f.metrics.SetCircuitState(float64(f.breaker.State()))

	valid := 0
	for _, raw := range raws {
		product, err := parser.Build(shop, raw, time.Now())
		if err != nil {
			f.stats.AddError("validation_rejected")
			f.metrics.IncError("validation_rejected")
			slog.Debug("rejected product record", slog.String("shop", shop), slog.Any("error", err))
			continue
		}
		if already, _ := f.seen.ContainsOrAdd(product.Key(), struct{}{}); already {
			f.stats.AddError("duplicate_record")
			continue
		}
		if err := f.buffer.Append(product); err != nil {
			// Sink durability failure: abort without checkpointing the shop
			// so a resumed run retries it.
			return fmt.Errorf("write product for %q: %w", shop, err)
		}
		valid++
	}

	if valid > 0 {
		f.stats.AddFound(1)
		f.stats.AddProducts(int64(valid))
		f.metrics.IncFound()
		f.metrics.AddProducts(valid)
		slog.Info("found products", slog.String("shop", shop), slog.Int("products", valid))
	}

	f.finishShop(shop)
	return nil
}

// finishShop marks the terminal bookkeeping for one shop.
func (f *Finder) finishShop(shop string) {
	f.checkpoint.MarkProcessed(shop)
	f.stats.AddChecked(1)
	f.metrics.IncChecked()
}

func (f *Finder) fetchWithRetry(ctx context.Context, shop string) ([]models.RawProduct, error) {
	start := time.Now()
	attempt := 0
	for {
		attemptStart := time.Now()
		raws, err := f.client.Fetch(shop)
		f.metrics.ObserveDuration(time.Since(attemptStart))
		if err == nil {
			return raws, nil
		}

		delay, ok := f.policy.Next(attempt, err, time.Since(start))
		if !ok || ctx.Err() != nil {
			return nil, err
		}

		f.metrics.IncRetries()
		slog.Debug("retrying shop",
			slog.String("shop", shop),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, err
		}
		attempt++
	}
}

func (f *Finder) setFatal(err error) {
	f.mu.Lock()
	if f.fatalErr == nil {
		f.fatalErr = err
	}
	f.mu.Unlock()
}

func (f *Finder) fatal() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fatalErr
}

// Breaker exposes the shared circuit breaker, mainly for observability.
func (f *Finder) Breaker() *breaker.CircuitBreaker {
	return f.breaker
}
