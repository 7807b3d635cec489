package finder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry           *prometheus.Registry
	ShopsCheckedTotal  prometheus.Counter
	ShopsFoundTotal    prometheus.Counter
	ProductsFoundTotal prometheus.Counter
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	CircuitState       prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	checked := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finder_shops_checked_total",
			Help: "Total shops whose processing completed.",
		},
	)
	found := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finder_shops_found_total",
			Help: "Total shops that returned valid products.",
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finder_products_found_total",
			Help: "Total validated products written to the catalog.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finder_retries_total",
			Help: "Total retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finder_errors_total",
			Help: "Total errors by kind.",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finder_request_duration_seconds",
			Help:    "Latency of shop fetch attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
	circuitState := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "finder_circuit_state",
			Help: "Circuit breaker position: 0 closed, 1 open, 2 half-open.",
		},
	)

	registry.MustRegister(checked, found, products, retries, errorsTotal, requestDuration, circuitState)

	return &Metrics{
		Registry:           registry,
		ShopsCheckedTotal:  checked,
		ShopsFoundTotal:    found,
		ProductsFoundTotal: products,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		RequestDuration:    requestDuration,
		CircuitState:       circuitState,
	}
}

// IncChecked increments the completed-shops counter.
func (m *Metrics) IncChecked() {
	if m == nil {
		return
	}
	m.ShopsCheckedTotal.Inc()
}

// IncFound increments the shops-found counter.
func (m *Metrics) IncFound() {
	if m == nil {
		return
	}
	m.ShopsFoundTotal.Inc()
}

// AddProducts adds to the products counter.
func (m *Metrics) AddProducts(n int) {
	if m == nil {
		return
	}
	m.ProductsFoundTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the error counter for a kind label.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records one fetch attempt duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// SetCircuitState records the breaker position.
func (m *Metrics) SetCircuitState(state float64) {
	if m == nil {
		return
	}
	m.CircuitState.Set(state)
}
