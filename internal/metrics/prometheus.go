package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// PrometheusExporterConfig holds configuration for the Prometheus exporter.
type PrometheusExporterConfig struct {
	// Addr is the listen address, e.g. ":9464" or "127.0.0.1:0".
	Addr string

	// Path is the URL path for the metrics endpoint.
	// Default: /metrics
	Path string

	// Namespace prefixes every metric name.
	// Default: tripload
	Namespace string

	// HistogramBuckets are the bucket boundaries for trend metrics, in seconds.
	// Default: prometheus.DefBuckets
	HistogramBuckets []float64
}

// DefaultPrometheusExporterConfig returns default configuration.
func DefaultPrometheusExporterConfig() PrometheusExporterConfig {
	return PrometheusExporterConfig{
		Addr:             ":9464",
		Path:             "/metrics",
		Namespace:        "tripload",
		HistogramBuckets: prometheus.DefBuckets,
	}
}

// PrometheusExporter mirrors the engine's samples into a Prometheus registry
// and serves it over HTTP. It implements Observer.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type PrometheusExporter struct {
	mu     sync.RWMutex
	config PrometheusExporterConfig
	types  map[string]Type

	registry *prometheus.Registry

	counters    *prometheus.CounterVec
	rates       *prometheus.CounterVec
	trends      *prometheus.HistogramVec
	activeVUs   prometheus.Gauge
	intervalRPS prometheus.Gauge
	errorRate   prometheus.Gauge
	phase       *prometheus.GaugeVec

	server  *http.Server
	ln      net.Listener
	running bool

	lastError error
}

// NewPrometheusExporter creates an exporter for the metrics in defs.
func NewPrometheusExporter(config PrometheusExporterConfig, defs []Definition) *PrometheusExporter {
	def := DefaultPrometheusExporterConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.Path == "" {
		config.Path = def.Path
	}
	if config.Namespace == "" {
		config.Namespace = def.Namespace
	}
	if len(config.HistogramBuckets) == 0 {
		config.HistogramBuckets = def.HistogramBuckets
	}

	e := &PrometheusExporter{
		config:   config,
		types:    make(map[string]Type, len(defs)),
		registry: prometheus.NewRegistry(),
	}
	for _, d := range defs {
		e.types[d.Name] = d.Type
	}
	e.initMetrics()
	return e
}

func (e *PrometheusExporter) initMetrics() {
	ns := e.config.Namespace

	e.counters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "counter_total",
			Help:      "Sum of counter metric samples.",
		},
		[]string{"metric", "name"},
	)

	e.rates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rate_samples_total",
			Help:      "Rate metric samples by outcome.",
		},
		[]string{"metric", "name", "outcome"},
	)

	e.trends = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "trend_seconds",
			Help:      "Distribution of trend metric samples in seconds.",
			Buckets:   e.config.HistogramBuckets,
		},
		[]string{"metric", "name"},
	)

	e.activeVUs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "active_vus",
		Help:      "Number of currently active virtual users.",
	})

	e.intervalRPS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "interval_rps",
		Help:      "Requests per second over the last flush interval.",
	})

	e.errorRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "interval_error_rate",
		Help:      "Fraction of failed requests over the last flush interval.",
	})

	e.phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "phase",
			Help:      "Current run phase (1 for the active phase).",
		},
		[]string{"phase"},
	)

	e.registry.MustRegister(
		e.counters,
		e.rates,
		e.trends,
		e.activeVUs,
		e.intervalRPS,
		e.errorRate,
		e.phase,
	)
}

// ObserveSample records one sample according to its metric type.
func (e *PrometheusExporter) ObserveSample(s Sample) {
	t, ok := e.types[s.Metric]
	if !ok {
		return
	}
	name := s.Tags[TagName]

	switch t {
	case TypeCounter:
		if s.Value > 0 {
			e.counters.WithLabelValues(s.Metric, name).Add(s.Value)
		}
	case TypeRate:
		outcome := "fail"
		if s.Value != 0 {
			outcome = "pass"
		}
		e.rates.WithLabelValues(s.Metric, name, outcome).Inc()
	case TypeTrend:
		e.trends.WithLabelValues(s.Metric, name).Observe(s.Value / 1000)
	}
}

// ObserveBucket updates the run-level gauges.
func (e *PrometheusExporter) ObserveBucket(b *TimeBucket) {
	e.activeVUs.Set(float64(b.ActiveVUs))
	e.intervalRPS.Set(b.IntervalRPS)
	e.errorRate.Set(b.IntervalErrorRate)

	e.phase.Reset()
	e.phase.WithLabelValues(string(b.Phase)).Set(1)
}

// Start starts the HTTP server for the metrics endpoint.
func (e *PrometheusExporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	ln, err := net.Listen("tcp", e.config.Addr)
	if err != nil {
		return fmt.Errorf("starting Prometheus exporter: %w", err)
	}
	e.ln = ln

	mux := http.NewServeMux()
	mux.Handle(e.config.Path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.mu.Lock()
			e.lastError = err
			e.mu.Unlock()
		}
	}()

	e.running = true
	return nil
}

// Stop stops the HTTP server.
func (e *PrometheusExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false

	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// Address returns the URL of the metrics endpoint. Once started, it reflects
// the actual listen address.
func (e *PrometheusExporter) Address() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	addr := e.config.Addr
	if e.ln != nil {
		addr = e.ln.Addr().String()
	}
	return "http://" + addr + e.config.Path
}

// IsRunning returns whether the exporter is running.
func (e *PrometheusExporter) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// LastError returns the last error from the HTTP server, if any.
func (e *PrometheusExporter) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// Gather collects all metrics from the registry.
func (e *PrometheusExporter) Gather() ([]*dto.MetricFamily, error) {
	return e.registry.Gather()
}
