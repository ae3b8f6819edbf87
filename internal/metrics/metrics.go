package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and sync
// runs on a shared registry.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	entitiesTotal   *prometheus.CounterVec
	recordsStreamed prometheus.Counter
	linesSkipped    prometheus.Counter
	runDuration     prometheus.Histogram
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventlens",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventlens",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	entitiesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventlens",
		Subsystem: "sync",
		Name:      "entities_total",
		Help:      "Entities processed by sync runs, by terminal outcome.",
	}, []string{"outcome"})

	recordsStreamed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventlens",
		Subsystem: "sync",
		Name:      "telemetry_records_total",
		Help:      "Telemetry records consumed from the analytics export.",
	})

	linesSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventlens",
		Subsystem: "sync",
		Name:      "skipped_lines_total",
		Help:      "Malformed export lines skipped during streaming.",
	})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventlens",
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Duration of full sync runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal, entitiesTotal, recordsStreamed, linesSkipped, runDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		entitiesTotal:   entitiesTotal,
		recordsStreamed: recordsStreamed,
		linesSkipped:    linesSkipped,
		runDuration:     runDuration,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveEntity counts one per-entity terminal outcome.
func (c *Collector) ObserveEntity(outcome string) {
	c.entitiesTotal.WithLabelValues(outcome).Inc()
}

// ObserveStream accounts for one consumed telemetry stream.
func (c *Collector) ObserveStream(records, skipped int) {
	c.recordsStreamed.Add(float64(records))
	c.linesSkipped.Add(float64(skipped))
}

// ObserveRun records the duration of one full sync run.
func (c *Collector) ObserveRun(d time.Duration) {
	c.runDuration.Observe(d.Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
