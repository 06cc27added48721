// Package metrics exposes prometheus counters for a generation run.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Request outcomes
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the run counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	retries         prometheus.Counter
	parseFailures   prometheus.Counter
	duplicates      prometheus.Counter
	emptyOutputs    prometheus.Counter
	records         prometheus.Counter
}

// New creates the counters and registers them with registerer when it is not nil
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdg_completion_requests_total",
			Help: "Chat completion requests by outcome",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sdg_completion_request_duration_seconds",
			Help:    "Chat completion request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdg_retries_total",
			Help: "Retried operations",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdg_parse_failures_total",
			Help: "Chunk responses without a parsable list",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdg_duplicate_inputs_total",
			Help: "Extracted inputs dropped because they were already collected",
		}),
		emptyOutputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdg_empty_outputs_total",
			Help: "Output completions that came back empty",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdg_records_total",
			Help: "Assembled dataset records",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.requests,
			m.requestDuration,
			m.retries,
			m.parseFailures,
			m.duplicates,
			m.emptyOutputs,
			m.records,
		)
	}

	return m
}

// ObserveRequest records one completion request
func (m *Metrics) ObserveRequest(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(elapsed.Seconds())
}

// Retry records one retried attempt
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// ParseFailure records a chunk response that could not be parsed
func (m *Metrics) ParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

// Duplicates records n dropped duplicate inputs
func (m *Metrics) Duplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicates.Add(float64(n))
}

// EmptyOutput records an empty output completion
func (m *Metrics) EmptyOutput() {
	if m == nil {
		return
	}
	m.emptyOutputs.Inc()
}

// Records records n assembled dataset records
func (m *Metrics) Records(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.Add(float64(n))
}

// Serve exposes gatherer on addr under /metrics until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
