// Package metrics exposes Prometheus metrics for search requests and the
// sizes of each pipeline stage.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector pairscan records. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SearchRequests *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	PairsFetched   *prometheus.CounterVec
	Challenges     *prometheus.CounterVec
	StageRecords   *prometheus.GaugeVec
	Scans          *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SearchRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_search_requests_total",
				Help: "Search requests by term and outcome (ok, http_<code>, transport, malformed)",
			},
			[]string{"term", "outcome"},
		),
		SearchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairscan_search_duration_seconds",
				Help:    "Duration of search requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"term"},
		),
		PairsFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_pairs_fetched_total",
				Help: "Raw pairs returned by the search API",
			},
			[]string{"term"},
		),
		Challenges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_challenges_total",
				Help: "Bot-protection challenges detected on search responses",
			},
			[]string{"source"},
		),
		StageRecords: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairscan_stage_records",
				Help: "Records remaining after each stage of the last scan",
			},
			[]string{"stage"},
		),
		Scans: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscan_scans_total",
				Help: "Completed scans by outcome (candidates, no_match, no_data)",
			},
			[]string{"outcome"},
		),
	}
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordSearch records one search attempt.
func (m *Metrics) RecordSearch(term, outcome string, d time.Duration, pairs int) {
	if m == nil {
		return
	}
	m.SearchRequests.WithLabelValues(term, outcome).Inc()
	m.SearchDuration.WithLabelValues(term).Observe(d.Seconds())
	if pairs > 0 {
		m.PairsFetched.WithLabelValues(term).Add(float64(pairs))
	}
}

// RecordChallenge counts a detected bot-protection challenge.
func (m *Metrics) RecordChallenge(source string) {
	if m == nil || source == "" {
		return
	}
	m.Challenges.WithLabelValues(source).Inc()
}

// RecordStage sets the number of records left after a stage.
func (m *Metrics) RecordStage(stage string, n int) {
	if m == nil {
		return
	}
	m.StageRecords.WithLabelValues(stage).Set(float64(n))
}

// RecordScan counts a finished scan.
func (m *Metrics) RecordScan(outcome string) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(outcome).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics for m's registry.
// Listen errors other than shutdown are passed to onErr when it is non-nil.
func Start(addr string, m *Metrics, onErr func(error)) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onErr != nil {
			onErr(fmt.Errorf("metrics: server on %s: %w", addr, err))
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
