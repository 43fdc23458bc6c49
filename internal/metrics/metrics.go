package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream outcomes, used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeBlocked   = "blocked"
)

var (
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyvo_upstream_requests_total",
			Help: "Upstream autocomplete requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyvo_upstream_duration_seconds",
			Help:    "Duration of upstream autocomplete requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"provider"},
	)

	UpstreamBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyvo_upstream_bytes_total",
			Help: "Total bytes read from upstream providers",
		},
		[]string{"provider"},
	)

	SuggestionsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyvo_suggestions_returned",
			Help:    "Number of suggestions returned per successful query",
			Buckets: []float64{0, 1, 3, 5, 8, 10, 15, 20},
		},
		[]string{"provider"},
	)

	NormalizeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyvo_normalize_errors_total",
			Help: "Upstream bodies that could not be parsed",
		},
		[]string{"provider"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyvo_http_requests_total",
			Help: "Inbound API requests by route and status",
		},
		[]string{"route", "status"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyvo_proxy_failures_total",
			Help: "Upstream requests that failed through a proxy",
		},
		[]string{"proxy_url"},
	)
)

// RecordUpstream records one upstream exchange.
func RecordUpstream(provider, outcome string, d time.Duration, bytes int) {
	UpstreamRequestsTotal.WithLabelValues(provider, outcome).Inc()
	UpstreamDuration.WithLabelValues(provider).Observe(d.Seconds())
	if bytes > 0 {
		UpstreamBytesTotal.WithLabelValues(provider).Add(float64(bytes))
	}
}

// RecordSuggestions records the size of a normalized suggestion list.
func RecordSuggestions(provider string, n int) {
	SuggestionsReturned.WithLabelValues(provider).Observe(float64(n))
}

// RecordNormalizeError counts a body that failed to parse.
func RecordNormalizeError(provider string) {
	NormalizeErrorsTotal.WithLabelValues(provider).Inc()
}

// RecordHTTP records one inbound API response.
func RecordHTTP(route string, status int) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer prepares a /metrics listener on port. Call ListenAndServe to run it.
func NewServer(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// ListenAndServe blocks until the server stops. A shutdown via Stop is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("metrics server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
