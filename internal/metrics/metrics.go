// Package metrics exposes Prometheus instrumentation for the arbitrage
// feed: connection liveness, order book churn, and detected
// opportunities. Adapted from the ingestion service's metrics package,
// narrowed to the two-venue order-book/arbitrage domain.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// ConnectionState reports 1 when a venue consumer is connected, 0
	// otherwise. Read-only/diagnostic, mirroring the consumer's own
	// connected flag.
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arb_venue_connected",
			Help: "1 if the venue websocket consumer is currently connected",
		},
		[]string{"venue"},
	)

	ReconnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_venue_reconnect_attempts_total",
			Help: "Total number of reconnect attempts per venue",
		},
		[]string{"venue"},
	)

	OrderBookUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_orderbook_updates_total",
			Help: "Total number of order book updates applied",
		},
		[]string{"venue"},
	)

	OrderBookParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_orderbook_parse_errors_total",
			Help: "Total number of inbound frames dropped due to a parse failure",
		},
		[]string{"venue"},
	)

	InternalBusDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_internal_bus_drops_total",
			Help: "Total number of order book updates dropped because the internal bus was full",
		},
		[]string{"venue"},
	)

	ArbitrageOpportunitiesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_opportunities_detected_total",
			Help: "Total number of arbitrage opportunities detected",
		},
		[]string{"buy_exchange", "sell_exchange"},
	)

	ArbitrageOpportunitiesDroppedNoSubscribers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_opportunities_dropped_no_subscribers_total",
			Help: "Total number of detected opportunities that had no stream subscriber to deliver to",
		},
		[]string{},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_stream_subscribers",
			Help: "Current number of connected /stream/v1 clients",
		},
	)

	MessageProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_message_processing_duration_seconds",
			Help:    "Time to decode and apply one inbound venue frame",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"venue"},
	)
)

// Timer measures an operation's duration and records it into a
// HistogramVec on Stop, the same helper idiom the ingestion service's
// metrics package uses around message processing.
type Timer struct {
	start   time.Time
	hist    *prometheus.HistogramVec
	labels  []string
}

// NewTimer starts a timer that will record into hist under labels.
func NewTimer(hist *prometheus.HistogramVec, labels ...string) *Timer {
	return &Timer{start: time.Now(), hist: hist, labels: labels}
}

// Stop records the elapsed duration.
func (t *Timer) Stop() {
	t.hist.WithLabelValues(t.labels...).Observe(time.Since(t.start).Seconds())
}

// Server exposes /metrics and /health over plain HTTP.
type Server struct {
	addr   string
	server *http.Server
}

// NewServer builds a metrics Server bound to addr (e.g. ":9090").
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start runs the metrics server until Stop is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("starting metrics server")
	return s.server.ListenAndServe()
}

// Stop closes the metrics server immediately.
func (s *Server) Stop() error {
	return s.server.Close()
}
