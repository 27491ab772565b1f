// Package monitoring exposes Prometheus metrics for the coordination server
// and an optional standalone metrics/profiling HTTP server.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the instruments updated by the hub.
type Metrics struct {
	Connections      prometheus.Gauge
	OnlineIdentities prometheus.Gauge
	HistoryLength    prometheus.Gauge
	ChatMessages     prometheus.Counter
	SeenUpdates      prometheus.Counter
	SignalsRelayed   *prometheus.CounterVec
	CallTransitions  *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg. Tests pass a fresh
// prometheus.NewRegistry to stay isolated from the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatcall_connections_active",
			Help: "Number of live websocket connections.",
		}),
		OnlineIdentities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatcall_identities_online",
			Help: "Number of distinct names with at least one live connection.",
		}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatcall_history_messages",
			Help: "Messages held in the in-memory chat history log.",
		}),
		ChatMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatcall_chat_messages_total",
			Help: "Chat messages appended and broadcast.",
		}),
		SeenUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatcall_seen_updates_total",
			Help: "Delivery-status broadcasts emitted.",
		}),
		SignalsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_signals_relayed_total",
			Help: "WebRTC signaling messages relayed, by kind.",
		}, []string{"kind"}),
		CallTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_call_transitions_total",
			Help: "Observed call negotiation state transitions, by target state.",
		}, []string{"state"}),
	}
}

// Server is a small HTTP server exposing /metrics and the pprof handlers on
// a port separate from the client-facing one.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

func NewServer(port int, reg *prometheus.Registry, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Run() {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting monitoring server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error().Err(err).Msg("monitoring server stopped")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
