// Package metrics exposes Prometheus metrics for routing, command handlers
// and state store flushes.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/component"
)

// Metrics holds the collectors. Build it with New.
type Metrics struct {
	// Routes counts routing decisions.
	// Labels: route (command|event), component, claim
	Routes *prometheus.CounterVec

	// RouteDuration measures a routing call in seconds.
	// Labels: route
	RouteDuration *prometheus.HistogramVec

	// Commands counts handled commands.
	// Labels: component, command, status (success|error)
	Commands *prometheus.CounterVec

	// CommandDuration measures handler latency in seconds.
	// Labels: component, command
	CommandDuration *prometheus.HistogramVec

	// Flushes counts state store flushes.
	// Labels: store, status (success|error)
	Flushes *prometheus.CounterVec

	// FlushDuration measures flush latency in seconds.
	// Labels: store
	FlushDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Routes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cordhost_routes_total",
				Help: "Routing decisions by route, component and claim",
			},
			[]string{"route", "component", "claim"},
		),
		RouteDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cordhost_route_duration_seconds",
				Help:    "Duration of routing calls in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"route"},
		),
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cordhost_commands_total",
				Help: "Handled commands by component, command and status",
			},
			[]string{"component", "command", "status"},
		),
		CommandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cordhost_command_duration_seconds",
				Help:    "Duration of command handlers in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"component", "command"},
		),
		Flushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cordhost_store_flushes_total",
				Help: "State store flushes by store and status",
			},
			[]string{"store", "status"},
		),
		FlushDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cordhost_store_flush_duration_seconds",
				Help:    "Duration of state store flushes in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"store"},
		),
	}
}

// ObserveRoute records a routing decision. It has the signature of
// component.RouteHook.
func (m *Metrics) ObserveRoute(route, comp string, claim component.Claim, took time.Duration) {
	if comp == "" {
		comp = "none"
	}
	m.Routes.WithLabelValues(route, comp, claim.String()).Inc()
	m.RouteDuration.WithLabelValues(route).Observe(took.Seconds())
}

// ObserveFlush records a store flush. It has the signature of
// state.Config.OnFlush.
func (m *Metrics) ObserveFlush(store string, took time.Duration, err error) {
	m.Flushes.WithLabelValues(store, status(err)).Inc()
	m.FlushDuration.WithLabelValues(store).Observe(took.Seconds())
}

// Middleware counts and times every command handler.
func (m *Metrics) Middleware() component.Middleware {
	return func(next component.HandlerFunc) component.HandlerFunc {
		return func(ctx context.Context, inv *component.Invocation) (*component.Reply, error) {
			start := time.Now()
			reply, err := next(ctx, inv)
			name := inv.Match.Name()
			m.Commands.WithLabelValues(inv.Component, name, status(err)).Inc()
			m.CommandDuration.WithLabelValues(inv.Component, name).Observe(time.Since(start).Seconds())
			return reply, err
		}
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
