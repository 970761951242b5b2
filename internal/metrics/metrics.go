// Package metrics exposes scrape-loop counters in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the collectors for one process. Each instance owns its own
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal    prometheus.Counter
	CycleFailures  prometheus.Counter
	Fetched        prometheus.Counter
	Inserted       *prometheus.CounterVec
	Duplicates     prometheus.Counter
	NotifyFailures prometheus.Counter
	LastCycle      prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hopwatch", Name: "cycles_total",
			Help: "Scrape cycles started.",
		}),
		CycleFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hopwatch", Name: "cycle_failures_total",
			Help: "Scrape cycles that ended in failure.",
		}),
		Fetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hopwatch", Name: "transactions_fetched_total",
			Help: "Raw transactions returned by the portal.",
		}),
		Inserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hopwatch", Name: "transactions_new_total",
			Help: "Previously-unseen transactions stored.",
		}, []string{"card_id"}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hopwatch", Name: "transactions_duplicate_total",
			Help: "Transactions skipped as already stored.",
		}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hopwatch", Name: "notify_failures_total",
			Help: "Notification deliveries that failed.",
		}),
		LastCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hopwatch", Name: "last_successful_cycle_timestamp_seconds",
			Help: "Unix time of the last successful cycle.",
		}),
	}
}

// Handler serves the registry in the standard exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve blocks exposing /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listener started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics listener failed")
	}
}
