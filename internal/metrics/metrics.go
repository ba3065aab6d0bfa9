// Package metrics exports store evaluations and simulation ticks as
// Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/frp"
	"github.com/roach88/frp/internal/sim"
)

// Collector is an frp.Observer and a sim.Sink. Its metrics live on their own
// registry.
type Collector struct {
	reg *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	failures           *prometheus.CounterVec
	ticks              prometheus.Counter
	tickDuration       prometheus.Histogram
	runs               *prometheus.CounterVec
}

var (
	_ frp.Observer = (*Collector)(nil)
	_ sim.Sink     = (*Collector)(nil)
)

// New creates a collector with Go runtime and process collectors registered
// next to its own metrics.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "frp_evaluations_total",
			Help: "Behavior evaluations by behavior kind",
		}, []string{"kind"}),
		evaluationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frp_evaluation_duration_seconds",
			Help:    "Behavior evaluation duration, including nested reads",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"kind"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "frp_runtime_errors_total",
			Help: "Runtime errors by code",
		}, []string{"code"}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "frp_sim_ticks_total",
			Help: "Simulation ticks completed",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "frp_sim_tick_duration_seconds",
			Help:    "Time spent reading the samples of one tick",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "frp_sim_runs_total",
			Help: "Finished simulation runs by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Evaluated implements frp.Observer.
func (c *Collector) Evaluated(_ string, kind frp.Kind, d time.Duration) {
	c.evaluations.WithLabelValues(kind.String()).Inc()
	c.evaluationDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

// Failed implements frp.Observer.
func (c *Collector) Failed(_ string, err *frp.RuntimeError) {
	c.failures.WithLabelValues(string(err.Code)).Inc()
}

// Begin implements sim.Sink.
func (c *Collector) Begin(context.Context, sim.Run) error { return nil }

// Tick implements sim.Sink.
func (c *Collector) Tick(_ context.Context, _ sim.Run, tick sim.Tick) error {
	c.ticks.Inc()
	c.tickDuration.Observe(tick.Elapsed.Seconds())
	return nil
}

// End implements sim.Sink.
func (c *Collector) End(_ context.Context, _ sim.Run, cause error) error {
	outcome := "ok"
	if cause != nil {
		outcome = "error"
	}
	c.runs.WithLabelValues(outcome).Inc()
	return nil
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
