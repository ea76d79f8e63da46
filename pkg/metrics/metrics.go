// Package metrics exports flowchart execution counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zurustar/flowrun/pkg/flow"
)

// Observer implements flow.Observer and records metrics in its own
// prometheus registry.
type Observer struct {
	reg *prometheus.Registry

	blockExecutions *prometheus.CounterVec
	blockStops      *prometheus.CounterVec
	commands        *prometheus.CounterVec
	commandErrors   *prometheus.CounterVec
	executing       prometheus.Gauge
	blockDuration   *prometheus.HistogramVec
}

// New creates an Observer with a fresh registry.
func New() *Observer {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Observer{
		reg: reg,
		blockExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrun_block_executions_total",
				Help: "Total number of block executions started",
			},
			[]string{"flowchart", "block"},
		),
		blockStops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrun_block_stops_total",
				Help: "Total number of block executions ended by Stop",
			},
			[]string{"flowchart", "block"},
		),
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrun_commands_total",
				Help: "Total number of commands entered",
			},
			[]string{"type"},
		),
		commandErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrun_command_errors_total",
				Help: "Total number of command errors",
			},
			[]string{"type"},
		),
		executing: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowrun_executing_blocks",
			Help: "Number of blocks currently executing",
		}),
		blockDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowrun_block_duration_seconds",
				Help:    "Block execution time on the registry clock in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flowchart", "block"},
		),
	}
}

// Registry returns the prometheus registry holding the metrics.
func (o *Observer) Registry() *prometheus.Registry { return o.reg }

func (o *Observer) BlockStarted(b *flow.Block) {
	o.blockExecutions.WithLabelValues(b.Flowchart().Name(), b.Name()).Inc()
	o.executing.Inc()
}

func (o *Observer) BlockFinished(b *flow.Block) {
	o.executing.Dec()
	fc := b.Flowchart()
	if b.WasStopped() {
		o.blockStops.WithLabelValues(fc.Name(), b.Name()).Inc()
	}
	elapsed := fc.Registry().Now() - b.StartedAt()
	o.blockDuration.WithLabelValues(fc.Name(), b.Name()).Observe(elapsed.Seconds())
}

func (o *Observer) CommandStarted(c flow.Command) {
	o.commands.WithLabelValues(flow.CommandName(c)).Inc()
}

func (o *Observer) CommandError(c flow.Command, _ string) {
	o.commandErrors.WithLabelValues(flow.CommandName(c)).Inc()
}

// Handler serves the metrics in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (o *Observer) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", o.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
