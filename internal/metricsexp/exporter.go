// Package metricsexp exposes engine readiness and job progress as
// Prometheus metrics for long-running watch sessions.
package metricsexp

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/models"
)

// Exporter holds the metric set on its own registry, so tests and repeated
// construction never collide with the global one.
type Exporter struct {
	registry *prometheus.Registry

	engineReady    *prometheus.GaugeVec
	engineProgress *prometheus.GaugeVec
	engineErrors   *prometheus.CounterVec
	taskProgress   prometheus.Gauge
	tasksTotal     *prometheus.CounterVec

	log *zap.Logger
}

// New builds an exporter with all metrics registered.
func New(log *zap.Logger) *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		engineReady: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "csync_engine_ready",
			Help: "Whether the engine is ready to take jobs (1=ready, 0=not ready)",
		}, []string{"engine"}),
		engineProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "csync_engine_load_progress",
			Help: "Engine model load progress percentage (0-100)",
		}, []string{"engine"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csync_engine_errors_total",
			Help: "Total transitions of an engine into the error state",
		}, []string{"engine"}),
		taskProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "csync_task_progress",
			Help: "Progress percentage of the task currently being polled",
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csync_tasks_total",
			Help: "Polled tasks by terminal status",
		}, []string{"status"}),
		log: log,
	}

	e.registry.MustRegister(
		e.engineReady,
		e.engineProgress,
		e.engineErrors,
		e.taskProgress,
		e.tasksTotal,
	)
	return e
}

// ObserveEngine records an engine state transition. It matches the
// tracker's OnChange signature.
func (e *Exporter) ObserveEngine(info models.EngineStatusInfo) {
	name := string(info.Engine)

	ready := 0.0
	if info.State == models.EngineReady {
		ready = 1.0
	}
	e.engineReady.WithLabelValues(name).Set(ready)
	e.engineProgress.WithLabelValues(name).Set(float64(info.Progress))

	if info.State == models.EngineError {
		e.engineErrors.WithLabelValues(name).Inc()
	}
}

// SetTaskProgress records the progress of the task being polled.
func (e *Exporter) SetTaskProgress(percent int) {
	e.taskProgress.Set(float64(percent))
}

// RecordTaskOutcome counts a task reaching a terminal status.
func (e *Exporter) RecordTaskOutcome(status models.TaskStatus) {
	e.tasksTotal.WithLabelValues(string(status)).Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server with /metrics until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("metrics endpoint listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
