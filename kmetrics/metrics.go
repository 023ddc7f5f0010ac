// Package kmetrics exports scheduler activity as Prometheus metrics.
package kmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/birdayz/kpipe/kprocessor"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	// Steps counts processor steps by processor name and kind (Sync, Async).
	Steps *prometheus.CounterVec
	// StepSeconds is the latency of processor steps.
	StepSeconds *prometheus.HistogramVec
	// Errors counts failed steps by processor name.
	Errors *prometheus.CounterVec
	// AsyncInflight is the number of async steps currently running.
	AsyncInflight prometheus.Gauge
	// Runs counts finished pipeline runs by result (ok, error).
	Runs *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Steps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpipe_processor_steps_total",
				Help: "Total number of processor steps",
			},
			[]string{"processor", "kind"},
		),
		StepSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kpipe_processor_step_seconds",
				Help:    "Processor step latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"processor", "kind"},
		),
		Errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpipe_processor_errors_total",
				Help: "Total number of failed processor steps",
			},
			[]string{"processor"},
		),
		AsyncInflight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "kpipe_async_inflight",
				Help: "Number of async steps currently running",
			},
		),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpipe_runs_total",
				Help: "Total number of finished pipeline runs",
			},
			[]string{"result"},
		),
	}
}

// Interceptor records every step it wraps.
func (m *Metrics) Interceptor() kprocessor.Interceptor {
	return func(ctx context.Context, info kprocessor.StepInfo, handler kprocessor.StepHandler) error {
		kind := info.Kind.String()
		if info.Kind == kprocessor.Async {
			m.AsyncInflight.Inc()
			defer m.AsyncInflight.Dec()
		}

		start := time.Now()
		err := handler(ctx)
		m.StepSeconds.WithLabelValues(info.Processor, kind).Observe(time.Since(start).Seconds())
		m.Steps.WithLabelValues(info.Processor, kind).Inc()
		if err != nil {
			m.Errors.WithLabelValues(info.Processor).Inc()
		}
		return err
	}
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Runs.WithLabelValues(result).Inc()
}
