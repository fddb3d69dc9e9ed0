// Package metrics exposes prometheus collectors for stage runs and backend
// calls. A Metrics value is a stage.Observer and supplies a generate middleware,
// so the engine wires it without either package knowing about prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/stage"
)

const namespace = "storyforge"

// Metrics owns a private registry so repeated runs in one process (tests,
// watch mode) never collide with the global default registry.
type Metrics struct {
	registry          *prometheus.Registry
	artifacts         *prometheus.CounterVec
	stageRuns         *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Units of work by stage and outcome (processed, skipped, failed).",
		}, []string{"stage", "outcome"}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Stage runs by stage and result (ok, failed, aborted).",
		}, []string{"stage", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a stage run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage", "mode"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Backend calls by backend and outcome (ok, transient, permanent, error).",
		}, []string{"backend", "outcome"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of a single backend call.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"backend"}),
	}
	m.registry.MustRegister(m.artifacts, m.stageRuns, m.stageDuration, m.generations, m.generationLatency)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe counts stage progress events.
func (m *Metrics) Observe(event stage.Event) {
	switch event.Kind {
	case stage.EventProcessed, stage.EventSkipped, stage.EventFailed:
		m.artifacts.WithLabelValues(event.Stage, string(event.Kind)).Inc()
	case stage.EventFinished:
		result := "ok"
		switch {
		case event.Err != nil:
			result = "aborted"
		case event.Report != nil && !event.Report.OK():
			result = "failed"
		}
		m.stageRuns.WithLabelValues(event.Stage, result).Inc()
		if event.Report != nil {
			m.stageDuration.WithLabelValues(event.Stage, string(event.Report.Mode)).Observe(event.Report.Duration().Seconds())
		}
	}
}

// Instrument counts and times every call through a generator.
func (m *Metrics) Instrument(backend string) generate.Middleware {
	return func(next generate.Generator) generate.Generator {
		return generate.GeneratorFunc(func(ctx context.Context, content string, req generate.Request) (string, error) {
			start := time.Now()
			out, err := next.Generate(ctx, content, req)
			m.generationLatency.WithLabelValues(backend).Observe(time.Since(start).Seconds())
			m.generations.WithLabelValues(backend, outcome(err)).Inc()
			return out, err
		})
	}
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case generate.IsTransient(err):
		return "transient"
	case generate.IsPermanent(err):
		return "permanent"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
