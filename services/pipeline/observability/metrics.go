// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the imaging
// pipeline service.
//
// # Description
//
// Metrics cover run outcomes, per-stage durations, and stream liveness.
// They are exposed on the /metrics endpoint and are designed for a
// Prometheus + Grafana setup.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "neuroatlas"

const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for pipeline runs.
//
// # Fields
//
//   - RunsTotal: Counter of pipeline runs by terminal status.
//   - StagesTotal: Counter of completed stages by stage tag and status.
//   - StageDurationSeconds: Histogram of per-stage wall time.
//   - ActiveRuns: Gauge, 0 or 1 given the single-flight guard.
//   - HeartbeatsTotal: Counter of SSE heartbeats sent.
//
// # Thread Safety
//
// All operations are thread-safe. Helper methods are nil-safe so code
// paths under test need no registry.
type PipelineMetrics struct {
	// RunsTotal counts pipeline runs. Labels: status (success, error, rejected)
	RunsTotal *prometheus.CounterVec

	// StagesTotal counts stage completions. Labels: stage, status (success, error)
	StagesTotal *prometheus.CounterVec

	// StageDurationSeconds measures stage wall time. Labels: stage
	StageDurationSeconds *prometheus.HistogramVec

	// ActiveRuns tracks whether a run is in flight.
	ActiveRuns prometheus.Gauge

	// HeartbeatsTotal counts keepalive events on the progress stream.
	HeartbeatsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all pipeline metrics. Call once at
// startup; a second call would panic on duplicate registration.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal status.",
		}, []string{"status"}),
		StagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "stages_total",
			Help:      "Stage completions by stage and status.",
		}, []string{"stage", "status"}),
		StageDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			// Stages range from seconds (intake) to hours (reconstruction).
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"stage"}),
		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "active_runs",
			Help:      "Whether a pipeline run is in flight (0 or 1).",
		}),
		HeartbeatsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "heartbeats_total",
			Help:      "Keepalive events sent on the progress stream.",
		}),
	}
	return DefaultMetrics
}

// RecordRun increments RunsTotal for a terminal status.
func (m *PipelineMetrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordStage increments StagesTotal and observes the stage duration.
func (m *PipelineMetrics) RecordStage(stage, status string, seconds float64) {
	if m == nil {
		return
	}
	m.StagesTotal.WithLabelValues(stage, status).Inc()
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// SetActive flips the in-flight gauge.
func (m *PipelineMetrics) SetActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.ActiveRuns.Set(1)
	} else {
		m.ActiveRuns.Set(0)
	}
}

// RecordHeartbeat counts one stream keepalive.
func (m *PipelineMetrics) RecordHeartbeat() {
	if m == nil {
		return
	}
	m.HeartbeatsTotal.Inc()
}
