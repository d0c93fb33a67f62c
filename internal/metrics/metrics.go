/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package metrics defines Prometheus metrics for the planning service.
//
// All metrics are registered with the default Prometheus registerer so they
// are served automatically on the process's metrics endpoint.
//
// Metric naming follows Prometheus conventions:
//   - clinkerplan_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BatchesIngestedTotal counts staged batches by outcome; RecordBatchIngested
	// fills the source_type label with the batch's target table.
	BatchesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_batches_ingested_total",
			Help: "Total batches written to the staging store.",
		},
		[]string{"source_type", "outcome"},
	)

	// ValidationErrorsTotal counts validation failures by stage and rule.
	ValidationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_validation_errors_total",
			Help: "Total validation errors by stage and rule.",
		},
		[]string{"stage", "rule"},
	)

	// ValidationDurationSeconds is a histogram of validation sweep duration.
	ValidationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinkerplan_validation_duration_seconds",
			Help:    "Duration of a full validation sweep in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// BatchesPromotedTotal counts all-or-nothing promotions by outcome.
	BatchesPromotedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_batches_promoted_total",
			Help: "Total batch promotions into the canonical store by outcome.",
		},
		[]string{"outcome"},
	)

	// SolverAttemptsTotal counts solve attempts by solver tier and outcome.
	SolverAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_solver_attempts_total",
			Help: "Total solver attempts by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	// SolverDurationSeconds is a histogram of solve duration by tier.
	SolverDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinkerplan_solver_duration_seconds",
			Help:    "Duration of solver invocations in seconds, by tier.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"tier"},
	)

	// SolverGapRatio is the final MIP gap reported by the winning solver.
	SolverGapRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinkerplan_solver_gap_ratio",
			Help:    "Final relative MIP gap reported by the solver that produced a solution.",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
		},
		[]string{"tier"},
	)

	// JobsTotal counts job queue transitions by job type and terminal status.
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_jobs_total",
			Help: "Total jobs reaching a terminal status, by type and status.",
		},
		[]string{"type", "status"},
	)

	// JobDurationSeconds is a histogram of job run duration by type.
	JobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinkerplan_job_duration_seconds",
			Help:    "Duration of job runs in seconds, by type.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
		[]string{"type"},
	)

	// ActiveJobs is the number of currently executing jobs.
	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinkerplan_active_jobs",
			Help: "Number of jobs currently executing.",
		},
	)

	// RouteCacheLookupsTotal counts route cache lookups by outcome (hit, miss).
	RouteCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_route_cache_lookups_total",
			Help: "Total route cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	// RoutingProviderRequestsTotal counts routing provider calls by provider and outcome.
	RoutingProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_routing_provider_requests_total",
			Help: "Total requests issued to routing providers, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// KPIMaterializationsTotal counts KPI materializer runs by scope and outcome.
	KPIMaterializationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinkerplan_kpi_materializations_total",
			Help: "Total KPI materialization runs by scope and outcome.",
		},
		[]string{"scope", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		BatchesIngestedTotal,
		ValidationErrorsTotal,
		ValidationDurationSeconds,
		BatchesPromotedTotal,
		SolverAttemptsTotal,
		SolverDurationSeconds,
		SolverGapRatio,
		JobsTotal,
		JobDurationSeconds,
		ActiveJobs,
		RouteCacheLookupsTotal,
		RoutingProviderRequestsTotal,
		KPIMaterializationsTotal,
	)
}

// RecordBatchIngested records one batch written to the staging store.
func RecordBatchIngested(targetTable string) {
	BatchesIngestedTotal.WithLabelValues(targetTable, "staged").Inc()
}

// RecordValidationSweep records a completed validation sweep for one stage.
func RecordValidationSweep(stage string, duration time.Duration, errorsByRule map[string]int) {
	ValidationDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
	for rule, count := range errorsByRule {
		ValidationErrorsTotal.WithLabelValues(stage, rule).Add(float64(count))
	}
}

// RecordPromotion records the outcome of a promotion attempt.
func RecordPromotion(outcome string) {
	BatchesPromotedTotal.WithLabelValues(outcome).Inc()
}

// RecordSolverAttempt records one solver attempt's outcome, duration, and gap.
func RecordSolverAttempt(tier, outcome string, duration time.Duration, gap float64) {
	SolverAttemptsTotal.WithLabelValues(tier, outcome).Inc()
	SolverDurationSeconds.WithLabelValues(tier).Observe(duration.Seconds())
	if outcome == "solved" {
		SolverGapRatio.WithLabelValues(tier).Observe(gap)
	}
}

// RecordJobComplete records metrics for a job reaching a terminal status.
func RecordJobComplete(jobType, status string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, status).Inc()
	JobDurationSeconds.WithLabelValues(jobType).Observe(duration.Seconds())
}

// RecordRouteCacheLookup records a single route cache lookup outcome.
func RecordRouteCacheLookup(outcome string) {
	RouteCacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordRoutingProviderRequest records a single routing provider call outcome.
func RecordRoutingProviderRequest(provider, outcome string) {
	RoutingProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordKPIMaterialization records a single KPI materializer run outcome.
func RecordKPIMaterialization(scope, outcome string) {
	KPIMaterializationsTotal.WithLabelValues(scope, outcome).Inc()
}
