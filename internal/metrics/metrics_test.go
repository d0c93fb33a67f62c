/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(hv *prometheus.HistogramVec, labels ...string) uint64 {
	m := &dto.Metric{}
	observer := hv.WithLabelValues(labels...)
	if c, ok := observer.(prometheus.Metric); ok {
		if err := c.Write(m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func TestRecordValidationSweep(t *testing.T) {
	RecordValidationSweep("range_checks", 2*time.Second, map[string]int{"negative_capacity": 2})

	count := getHistogramCount(ValidationDurationSeconds, "range_checks")
	if count < 1 {
		t.Errorf("ValidationDurationSeconds sample count = %d, want >= 1", count)
	}
	val := getCounterValue(ValidationErrorsTotal, "range_checks", "negative_capacity")
	if val < 2 {
		t.Errorf("ValidationErrorsTotal = %f, want >= 2", val)
	}
}

func TestRecordPromotion(t *testing.T) {
	RecordPromotion("committed")
	RecordPromotion("rolled_back")

	committed := getCounterValue(BatchesPromotedTotal, "committed")
	rolledBack := getCounterValue(BatchesPromotedTotal, "rolled_back")
	if committed < 1 {
		t.Errorf("BatchesPromotedTotal[committed] = %f, want >= 1", committed)
	}
	if rolledBack < 1 {
		t.Errorf("BatchesPromotedTotal[rolled_back] = %f, want >= 1", rolledBack)
	}
}

func TestRecordSolverAttempt(t *testing.T) {
	RecordSolverAttempt("commercial", "solved", 30*time.Second, 0.008)
	RecordSolverAttempt("legacy-open-source", "infeasible", 5*time.Second, 0)

	solvedCount := getHistogramCount(SolverDurationSeconds, "commercial")
	if solvedCount < 1 {
		t.Errorf("SolverDurationSeconds[commercial] sample count = %d, want >= 1", solvedCount)
	}
	gapCount := getHistogramCount(SolverGapRatio, "commercial")
	if gapCount < 1 {
		t.Errorf("SolverGapRatio[commercial] sample count = %d, want >= 1", gapCount)
	}
	infeasibleGapCount := getHistogramCount(SolverGapRatio, "legacy-open-source")
	if infeasibleGapCount != 0 {
		t.Errorf("SolverGapRatio[legacy-open-source] sample count = %d, want 0 for infeasible attempts", infeasibleGapCount)
	}
}

func TestRecordJobComplete(t *testing.T) {
	RecordJobComplete("optimization_run", "success", 90*time.Second)

	val := getCounterValue(JobsTotal, "optimization_run", "success")
	if val < 1 {
		t.Errorf("JobsTotal = %f, want >= 1", val)
	}
	count := getHistogramCount(JobDurationSeconds, "optimization_run")
	if count < 1 {
		t.Errorf("JobDurationSeconds sample count = %d, want >= 1", count)
	}
}

func TestActiveJobsGauge(t *testing.T) {
	ActiveJobs.Set(0)

	ActiveJobs.Inc()
	ActiveJobs.Inc()
	if val := getGaugeValue(ActiveJobs); val != 2 {
		t.Errorf("ActiveJobs = %f, want 2", val)
	}

	ActiveJobs.Dec()
	if val := getGaugeValue(ActiveJobs); val != 1 {
		t.Errorf("ActiveJobs after Dec = %f, want 1", val)
	}
}

func TestRecordRouteCacheLookup(t *testing.T) {
	RecordRouteCacheLookup("hit")
	RecordRouteCacheLookup("miss")

	hit := getCounterValue(RouteCacheLookupsTotal, "hit")
	miss := getCounterValue(RouteCacheLookupsTotal, "miss")
	if hit < 1 || miss < 1 {
		t.Errorf("expected hit and miss counters >= 1, got hit=%f miss=%f", hit, miss)
	}
}

func TestRecordRoutingProviderRequest(t *testing.T) {
	RecordRoutingProviderRequest("internal", "success")
	RecordRoutingProviderRequest("internal", "timeout")

	success := getCounterValue(RoutingProviderRequestsTotal, "internal", "success")
	timeout := getCounterValue(RoutingProviderRequestsTotal, "internal", "timeout")
	if success < 1 || timeout < 1 {
		t.Errorf("expected success and timeout counters >= 1, got success=%f timeout=%f", success, timeout)
	}
}

func TestRecordKPIMaterialization(t *testing.T) {
	RecordKPIMaterialization("scenario", "success")

	val := getCounterValue(KPIMaterializationsTotal, "scenario", "success")
	if val < 1 {
		t.Errorf("KPIMaterializationsTotal = %f, want >= 1", val)
	}
}
