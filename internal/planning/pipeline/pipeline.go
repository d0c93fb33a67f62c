/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package pipeline wires the planning modules (Model Builder, Solver
// Driver, Result Extractor, KPI Materializer) into the single worker
// function an optimization job runs (spec §3, §4.9: "load cleaned canonical
// data, invoke Model Builder → Solver Driver → Result Extractor → KPI
// Materializer, mark the job success").
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/jobs"
	"github.com/marcus-qen/clinkerplan/internal/kpi"
	"github.com/marcus-qen/clinkerplan/internal/planning/model"
	"github.com/marcus-qen/clinkerplan/internal/planning/result"
	"github.com/marcus-qen/clinkerplan/internal/planning/solver"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// Request is the decoded payload of a TypeOptimizationRun job (spec §6:
// submit_optimization {scenario_name, solver?, time_limit?, mip_gap?}).
type Request struct {
	ScenarioName     string   `json:"scenario_name"`
	Solver           string   `json:"solver,omitempty"`
	TimeLimitSeconds int      `json:"time_limit_seconds,omitempty"`
	MIPGap           float64  `json:"mip_gap,omitempty"`
	Periods          []string `json:"periods,omitempty"`
	SoftDemand       bool     `json:"soft_demand,omitempty"`
}

// Summary is the result_summary persisted on job success.
type Summary struct {
	RunID          string  `json:"run_id"`
	Objective      float64 `json:"objective"`
	SolverUsed     string  `json:"solver"`
	Termination    string  `json:"termination"`
	ShipmentLines  int     `json:"shipment_lines"`
	ProductionLines int    `json:"production_lines"`
}

// Worker runs one optimization job end to end against the canonical store.
type Worker struct {
	canonical    *store.CanonicalStore
	driver       *solver.Driver
	materializer *kpi.Materializer
	defaultOpts  solver.Options
	logger       *zap.Logger
}

// NewWorker builds a Worker. defaultOpts supplies the solver time limit/gap
// used when a request omits them.
func NewWorker(canonical *store.CanonicalStore, driver *solver.Driver, materializer *kpi.Materializer, defaultOpts solver.Options, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{canonical: canonical, driver: driver, materializer: materializer, defaultOpts: defaultOpts, logger: logger}
}

// Run implements jobs.WorkerFunc: load data, build, solve, extract,
// materialize, and report progress at each stage boundary (spec §5:
// suspension points are the natural cancellation-check boundaries).
func (w *Worker) Run(ctx context.Context, job jobs.Job, progress jobs.ProgressFunc) (string, json.RawMessage, error) {
	var req Request
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: decode payload: %w", err)
	}
	if req.ScenarioName == "" {
		req.ScenarioName = "base"
	}

	progress(5, "loading canonical data")
	data, err := model.LoadPlanningData(w.canonical, req.Periods)
	if err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: load data: %w", err)
	}
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}

	progress(25, "building model")
	m, err := model.Build(data, model.PlanningOptions{SoftDemand: req.SoftDemand})
	if err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: build model: %w", err)
	}
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}

	opts := w.defaultOpts
	if req.TimeLimitSeconds > 0 {
		opts.TimeLimitSeconds = req.TimeLimitSeconds
	}
	if req.MIPGap > 0 {
		opts.MIPGap = req.MIPGap
	}

	progress(40, "solving")
	run := store.OptimizationRun{
		RunID:            job.ID,
		Scenario:         req.ScenarioName,
		TimeLimitSeconds: opts.TimeLimitSeconds,
		GapTolerance:     opts.MIPGap,
		ValidationStatus: "passed",
	}
	if err := w.canonical.InsertRun(run); err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: insert run: %w", err)
	}

	solved, err := w.driver.Solve(ctx, m, opts)
	if err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: solve: %w", err)
	}
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}

	progress(75, "extracting plan")
	plan, err := result.Extract(m, solved)
	if err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: extract: %w", err)
	}

	progress(90, "materializing kpis")
	if err := w.materializer.Materialize(ctx, req.ScenarioName, data, plan); err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: materialize kpis: %w", err)
	}

	if err := w.canonical.CompleteRun(job.ID, solved.Solver, solved.Status, solved.Objective, solved.RuntimeSeconds, "passed"); err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: complete run: %w", err)
	}

	progress(100, "done")
	summary, err := json.Marshal(Summary{
		RunID:           job.ID,
		Objective:       plan.Objective,
		SolverUsed:      solved.Solver,
		Termination:     solved.Termination,
		ShipmentLines:   len(plan.Shipments),
		ProductionLines: len(plan.Production),
	})
	if err != nil {
		return "", nil, fmt.Errorf("pipeline.Worker.Run: marshal summary: %w", err)
	}

	return job.ID, summary, nil
}
