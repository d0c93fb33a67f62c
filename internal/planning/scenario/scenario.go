/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package scenario perturbs a planning dataset's demand per scenario
// configuration and fans out Build→Solve→Extract concurrently, one
// goroutine per scenario (spec §4.8).
package scenario

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/marcus-qen/clinkerplan/internal/planning/model"
	"github.com/marcus-qen/clinkerplan/internal/planning/result"
	"github.com/marcus-qen/clinkerplan/internal/planning/solver"
)

// Scenario types.
const (
	TypeBase       = "base"
	TypeHigh       = "high"
	TypeLow        = "low"
	TypeStochastic = "stochastic"
)

// Stochastic distributions.
const (
	DistributionNormal     = "normal"
	DistributionTriangular = "triangular"
)

// Result statuses.
const (
	StatusCompleted       = "completed"
	StatusInvalidScenario = "invalid_scenario"
	StatusFailed          = "failed"
)

const (
	defaultHighScalingFactor = 1.1
	defaultLowScalingFactor  = 0.9
)

// Config describes one scenario to run.
type Config struct {
	Name           string
	Type           string
	ScalingFactor  float64 // high/low only; 0 selects the type's default
	Distribution   string  // stochastic only
	StdDev         float64 // stochastic/normal
	TriangularLow  float64 // stochastic/triangular
	TriangularMode float64
	TriangularHigh float64
	Seed           int64 // stochastic only
}

// Result is one scenario's outcome. Failures are captured in Status rather
// than propagated to the caller (spec §4.8).
type Result struct {
	Name   string
	Status string
	Plan   *result.PlanResult
	Err    error
}

// Run perturbs data's demand per cfg and solves each scenario concurrently,
// each against its own copy of data so perturbations never interact.
func Run(ctx context.Context, data model.PlanningData, configs []Config, driver *solver.Driver, opts model.PlanningOptions, solveOpts solver.Options) ([]Result, error) {
	results := make([]Result, len(configs))

	g, ctx := errgroup.WithContext(ctx)
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			results[i] = runOne(ctx, data, cfg, driver, opts, solveOpts)
			return nil
		})
	}
	// Errors are captured per-scenario in Result.Err; every goroutine returns
	// nil, so g.Wait() returns nil as well.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runOne(ctx context.Context, data model.PlanningData, cfg Config, driver *solver.Driver, opts model.PlanningOptions, solveOpts solver.Options) Result {
	perturbed, err := perturbDemand(data, cfg)
	if err != nil {
		return Result{Name: cfg.Name, Status: StatusInvalidScenario, Err: err}
	}

	m, err := model.Build(perturbed, opts)
	if err != nil {
		return Result{Name: cfg.Name, Status: StatusFailed, Err: err}
	}

	solved, err := driver.Solve(ctx, m, solveOpts)
	if err != nil {
		return Result{Name: cfg.Name, Status: StatusFailed, Err: err}
	}

	plan, err := result.Extract(m, solved)
	if err != nil {
		return Result{Name: cfg.Name, Status: StatusFailed, Err: err}
	}

	return Result{Name: cfg.Name, Status: StatusCompleted, Plan: plan}
}

// perturbDemand derives a new PlanningData with only the Demand map
// replaced, leaving every other input untouched (spec §4.8).
func perturbDemand(data model.PlanningData, cfg Config) (model.PlanningData, error) {
	factor := func() float64 { return 1.0 }

	switch cfg.Type {
	case TypeBase, "":
		// no perturbation

	case TypeHigh:
		scale := cfg.ScalingFactor
		if scale <= 0 {
			scale = defaultHighScalingFactor
		}
		factor = func() float64 { return scale }

	case TypeLow:
		scale := cfg.ScalingFactor
		if scale <= 0 {
			scale = defaultLowScalingFactor
		}
		factor = func() float64 { return scale }

	case TypeStochastic:
		rng := rand.New(rand.NewSource(cfg.Seed))
		switch cfg.Distribution {
		case DistributionNormal:
			factor = func() float64 {
				return math.Max(0, 1.0+rng.NormFloat64()*cfg.StdDev)
			}
		case DistributionTriangular:
			factor = func() float64 {
				return triangularSample(rng, cfg.TriangularLow, cfg.TriangularMode, cfg.TriangularHigh)
			}
		default:
			return model.PlanningData{}, invalidScenarioError(cfg.Name, "stochastic scenario requires a normal or triangular distribution")
		}

	default:
		return model.PlanningData{}, invalidScenarioError(cfg.Name, "unknown scenario type")
	}

	perturbedDemand := make(model.DemandMap, len(data.Demand))
	for key, row := range data.Demand {
		scaled := row
		scaled.Demand = row.Demand * factor()
		perturbedDemand[key] = scaled
	}

	out := data
	out.Demand = perturbedDemand
	return out, nil
}

// triangularSample draws from a triangular distribution via inverse
// transform sampling.
func triangularSample(rng *rand.Rand, low, mode, high float64) float64 {
	u := rng.Float64()
	c := (mode - low) / (high - low)
	if u < c {
		return low + math.Sqrt(u*(high-low)*(mode-low))
	}
	return high - math.Sqrt((1-u)*(high-low)*(high-mode))
}

type scenarioError struct {
	name    string
	message string
}

func (e *scenarioError) Error() string {
	return "scenario " + e.name + ": " + e.message
}

func invalidScenarioError(name, message string) error {
	return &scenarioError{name: name, message: message}
}
