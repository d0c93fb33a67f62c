/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package solver applies the solver fallback chain to a built model. A
// Solver is a capability (IsAvailable, Solve); the Driver walks a configured
// ordered list exactly the way provider.NewProvider dispatches by type
// string, generalized here into a try-in-order chain (spec §4.6, §9 "do not
// bake solver SDKs into the builder; keep them behind the capability").
package solver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/metrics"
	"github.com/marcus-qen/clinkerplan/internal/planning/model"
)

// Acceptable termination conditions (spec §4.6).
const (
	TerminationOptimal       = "optimal"
	TerminationFeasible      = "feasible"
	TerminationTimeLimit     = "timeLimit"
	TerminationMaxIterations = "maxIterations"
	TerminationInfeasible    = "infeasible"
	TerminationError         = "error"
)

func isAcceptableTermination(t string) bool {
	switch t {
	case TerminationOptimal, TerminationFeasible, TerminationTimeLimit, TerminationMaxIterations:
		return true
	default:
		return false
	}
}

// Options carries per-solve tuning (spec §4.6 step 2).
type Options struct {
	TimeLimitSeconds int
	MIPGap           float64
}

// Result is one solver's normalized outcome.
type Result struct {
	Status          string // optimal or feasible (only set on acceptance)
	Solver          string
	Objective       float64
	RuntimeSeconds  float64
	Gap             float64
	Termination     string
	VariableValues  map[string]float64
}

// Solver is the capability interface every chain member implements.
type Solver interface {
	Name() string
	IsAvailable() bool
	Solve(ctx context.Context, m *model.Model, opts Options) (Result, error)
}

// Driver walks a configured solver chain in order (spec §4.6).
type Driver struct {
	chain  []Solver
	logger *zap.Logger
}

// NewDriver builds a Driver over chain, in try-order.
func NewDriver(chain []Solver, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{chain: chain, logger: logger}
}

// DefaultChain returns the three standard tiers in fallback order:
// commercial, modern open-source, legacy open-source (spec §4.6).
func DefaultChain() []Solver {
	return []Solver{
		newCommercialSolver(),
		newModernOpenSourceSolver(),
		newLegacyOpenSourceSolver(),
	}
}

// ChainFor resolves a configured solver name to the chain the Driver should
// walk: an explicit name yields a one-element chain, "auto" yields the full
// default chain.
func ChainFor(name string) []Solver {
	switch name {
	case "commercial":
		return []Solver{newCommercialSolver()}
	case "modern-open-source":
		return []Solver{newModernOpenSourceSolver()}
	case "legacy-open-source":
		return []Solver{newLegacyOpenSourceSolver()}
	default:
		return DefaultChain()
	}
}

// Solve walks d's chain, trying each available solver in turn. An
// unavailable solver is skipped; an unacceptable termination falls through
// to the next. When no attempt is accepted, errs.KindInfeasible is returned
// if at least one attempt ended infeasible; errs.KindSolverUnavailable
// covers every other exhaustion.
func (d *Driver) Solve(ctx context.Context, m *model.Model, opts Options) (Result, error) {
	sawInfeasible := false

	for _, s := range d.chain {
		if !s.IsAvailable() {
			d.logger.Debug("solver unavailable, skipping", zap.String("solver", s.Name()))
			continue
		}

		started := time.Now()
		result, err := s.Solve(ctx, m, opts)
		duration := time.Since(started)
		result.RuntimeSeconds = duration.Seconds()

		if err != nil {
			metrics.RecordSolverAttempt(s.Name(), "error", duration, 0)
			d.logger.Warn("solver attempt errored", zap.String("solver", s.Name()), zap.Error(err))
			continue
		}

		if result.Termination == TerminationInfeasible {
			sawInfeasible = true
			metrics.RecordSolverAttempt(s.Name(), "infeasible", duration, 0)
			continue
		}

		if !isAcceptableTermination(result.Termination) {
			metrics.RecordSolverAttempt(s.Name(), "rejected", duration, 0)
			continue
		}

		metrics.RecordSolverAttempt(s.Name(), "solved", duration, result.Gap)
		return result, nil
	}

	if sawInfeasible {
		return Result{}, errs.New(errs.KindInfeasible, "solver.Driver.Solve", "model has no feasible solution under hard demand equality")
	}
	return Result{}, errs.New(errs.KindSolverUnavailable, "solver.Driver.Solve", "solver chain exhausted with no acceptable termination")
}

// toResult adapts the internal branch-and-bound outcome to the package's
// public Result, setting Status only when the termination was accepted.
func toResult(solverName string, bb bbResult) Result {
	status := ""
	if bb.termination == TerminationOptimal {
		status = TerminationOptimal
	} else if isAcceptableTermination(bb.termination) {
		status = TerminationFeasible
	}
	return Result{
		Status:         status,
		Solver:         solverName,
		Objective:      bb.objective,
		Gap:            bb.gap,
		Termination:    bb.termination,
		VariableValues: bb.values,
	}
}
