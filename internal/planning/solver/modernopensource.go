/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package solver

import (
	"context"
	"time"

	"github.com/marcus-qen/clinkerplan/internal/planning/model"
)

// modernOpenSourceSolver always succeeds IsAvailable: it is the first
// unconditional fallback (spec §4.6), running the same branch-and-bound
// engine and node budget (defaultMaxBBNodes) as the other tiers.
type modernOpenSourceSolver struct{}

func newModernOpenSourceSolver() *modernOpenSourceSolver {
	return &modernOpenSourceSolver{}
}

func (s *modernOpenSourceSolver) Name() string { return "modernOpenSource" }

func (s *modernOpenSourceSolver) IsAvailable() bool { return true }

func (s *modernOpenSourceSolver) Solve(ctx context.Context, m *model.Model, opts Options) (Result, error) {
	timeLimit := time.Duration(opts.TimeLimitSeconds) * time.Second
	if timeLimit <= 0 {
		timeLimit = 300 * time.Second
	}
	bb := branchAndBound(ctx, m, timeLimit, opts.MIPGap)
	return toResult(s.Name(), bb), nil
}
