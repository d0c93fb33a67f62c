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

// legacyOpenSourceTimeBudget caps the last-resort tier well under the
// configured limit: it exists to return something under a degraded deadline,
// not to keep searching as long as the earlier tiers would.
const legacyOpenSourceTimeBudget = 60 * time.Second

// legacyOpenSourceSolver is the last-resort tier (spec §4.6): always
// available, but bounded to a short time budget so a chain that has already
// burned its allotment on earlier tiers still returns before the caller's
// own deadline.
type legacyOpenSourceSolver struct{}

func newLegacyOpenSourceSolver() *legacyOpenSourceSolver {
	return &legacyOpenSourceSolver{}
}

func (s *legacyOpenSourceSolver) Name() string { return "legacyOpenSource" }

func (s *legacyOpenSourceSolver) IsAvailable() bool { return true }

func (s *legacyOpenSourceSolver) Solve(ctx context.Context, m *model.Model, opts Options) (Result, error) {
	timeLimit := legacyOpenSourceTimeBudget
	if configured := time.Duration(opts.TimeLimitSeconds) * time.Second; configured > 0 && configured < timeLimit {
		timeLimit = configured
	}
	bb := branchAndBound(ctx, m, timeLimit, opts.MIPGap)
	return toResult(s.Name(), bb), nil
}
