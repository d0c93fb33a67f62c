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
	"os"
	"time"

	"github.com/marcus-qen/clinkerplan/internal/planning/model"
)

// licenseKeyEnvVar gates the commercial tier the same way routing's
// secondary provider is gated by RoutingConfig.Credentialed: no key, no
// attempt, fall through to the next tier in the chain.
const licenseKeyEnvVar = "CLINKERPLAN_COMMERCIAL_SOLVER_LICENSE_KEY"

// commercialSolver stands in for a licensed third-party MILP solver. No such
// solver ships in this repository; when a license key is present this tier
// runs the same branch-and-bound engine, node budget and MIP gap as the
// modern open-source tier, so the two differ only in availability.
type commercialSolver struct{}

func newCommercialSolver() *commercialSolver {
	return &commercialSolver{}
}

func (c *commercialSolver) Name() string { return "commercial" }

func (c *commercialSolver) IsAvailable() bool {
	return os.Getenv(licenseKeyEnvVar) != ""
}

func (c *commercialSolver) Solve(ctx context.Context, m *model.Model, opts Options) (Result, error) {
	timeLimit := time.Duration(opts.TimeLimitSeconds) * time.Second
	if timeLimit <= 0 {
		timeLimit = 300 * time.Second
	}
	bb := branchAndBound(ctx, m, timeLimit, opts.MIPGap)
	return toResult(c.Name(), bb), nil
}
