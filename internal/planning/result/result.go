/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package result converts a solved model's variable values into a plan
// object and a cost breakdown cross-checked against the objective (spec
// §4.7). Extraction is pure: it touches no store and does no I/O.
package result

import (
	"fmt"
	"math"

	"github.com/marcus-qen/clinkerplan/internal/planning/model"
	"github.com/marcus-qen/clinkerplan/internal/planning/solver"
)

const costTolerance = 1e-6

// ProductionLine is one plant/period production quantity.
type ProductionLine struct {
	PlantID string
	Period  string
	Tonnes  float64
}

// ShipmentLine is one lane/period shipment quantity, always strictly
// positive (spec §4.7: shipments list filtered to strictly positive tonnage).
type ShipmentLine struct {
	OriginID      string
	DestinationID string
	Mode          string
	Period        string
	Tonnes        float64
}

// TripLine is one lane/period trip count, rounded to the nearest integer.
type TripLine struct {
	OriginID      string
	DestinationID string
	Mode          string
	Period        string
	Trips         int
}

// InventoryLine is one plant/period ending inventory quantity.
type InventoryLine struct {
	PlantID string
	Period  string
	Tonnes  float64
}

// CostBreakdown recomputes the objective's components independently from
// the solved variable values, so Extract can confirm consistency with the
// solver's reported objective (spec invariant #9).
type CostBreakdown struct {
	Total      float64
	Production float64
	Transport  float64
	FixedTrip  float64
	Holding    float64
	Penalty    float64
}

// PlanResult is the full output of extraction.
type PlanResult struct {
	Production    []ProductionLine
	Shipments     []ShipmentLine
	Trips         []TripLine
	Inventory     []InventoryLine
	Objective     float64
	CostBreakdown CostBreakdown
	// CostByPeriod holds the same components as CostBreakdown, but each
	// decomposed to the one period its variable belongs to, so callers that
	// need a per-period cost (the KPI Materializer) don't have to re-derive
	// it from the whole-plan total.
	CostByPeriod map[string]CostBreakdown
}

// Extract converts a solver.Result's variable values into a PlanResult,
// recomputing cost_breakdown from m's objective coefficients rather than
// trusting the solver's scalar objective at face value.
func Extract(m *model.Model, solved solver.Result) (*PlanResult, error) {
	values := solved.VariableValues

	plan := &PlanResult{Objective: solved.Objective, CostByPeriod: make(map[string]CostBreakdown)}

	for _, v := range m.Variables {
		parsed := model.ParseVarName(v.Name)
		value := values[v.Name]
		amount := m.Objective[v.Name] * value

		switch parsed.Kind {
		case "prod":
			plantID, period := parsed.Parts[0], parsed.Parts[1]
			plan.Production = append(plan.Production, ProductionLine{PlantID: plantID, Period: period, Tonnes: value})
			plan.CostBreakdown.Production += amount
			cb := plan.CostByPeriod[period]
			cb.Production += amount
			plan.CostByPeriod[period] = cb

		case "inv":
			plantID, period := parsed.Parts[0], parsed.Parts[1]
			plan.Inventory = append(plan.Inventory, InventoryLine{PlantID: plantID, Period: period, Tonnes: value})
			plan.CostBreakdown.Holding += amount
			cb := plan.CostByPeriod[period]
			cb.Holding += amount
			plan.CostByPeriod[period] = cb

		case "ship":
			origin, destination, mode, period := parsed.Parts[0], parsed.Parts[1], parsed.Parts[2], parsed.Parts[3]
			plan.CostBreakdown.Transport += amount
			cb := plan.CostByPeriod[period]
			cb.Transport += amount
			plan.CostByPeriod[period] = cb
			if value > costTolerance {
				plan.Shipments = append(plan.Shipments, ShipmentLine{
					OriginID: origin, DestinationID: destination, Mode: mode, Period: period, Tonnes: value,
				})
			}

		case "trips":
			origin, destination, mode, period := parsed.Parts[0], parsed.Parts[1], parsed.Parts[2], parsed.Parts[3]
			rounded := math.Round(value)
			if math.Abs(value-rounded) > 1e-6 {
				return nil, fmt.Errorf("result.Extract: trips variable %q = %v is not integral within tolerance", v.Name, value)
			}
			plan.CostBreakdown.FixedTrip += amount
			cb := plan.CostByPeriod[period]
			cb.FixedTrip += amount
			plan.CostByPeriod[period] = cb
			plan.Trips = append(plan.Trips, TripLine{
				OriginID: origin, DestinationID: destination, Mode: mode, Period: period, Trips: int(rounded),
			})

		case "slack":
			period := parsed.Parts[1]
			plan.CostBreakdown.Penalty += amount
			cb := plan.CostByPeriod[period]
			cb.Penalty += amount
			plan.CostByPeriod[period] = cb
		}
	}

	plan.CostBreakdown.Total = plan.CostBreakdown.Production + plan.CostBreakdown.Transport +
		plan.CostBreakdown.FixedTrip + plan.CostBreakdown.Holding + plan.CostBreakdown.Penalty
	for period, cb := range plan.CostByPeriod {
		cb.Total = cb.Production + cb.Transport + cb.FixedTrip + cb.Holding + cb.Penalty
		plan.CostByPeriod[period] = cb
	}

	if err := checkConsistency(plan.Objective, plan.CostBreakdown.Total); err != nil {
		return nil, err
	}

	return plan, nil
}

// checkConsistency enforces objective ≡ breakdown within 1e-6 relative
// tolerance (spec invariant #9), falling back to absolute tolerance when the
// objective is near zero.
func checkConsistency(objective, breakdownTotal float64) error {
	diff := math.Abs(objective - breakdownTotal)
	scale := math.Max(math.Abs(objective), 1.0)
	if diff/scale > costTolerance {
		return fmt.Errorf("result.Extract: objective %v inconsistent with cost breakdown total %v (diff %v exceeds tolerance)", objective, breakdownTotal, diff)
	}
	return nil
}
