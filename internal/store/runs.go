/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus-qen/clinkerplan/internal/errs"
)

// InsertRun persists a new optimization run record.
func (s *CanonicalStore) InsertRun(r OptimizationRun) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO optimization_runs (run_id, scenario, solver_name, solver_status, objective, solve_time_seconds, time_limit_seconds, gap_tolerance, started_at, finished_at, validation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.RunID, r.Scenario, r.SolverName, r.SolverStatus, r.Objective, r.SolveTimeSeconds, r.TimeLimitSeconds, r.GapTolerance, r.StartedAt, r.FinishedAt, r.ValidationStatus)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.InsertRun", err)
	}
	return nil
}

// CompleteRun records a run's terminal solver status and objective.
func (s *CanonicalStore) CompleteRun(runID, solverName, solverStatus string, objective, solveTimeSeconds float64, validationStatus string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE optimization_runs
		SET solver_name = $1, solver_status = $2, objective = $3, solve_time_seconds = $4, finished_at = $5, validation_status = $6
		WHERE run_id = $7`,
		solverName, solverStatus, objective, solveTimeSeconds, now, validationStatus, runID)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.CompleteRun", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return errs.New(errs.KindJobNotFound, "store.CompleteRun", fmt.Sprintf("run %q not found", runID))
	}
	return nil
}

// GetRun returns one optimization run by id.
func (s *CanonicalStore) GetRun(runID string) (*OptimizationRun, error) {
	var r OptimizationRun
	var finishedAt sql.NullTime
	err := s.db.QueryRow(`SELECT run_id, scenario, solver_name, solver_status, objective, solve_time_seconds, time_limit_seconds, gap_tolerance, started_at, finished_at, validation_status
		FROM optimization_runs WHERE run_id = $1`, runID).
		Scan(&r.RunID, &r.Scenario, &r.SolverName, &r.SolverStatus, &r.Objective, &r.SolveTimeSeconds, &r.TimeLimitSeconds, &r.GapTolerance, &r.StartedAt, &finishedAt, &r.ValidationStatus)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.KindJobNotFound, "store.GetRun", fmt.Sprintf("run %q not found", runID))
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.GetRun", err)
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	return &r, nil
}

// UpsertKPIPerPeriod writes one (scenario, period) KPI row, overwritten on
// re-run with the same scenario name.
func (s *CanonicalStore) UpsertKPIPerPeriod(k KPIPerPeriod) error {
	_, err := s.db.Exec(`INSERT INTO kpi_per_period
			(scenario, period, total_cost, production_cost, transport_cost, fixed_trip_cost, holding_cost, penalty_cost,
			 total_production_tonnes, production_utilization, total_shipment_tonnes, total_trips, transport_utilization,
			 sbq_compliance_rate, average_inventory, inventory_turns, total_demand, total_unmet_demand, demand_fulfillment_rate,
			 service_level, stockout_events)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (scenario, period) DO UPDATE SET
			total_cost = EXCLUDED.total_cost, production_cost = EXCLUDED.production_cost, transport_cost = EXCLUDED.transport_cost,
			fixed_trip_cost = EXCLUDED.fixed_trip_cost, holding_cost = EXCLUDED.holding_cost, penalty_cost = EXCLUDED.penalty_cost,
			total_production_tonnes = EXCLUDED.total_production_tonnes, production_utilization = EXCLUDED.production_utilization,
			total_shipment_tonnes = EXCLUDED.total_shipment_tonnes, total_trips = EXCLUDED.total_trips,
			transport_utilization = EXCLUDED.transport_utilization, sbq_compliance_rate = EXCLUDED.sbq_compliance_rate,
			average_inventory = EXCLUDED.average_inventory, inventory_turns = EXCLUDED.inventory_turns,
			total_demand = EXCLUDED.total_demand, total_unmet_demand = EXCLUDED.total_unmet_demand,
			demand_fulfillment_rate = EXCLUDED.demand_fulfillment_rate, service_level = EXCLUDED.service_level,
			stockout_events = EXCLUDED.stockout_events`,
		k.Scenario, k.Period, k.TotalCost, k.ProductionCost, k.TransportCost, k.FixedTripCost, k.HoldingCost, k.PenaltyCost,
		k.TotalProductionTonnes, k.ProductionUtilization, k.TotalShipmentTonnes, k.TotalTrips, k.TransportUtilization,
		k.SBQComplianceRate, k.AverageInventory, k.InventoryTurns, k.TotalDemand, k.TotalUnmetDemand, k.DemandFulfillmentRate,
		k.ServiceLevel, k.StockoutEvents)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertKPIPerPeriod", err)
	}
	return nil
}

// UpsertKPIAggregated writes one scenario's aggregate KPI row, keyed on
// scenario name.
func (s *CanonicalStore) UpsertKPIAggregated(k KPIAggregated) error {
	_, err := s.db.Exec(`INSERT INTO kpi_aggregated
			(scenario, total_cost, production_cost, transport_cost, fixed_trip_cost, holding_cost, penalty_cost,
			 total_production_tonnes, total_shipment_tonnes, total_trips, average_service_level, total_stockout_events)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (scenario) DO UPDATE SET
			total_cost = EXCLUDED.total_cost, production_cost = EXCLUDED.production_cost, transport_cost = EXCLUDED.transport_cost,
			fixed_trip_cost = EXCLUDED.fixed_trip_cost, holding_cost = EXCLUDED.holding_cost, penalty_cost = EXCLUDED.penalty_cost,
			total_production_tonnes = EXCLUDED.total_production_tonnes, total_shipment_tonnes = EXCLUDED.total_shipment_tonnes,
			total_trips = EXCLUDED.total_trips, average_service_level = EXCLUDED.average_service_level,
			total_stockout_events = EXCLUDED.total_stockout_events`,
		k.Scenario, k.TotalCost, k.ProductionCost, k.TransportCost, k.FixedTripCost, k.HoldingCost, k.PenaltyCost,
		k.TotalProductionTonnes, k.TotalShipmentTonnes, k.TotalTrips, k.AverageServiceLevel, k.TotalStockoutEvents)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertKPIAggregated", err)
	}
	return nil
}
