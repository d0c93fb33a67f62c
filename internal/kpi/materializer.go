/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package kpi computes and persists per-(scenario, period) and per-scenario
// summary metrics from a solved plan (spec §4.10).
package kpi

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/metrics"
	"github.com/marcus-qen/clinkerplan/internal/planning/model"
	"github.com/marcus-qen/clinkerplan/internal/planning/result"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// Materializer computes and upserts KPI rows for a completed scenario.
type Materializer struct {
	canonical *store.CanonicalStore
	logger    *zap.Logger
}

// NewMaterializer builds a Materializer backed by canonical.
func NewMaterializer(canonical *store.CanonicalStore, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{canonical: canonical, logger: logger}
}

// Materialize computes per-period and per-scenario KPI rows from plan and
// data (the inputs that produced it), and upserts both (spec §4.10).
func (m *Materializer) Materialize(ctx context.Context, scenarioName string, data model.PlanningData, plan *result.PlanResult) error {
	capacityByPlantPeriod := make(map[model.PlantKeyPeriod]float64, len(data.Capacities))
	for key, cap := range data.Capacities {
		capacityByPlantPeriod[key] = cap.MaxCapacity
	}

	vehicleCapacities := make([]float64, 0, len(data.Routes))
	for _, r := range data.Routes {
		if r.VehicleCapacity > 0 {
			vehicleCapacities = append(vehicleCapacities, r.VehicleCapacity)
		}
	}
	meanVehicleCapacity := mean(vehicleCapacities)

	sbqByRoute := make(map[routeKey]float64, len(data.Routes))
	for _, r := range data.Routes {
		sbqByRoute[routeKey{Origin: r.OriginPlantID, Destination: r.DestinationNodeID, Mode: r.TransportMode}] = r.MinBatchQuantity
	}

	aggregate := store.KPIAggregated{Scenario: scenarioName}
	serviceLevels := make([]float64, 0, len(data.Periods))

	for _, period := range data.Periods {
		row := computePeriodKPI(scenarioName, period, data, plan, capacityByPlantPeriod, meanVehicleCapacity, sbqByRoute)

		if err := m.canonical.UpsertKPIPerPeriod(row); err != nil {
			metrics.RecordKPIMaterialization(scenarioName, "error")
			return errs.Wrap(errs.KindStorageError, "kpi.Materialize", err)
		}

		aggregate.TotalCost += row.TotalCost
		aggregate.ProductionCost += row.ProductionCost
		aggregate.TransportCost += row.TransportCost
		aggregate.FixedTripCost += row.FixedTripCost
		aggregate.HoldingCost += row.HoldingCost
		aggregate.PenaltyCost += row.PenaltyCost
		aggregate.TotalProductionTonnes += row.TotalProductionTonnes
		aggregate.TotalShipmentTonnes += row.TotalShipmentTonnes
		aggregate.TotalTrips += row.TotalTrips
		aggregate.TotalStockoutEvents += row.StockoutEvents
		serviceLevels = append(serviceLevels, row.ServiceLevel)
	}

	aggregate.AverageServiceLevel = mean(serviceLevels)

	if err := m.canonical.UpsertKPIAggregated(aggregate); err != nil {
		metrics.RecordKPIMaterialization(scenarioName, "error")
		return errs.Wrap(errs.KindStorageError, "kpi.Materialize", err)
	}

	metrics.RecordKPIMaterialization(scenarioName, "success")
	m.logger.Info("materialized kpis", zap.String("scenario", scenarioName), zap.Int("periods", len(data.Periods)))
	return nil
}

type routeKey struct {
	Origin      string
	Destination string
	Mode        string
}

func computePeriodKPI(scenarioName, period string, data model.PlanningData, plan *result.PlanResult, capacityByPlantPeriod map[model.PlantKeyPeriod]float64, meanVehicleCapacity float64, sbqByRoute map[routeKey]float64) store.KPIPerPeriod {
	periodCost := plan.CostByPeriod[period]
	row := store.KPIPerPeriod{
		Scenario:       scenarioName,
		Period:         period,
		TotalCost:      periodCost.Total,
		ProductionCost: periodCost.Production,
		TransportCost:  periodCost.Transport,
		FixedTripCost:  periodCost.FixedTrip,
		HoldingCost:    periodCost.Holding,
		PenaltyCost:    periodCost.Penalty,
	}

	totalCapacity := 0.0
	for plantID := range plantIDsOf(data) {
		totalCapacity += capacityByPlantPeriod[model.PlantKeyPeriod{PlantID: plantID, Period: period}]
	}

	totalProduction := 0.0
	inventories := make([]float64, 0)
	for _, line := range plan.Production {
		if line.Period != period {
			continue
		}
		totalProduction += line.Tonnes
	}
	for _, line := range plan.Inventory {
		if line.Period != period {
			continue
		}
		inventories = append(inventories, line.Tonnes)
	}
	row.TotalProductionTonnes = totalProduction
	row.AverageInventory = mean(inventories)
	if totalCapacity > 0 {
		row.ProductionUtilization = totalProduction / totalCapacity
	}

	totalShipment := 0.0
	totalTrips := 0
	compliantRoutes, activeRoutes := 0, 0
	for _, line := range plan.Shipments {
		if line.Period != period {
			continue
		}
		totalShipment += line.Tonnes
		key := routeKey{Origin: line.OriginID, Destination: line.DestinationID, Mode: line.Mode}
		activeRoutes++
		if line.Tonnes >= sbqByRoute[key] {
			compliantRoutes++
		}
	}
	for _, line := range plan.Trips {
		if line.Period != period {
			continue
		}
		totalTrips += line.Trips
	}
	row.TotalShipmentTonnes = totalShipment
	row.TotalTrips = totalTrips
	if totalTrips > 0 && meanVehicleCapacity > 0 {
		row.TransportUtilization = totalShipment / (float64(totalTrips) * meanVehicleCapacity)
	}
	if activeRoutes > 0 {
		row.SBQComplianceRate = float64(compliantRoutes) / float64(activeRoutes)
	} else {
		row.SBQComplianceRate = 1.0
	}
	if row.AverageInventory > 0 {
		row.InventoryTurns = totalShipment / row.AverageInventory
	}

	totalDemand := 0.0
	totalFulfilled := 0.0
	stockouts := 0
	for key, d := range data.Demand {
		if key.Period != period {
			continue
		}
		fulfilled := fulfilledFor(plan, key.CustomerID, period)
		totalDemand += d.Demand
		totalFulfilled += math.Min(fulfilled, d.Demand)
		if fulfilled < d.Demand {
			stockouts++
		}
	}
	row.TotalDemand = totalDemand
	row.TotalUnmetDemand = math.Max(0, totalDemand-totalFulfilled)
	row.StockoutEvents = stockouts
	if totalDemand > 0 {
		row.DemandFulfillmentRate = totalFulfilled / totalDemand
		row.ServiceLevel = totalFulfilled / totalDemand
	} else {
		row.DemandFulfillmentRate = 1.0
		row.ServiceLevel = 1.0
	}

	return row
}

func fulfilledFor(plan *result.PlanResult, customerID, period string) float64 {
	total := 0.0
	for _, line := range plan.Shipments {
		if line.DestinationID == customerID && line.Period == period {
			total += line.Tonnes
		}
	}
	return total
}

func plantIDsOf(data model.PlanningData) map[string]struct{} {
	out := make(map[string]struct{}, len(data.Plants))
	for _, p := range data.Plants {
		out[p.ID] = struct{}{}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
