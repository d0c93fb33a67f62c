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

	"github.com/marcus-qen/clinkerplan/internal/errs"
)

// Execer is satisfied by both *sql.Tx and *sql.DB, so the Promoter's
// transaction-scoped upserts below can run against either.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// The Tx-suffixed upserts below mirror the CanonicalStore upserts exactly,
// but run against the Promoter's single transaction instead of s.db, so a
// batch's rows commit or roll back together (spec §4.3).

// UpsertPlantTx upserts one plant inside tx.
func UpsertPlantTx(tx Execer, p Plant) error {
	if err := validatePlant(p); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO plants (id, name, type, latitude, longitude, region, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude, region = EXCLUDED.region, country = EXCLUDED.country`,
		p.ID, p.Name, p.Type, p.Latitude, p.Longitude, p.Region, p.Country)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertPlantTx", err)
	}
	return nil
}

// UpsertCapacityCostTx upserts one capacity/cost row inside tx.
func UpsertCapacityCostTx(tx Execer, c ProductionCapacityCost) error {
	if err := validateCapacityCost(c); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO production_capacity_costs (plant_id, period, max_capacity, variable_cost, fixed_cost, min_run_level, holding_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (plant_id, period) DO UPDATE SET
			max_capacity = EXCLUDED.max_capacity, variable_cost = EXCLUDED.variable_cost,
			fixed_cost = EXCLUDED.fixed_cost, min_run_level = EXCLUDED.min_run_level, holding_cost = EXCLUDED.holding_cost`,
		c.PlantID, c.Period, c.MaxCapacity, c.VariableCost, c.FixedCost, c.MinRunLevel, c.HoldingCost)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertCapacityCostTx", err)
	}
	return nil
}

// UpsertRouteTx upserts one transport route inside tx.
func UpsertRouteTx(tx Execer, r TransportRoute) error {
	if err := validateRoute(r); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO transport_routes
			(origin_plant_id, destination_node_id, transport_mode, distance_km, variable_cost_per_tonne, fixed_cost_per_trip, vehicle_capacity, min_batch_quantity, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (origin_plant_id, destination_node_id, transport_mode) DO UPDATE SET
			distance_km = EXCLUDED.distance_km, variable_cost_per_tonne = EXCLUDED.variable_cost_per_tonne,
			fixed_cost_per_trip = EXCLUDED.fixed_cost_per_trip, vehicle_capacity = EXCLUDED.vehicle_capacity,
			min_batch_quantity = EXCLUDED.min_batch_quantity, active = EXCLUDED.active`,
		r.OriginPlantID, r.DestinationNodeID, r.TransportMode, r.DistanceKM, r.VariableCostPerTonne,
		r.FixedCostPerTrip, r.VehicleCapacity, r.MinBatchQuantity, r.Active)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertRouteTx", err)
	}
	return nil
}

// UpsertDemandTx upserts one demand row inside tx.
func UpsertDemandTx(tx Execer, d DemandForecast) error {
	if d.Demand < 0 {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertDemandTx", "demand must be >= 0")
	}
	_, err := tx.Exec(`INSERT INTO demand_forecasts (customer_node_id, period, demand, low_band, high_band, confidence, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_node_id, period) DO UPDATE SET
			demand = EXCLUDED.demand, low_band = EXCLUDED.low_band, high_band = EXCLUDED.high_band,
			confidence = EXCLUDED.confidence, source = EXCLUDED.source`,
		d.CustomerNodeID, d.Period, d.Demand, d.LowBand, d.HighBand, d.Confidence, d.Source)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertDemandTx", err)
	}
	return nil
}

// UpsertInitialInventoryTx upserts one opening-inventory row inside tx.
func UpsertInitialInventoryTx(tx Execer, inv InitialInventory) error {
	if inv.Tonnes < 0 {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertInitialInventoryTx", "tonnes must be >= 0")
	}
	_, err := tx.Exec(`INSERT INTO initial_inventory (node_id, period, tonnes) VALUES ($1, $2, $3)
		ON CONFLICT (node_id, period) DO UPDATE SET tonnes = EXCLUDED.tonnes`,
		inv.NodeID, inv.Period, inv.Tonnes)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertInitialInventoryTx", err)
	}
	return nil
}

// UpsertSafetyStockPolicyTx upserts one safety-stock policy inside tx.
func UpsertSafetyStockPolicyTx(tx Execer, p SafetyStockPolicy) error {
	if p.MaxInventoryTonnes != nil && p.SafetyStockTonnes > *p.MaxInventoryTonnes {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertSafetyStockPolicyTx", "safety stock must not exceed max inventory")
	}
	_, err := tx.Exec(`INSERT INTO safety_stock_policies (node_id, policy_type, policy_value, safety_stock_tonnes, max_inventory_tonnes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (node_id) DO UPDATE SET
			policy_type = EXCLUDED.policy_type, policy_value = EXCLUDED.policy_value,
			safety_stock_tonnes = EXCLUDED.safety_stock_tonnes, max_inventory_tonnes = EXCLUDED.max_inventory_tonnes`,
		p.NodeID, p.PolicyType, p.PolicyValue, p.SafetyStockTonnes, p.MaxInventoryTonnes)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertSafetyStockPolicyTx", err)
	}
	return nil
}
