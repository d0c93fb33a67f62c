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

	"github.com/marcus-qen/clinkerplan/internal/errs"
)

// Invariants enforced defensively at the storage boundary in addition to the
// Validator's checks, because canonical writes only ever happen through the
// Promoter.
func validatePlant(p Plant) error {
	if p.ID == "" {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertPlant", "id is required")
	}
	return nil
}

func validateCapacityCost(c ProductionCapacityCost) error {
	if c.MaxCapacity < 0 || c.VariableCost < 0 || c.FixedCost < 0 || c.MinRunLevel < 0 || c.HoldingCost < 0 {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertCapacityCost", "capacity and costs must be >= 0")
	}
	return nil
}

func validateRoute(r TransportRoute) error {
	if r.OriginPlantID == r.DestinationNodeID {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertRoute", "origin must not equal destination")
	}
	if r.Active && r.MinBatchQuantity > r.VehicleCapacity {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertRoute", "SBQ must not exceed vehicle capacity")
	}
	return nil
}

// UpsertPlant inserts or updates a plant row, keyed on id.
func (s *CanonicalStore) UpsertPlant(p Plant) error {
	if err := validatePlant(p); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO plants (id, name, type, latitude, longitude, region, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude, region = EXCLUDED.region, country = EXCLUDED.country`,
		p.ID, p.Name, p.Type, p.Latitude, p.Longitude, p.Region, p.Country)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertPlant", err)
	}
	return nil
}

// GetPlant returns one plant by id.
func (s *CanonicalStore) GetPlant(id string) (*Plant, error) {
	var p Plant
	err := s.db.QueryRow(`SELECT id, name, type, latitude, longitude, region, country FROM plants WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Type, &p.Latitude, &p.Longitude, &p.Region, &p.Country)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.KindBatchNotFound, "store.GetPlant", fmt.Sprintf("plant %q not found", id))
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.GetPlant", err)
	}
	return &p, nil
}

// ListPlants returns every plant, ordered by id.
func (s *CanonicalStore) ListPlants() ([]Plant, error) {
	rows, err := s.db.Query(`SELECT id, name, type, latitude, longitude, region, country FROM plants ORDER BY id`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.ListPlants", err)
	}
	defer rows.Close()

	var out []Plant
	for rows.Next() {
		var p Plant
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Latitude, &p.Longitude, &p.Region, &p.Country); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, "store.ListPlants", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPlants reports how many plants exist, used by the Validator's
// referential-integrity stage to decide whether to skip the check while the
// canonical table is still empty (bootstrapping).
func (s *CanonicalStore) CountPlants() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM plants`).Scan(&n); err != nil {
		return 0, errs.Wrap(errs.KindStorageError, "store.CountPlants", err)
	}
	return n, nil
}

// UpsertCapacityCost inserts or updates one (plant, period) capacity/cost row.
func (s *CanonicalStore) UpsertCapacityCost(c ProductionCapacityCost) error {
	if err := validateCapacityCost(c); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO production_capacity_costs (plant_id, period, max_capacity, variable_cost, fixed_cost, min_run_level, holding_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (plant_id, period) DO UPDATE SET
			max_capacity = EXCLUDED.max_capacity, variable_cost = EXCLUDED.variable_cost,
			fixed_cost = EXCLUDED.fixed_cost, min_run_level = EXCLUDED.min_run_level, holding_cost = EXCLUDED.holding_cost`,
		c.PlantID, c.Period, c.MaxCapacity, c.VariableCost, c.FixedCost, c.MinRunLevel, c.HoldingCost)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertCapacityCost", err)
	}
	return nil
}

// ListCapacityCosts returns every capacity/cost row, ordered by plant then period.
func (s *CanonicalStore) ListCapacityCosts() ([]ProductionCapacityCost, error) {
	rows, err := s.db.Query(`SELECT plant_id, period, max_capacity, variable_cost, fixed_cost, min_run_level, holding_cost
		FROM production_capacity_costs ORDER BY plant_id, period`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.ListCapacityCosts", err)
	}
	defer rows.Close()

	var out []ProductionCapacityCost
	for rows.Next() {
		var c ProductionCapacityCost
		if err := rows.Scan(&c.PlantID, &c.Period, &c.MaxCapacity, &c.VariableCost, &c.FixedCost, &c.MinRunLevel, &c.HoldingCost); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, "store.ListCapacityCosts", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertRoute inserts or updates one transport route.
func (s *CanonicalStore) UpsertRoute(r TransportRoute) error {
	if err := validateRoute(r); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO transport_routes
			(origin_plant_id, destination_node_id, transport_mode, distance_km, variable_cost_per_tonne, fixed_cost_per_trip, vehicle_capacity, min_batch_quantity, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (origin_plant_id, destination_node_id, transport_mode) DO UPDATE SET
			distance_km = EXCLUDED.distance_km, variable_cost_per_tonne = EXCLUDED.variable_cost_per_tonne,
			fixed_cost_per_trip = EXCLUDED.fixed_cost_per_trip, vehicle_capacity = EXCLUDED.vehicle_capacity,
			min_batch_quantity = EXCLUDED.min_batch_quantity, active = EXCLUDED.active`,
		r.OriginPlantID, r.DestinationNodeID, r.TransportMode, r.DistanceKM, r.VariableCostPerTonne,
		r.FixedCostPerTrip, r.VehicleCapacity, r.MinBatchQuantity, r.Active)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertRoute", err)
	}
	return nil
}

// ListActiveRoutes returns every active route with positive vehicle capacity
// — exactly the route set R the Model Builder consumes (§4.5 excludes
// vehicle_capacity <= 0 routes from R before construction).
func (s *CanonicalStore) ListActiveRoutes() ([]TransportRoute, error) {
	rows, err := s.db.Query(`SELECT origin_plant_id, destination_node_id, transport_mode, distance_km, variable_cost_per_tonne, fixed_cost_per_trip, vehicle_capacity, min_batch_quantity, active
		FROM transport_routes WHERE active = TRUE AND vehicle_capacity > 0
		ORDER BY origin_plant_id, destination_node_id, transport_mode`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.ListActiveRoutes", err)
	}
	defer rows.Close()

	var out []TransportRoute
	for rows.Next() {
		var r TransportRoute
		if err := rows.Scan(&r.OriginPlantID, &r.DestinationNodeID, &r.TransportMode, &r.DistanceKM, &r.VariableCostPerTonne, &r.FixedCostPerTrip, &r.VehicleCapacity, &r.MinBatchQuantity, &r.Active); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, "store.ListActiveRoutes", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertDemand inserts or updates one (customer, period) demand row.
func (s *CanonicalStore) UpsertDemand(d DemandForecast) error {
	if d.Demand < 0 {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertDemand", "demand must be >= 0")
	}
	_, err := s.db.Exec(`INSERT INTO demand_forecasts (customer_node_id, period, demand, low_band, high_band, confidence, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_node_id, period) DO UPDATE SET
			demand = EXCLUDED.demand, low_band = EXCLUDED.low_band, high_band = EXCLUDED.high_band,
			confidence = EXCLUDED.confidence, source = EXCLUDED.source`,
		d.CustomerNodeID, d.Period, d.Demand, d.LowBand, d.HighBand, d.Confidence, d.Source)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertDemand", err)
	}
	return nil
}

// ListDemand returns every demand row, ordered by customer then period.
func (s *CanonicalStore) ListDemand() ([]DemandForecast, error) {
	rows, err := s.db.Query(`SELECT customer_node_id, period, demand, low_band, high_band, confidence, source
		FROM demand_forecasts ORDER BY customer_node_id, period`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.ListDemand", err)
	}
	defer rows.Close()

	var out []DemandForecast
	for rows.Next() {
		var d DemandForecast
		if err := rows.Scan(&d.CustomerNodeID, &d.Period, &d.Demand, &d.LowBand, &d.HighBand, &d.Confidence, &d.Source); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, "store.ListDemand", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertInitialInventory inserts or updates one (node, period) opening balance.
func (s *CanonicalStore) UpsertInitialInventory(inv InitialInventory) error {
	if inv.Tonnes < 0 {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertInitialInventory", "tonnes must be >= 0")
	}
	_, err := s.db.Exec(`INSERT INTO initial_inventory (node_id, period, tonnes) VALUES ($1, $2, $3)
		ON CONFLICT (node_id, period) DO UPDATE SET tonnes = EXCLUDED.tonnes`,
		inv.NodeID, inv.Period, inv.Tonnes)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertInitialInventory", err)
	}
	return nil
}

// ListInitialInventory returns every opening-inventory row.
func (s *CanonicalStore) ListInitialInventory() ([]InitialInventory, error) {
	rows, err := s.db.Query(`SELECT node_id, period, tonnes FROM initial_inventory ORDER BY node_id, period`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.ListInitialInventory", err)
	}
	defer rows.Close()

	var out []InitialInventory
	for rows.Next() {
		var inv InitialInventory
		if err := rows.Scan(&inv.NodeID, &inv.Period, &inv.Tonnes); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, "store.ListInitialInventory", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpsertSafetyStockPolicy inserts or updates one node's safety-stock policy.
func (s *CanonicalStore) UpsertSafetyStockPolicy(p SafetyStockPolicy) error {
	if p.MaxInventoryTonnes != nil && p.SafetyStockTonnes > *p.MaxInventoryTonnes {
		return errs.New(errs.KindBusinessRuleError, "store.UpsertSafetyStockPolicy", "safety stock must not exceed max inventory")
	}
	_, err := s.db.Exec(`INSERT INTO safety_stock_policies (node_id, policy_type, policy_value, safety_stock_tonnes, max_inventory_tonnes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (node_id) DO UPDATE SET
			policy_type = EXCLUDED.policy_type, policy_value = EXCLUDED.policy_value,
			safety_stock_tonnes = EXCLUDED.safety_stock_tonnes, max_inventory_tonnes = EXCLUDED.max_inventory_tonnes`,
		p.NodeID, p.PolicyType, p.PolicyValue, p.SafetyStockTonnes, p.MaxInventoryTonnes)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertSafetyStockPolicy", err)
	}
	return nil
}

// ListSafetyStockPolicies returns every safety-stock policy.
func (s *CanonicalStore) ListSafetyStockPolicies() ([]SafetyStockPolicy, error) {
	rows, err := s.db.Query(`SELECT node_id, policy_type, policy_value, safety_stock_tonnes, max_inventory_tonnes FROM safety_stock_policies ORDER BY node_id`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.ListSafetyStockPolicies", err)
	}
	defer rows.Close()

	var out []SafetyStockPolicy
	for rows.Next() {
		var p SafetyStockPolicy
		if err := rows.Scan(&p.NodeID, &p.PolicyType, &p.PolicyValue, &p.SafetyStockTonnes, &p.MaxInventoryTonnes); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, "store.ListSafetyStockPolicies", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
