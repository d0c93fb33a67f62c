/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package ingestion

import "strings"

// Target table names. These match the Canonical Store's table names exactly,
// so the Promoter can map a batch's target_table straight onto a store method.
const (
	TargetPlants                 = "plants"
	TargetProductionCapacityCost = "production_capacity_costs"
	TargetTransportRoutes        = "transport_routes"
	TargetDemandForecasts        = "demand_forecasts"
	TargetInitialInventory       = "initial_inventory"
	TargetSafetyStockPolicies    = "safety_stock_policies"
)

// RequiredColumns lists the canonical columns a row must supply (after alias
// resolution) to be accepted as belonging to a target table. Used both to
// infer a target table from an unlabeled row and to flag missing-data
// findings downstream in the Validator.
var RequiredColumns = map[string][]string{
	TargetPlants:                 {"id", "name", "type"},
	TargetProductionCapacityCost: {"plant_id", "period", "max_capacity"},
	TargetTransportRoutes:        {"origin_plant_id", "destination_node_id", "transport_mode"},
	TargetDemandForecasts:        {"customer_node_id", "period", "demand"},
	TargetInitialInventory:       {"node_id", "period", "tonnes"},
	TargetSafetyStockPolicies:    {"node_id", "policy_type", "policy_value"},
}

// ColumnAliases maps every known alternate column spelling to its canonical
// §3 name. The two duplicated conventions the source data mixes — capacity
// and demand columns — are resolved here; every other canonical column is
// also listed as an alias of itself so AliasFor is a total function over the
// known column set.
var ColumnAliases = map[string]string{
	// capacity / cost aliases
	"capacity_tonnes":         "max_capacity",
	"max_capacity_tonnes":     "max_capacity",
	"max_capacity":            "max_capacity",
	"variable_cost":           "variable_cost",
	"variable_cost_per_tonne": "variable_cost",
	"fixed_cost":              "fixed_cost",
	"fixed_cost_per_period":   "fixed_cost",
	"min_run_level":           "min_run_level",
	"minimum_run_level":       "min_run_level",
	"holding_cost":            "holding_cost",
	"holding_cost_per_tonne":  "holding_cost",

	// demand aliases
	"demand":          "demand",
	"demand_tonnes":   "demand",
	"forecast_tonnes": "demand",
	"low_band":        "low_band",
	"demand_low":      "low_band",
	"high_band":       "high_band",
	"demand_high":     "high_band",

	// route aliases
	"distance_km":             "distance_km",
	"distance":                "distance_km",
	"fixed_cost_per_trip":     "fixed_cost_per_trip",
	"vehicle_capacity":        "vehicle_capacity",
	"vehicle_capacity_tonnes": "vehicle_capacity",
	"min_batch_quantity":      "min_batch_quantity",
	"sbq":                     "min_batch_quantity",
	"minimum_batch_quantity":  "min_batch_quantity",

	// identifiers and shared columns, aliased to themselves so AliasFor
	// covers the whole known column surface
	"id": "id", "name": "name", "type": "type", "latitude": "latitude",
	"longitude": "longitude", "region": "region", "country": "country",
	"plant_id": "plant_id", "period": "period",
	"origin_plant_id": "origin_plant_id", "destination_node_id": "destination_node_id",
	"transport_mode": "transport_mode", "active": "active",
	"customer_node_id": "customer_node_id", "confidence": "confidence", "source": "source",
	"node_id": "node_id", "tonnes": "tonnes",
	"policy_type": "policy_type", "policy_value": "policy_value",
	"safety_stock_tonnes": "safety_stock_tonnes", "max_inventory_tonnes": "max_inventory_tonnes",
}

// AliasFor resolves a normalized column name to its canonical name. Unknown
// columns are returned unchanged — the Validator turns those into
// warning-level findings rather than rejecting the row (spec §9 decision).
func AliasFor(normalized string) string {
	if canonical, ok := ColumnAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// IsKnownColumn reports whether normalized is a recognized alias for any
// target table's canonical columns.
func IsKnownColumn(normalized string) bool {
	_, ok := ColumnAliases[normalized]
	return ok
}

// inferTargetTable guesses a target table from the source descriptor's
// filename and cross-checks the guess against the row's required columns,
// falling back to a pure column-based match when the filename gives no hint.
func inferTargetTable(source string, sampleColumns map[string]bool) (string, error) {
	lower := strings.ToLower(source)

	byName := map[string]string{
		"plant":          TargetPlants,
		"capacity":       TargetProductionCapacityCost,
		"cost":           TargetProductionCapacityCost,
		"route":          TargetTransportRoutes,
		"transport":      TargetTransportRoutes,
		"demand":         TargetDemandForecasts,
		"forecast":       TargetDemandForecasts,
		"inventory":      TargetInitialInventory,
		"safety_stock":   TargetSafetyStockPolicies,
		"safety-stock":   TargetSafetyStockPolicies,
		"safetystock":    TargetSafetyStockPolicies,
	}
	for needle, table := range byName {
		if strings.Contains(lower, needle) {
			if satisfiesRequiredColumns(table, sampleColumns) {
				return table, nil
			}
		}
	}

	for table := range RequiredColumns {
		if satisfiesRequiredColumns(table, sampleColumns) {
			return table, nil
		}
	}

	return "", errUnknownTarget(source)
}

func satisfiesRequiredColumns(table string, sampleColumns map[string]bool) bool {
	for _, col := range RequiredColumns[table] {
		if !sampleColumns[col] {
			return false
		}
	}
	return true
}
