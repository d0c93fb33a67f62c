/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marcus-qen/clinkerplan/internal/ingestion"
	"github.com/marcus-qen/clinkerplan/internal/staging"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// Business-rule floor constants. Values below these floors are suspicious,
// not invalid — they emit warnings, never errors.
const (
	productionCostFloorPerTonne = 100.0
)

var validPlantTypes = map[string]bool{
	store.PlantTypeClinker:  true,
	store.PlantTypeGrinding: true,
	store.PlantTypeTerminal: true,
	store.PlantTypeCustomer: true,
}

type stageFunc func(targetTable string, rows []staging.Row, canonical *store.CanonicalStore) []Finding

func finding(batchID string, row staging.Row, stage, field, code, message, raw, severity string) Finding {
	return Finding{
		BatchID:         batchID,
		SourceRowNumber: row.SourceRowNumber,
		Stage:           stage,
		Field:           field,
		Code:            code,
		Message:         message,
		RawValue:        raw,
		Severity:        severity,
	}
}

func getFloat(values map[string]string, key string) (float64, bool, error) {
	raw, ok := values[key]
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, err
	}
	return f, true, nil
}

// stageSchema checks required columns are present, identifiers non-empty,
// numeric fields parseable, and enumerations within their allowed sets, and
// warns about columns that are not recognized.
func stageSchema(batchID, targetTable string, rows []staging.Row, _ *store.CanonicalStore) []Finding {
	var out []Finding
	required := ingestion.RequiredColumns[targetTable]

	for _, row := range rows {
		for _, col := range required {
			val, ok := row.Values[col]
			if !ok || strings.TrimSpace(val) == "" {
				out = append(out, finding(batchID, row, StageSchema, col, "missing_required_value",
					fmt.Sprintf("required column %q is missing or empty", col), val, SeverityError))
			}
		}

		for col, val := range row.Values {
			if !ingestion.IsKnownColumn(col) {
				out = append(out, finding(batchID, row, StageSchema, col, "unknown_column",
					fmt.Sprintf("column %q is not recognized", col), val, SeverityWarning))
			}
		}

		for _, numericCol := range numericColumnsFor(targetTable) {
			if raw, ok := row.Values[numericCol]; ok && strings.TrimSpace(raw) != "" {
				if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
					out = append(out, finding(batchID, row, StageSchema, numericCol, "unparseable_number",
						fmt.Sprintf("%q is not a valid number", numericCol), raw, SeverityError))
				}
			}
		}

		if targetTable == ingestion.TargetPlants {
			if t, ok := row.Values["type"]; ok && !validPlantTypes[strings.ToLower(strings.TrimSpace(t))] {
				out = append(out, finding(batchID, row, StageSchema, "type", "invalid_enum_value",
					"plant type must be one of clinker, grinding, terminal, customer", t, SeverityError))
			}
		}
	}
	return out
}

func numericColumnsFor(targetTable string) []string {
	switch targetTable {
	case ingestion.TargetPlants:
		return []string{"latitude", "longitude"}
	case ingestion.TargetProductionCapacityCost:
		return []string{"max_capacity", "variable_cost", "fixed_cost", "min_run_level", "holding_cost"}
	case ingestion.TargetTransportRoutes:
		return []string{"distance_km", "variable_cost", "fixed_cost_per_trip", "vehicle_capacity", "min_batch_quantity"}
	case ingestion.TargetDemandForecasts:
		return []string{"demand", "low_band", "high_band", "confidence"}
	case ingestion.TargetInitialInventory:
		return []string{"tonnes"}
	case ingestion.TargetSafetyStockPolicies:
		return []string{"policy_value", "safety_stock_tonnes", "max_inventory_tonnes"}
	default:
		return nil
	}
}

// stageBusinessRules enforces the domain invariants from spec §4.2.2.
func stageBusinessRules(batchID, targetTable string, rows []staging.Row, _ *store.CanonicalStore) []Finding {
	var out []Finding

	for _, row := range rows {
		switch targetTable {
		case ingestion.TargetDemandForecasts:
			if v, present, err := getFloat(row.Values, "demand"); present && err == nil && v < 0 {
				out = append(out, finding(batchID, row, StageBusinessRules, "demand", "negative_demand",
					"demand must be >= 0", row.Values["demand"], SeverityError))
			}
		case ingestion.TargetProductionCapacityCost:
			if v, present, err := getFloat(row.Values, "max_capacity"); present && err == nil && v <= 0 {
				out = append(out, finding(batchID, row, StageBusinessRules, "max_capacity", "non_positive_capacity",
					"production capacity must be > 0", row.Values["max_capacity"], SeverityError))
			}
			for _, costField := range []string{"variable_cost", "fixed_cost", "holding_cost"} {
				if v, present, err := getFloat(row.Values, costField); present && err == nil && v < 0 {
					out = append(out, finding(batchID, row, StageBusinessRules, costField, "negative_cost",
						fmt.Sprintf("%s must be >= 0", costField), row.Values[costField], SeverityError))
				}
			}
			if v, present, err := getFloat(row.Values, "variable_cost"); present && err == nil && v > 0 && v < productionCostFloorPerTonne {
				out = append(out, finding(batchID, row, StageBusinessRules, "variable_cost", "suspiciously_low_cost",
					fmt.Sprintf("variable cost below the %.0f currency unit/tonne floor", productionCostFloorPerTonne),
					row.Values["variable_cost"], SeverityWarning))
			}
		case ingestion.TargetTransportRoutes:
			origin, destination := row.Values["origin_plant_id"], row.Values["destination_node_id"]
			if origin != "" && origin == destination {
				out = append(out, finding(batchID, row, StageBusinessRules, "destination_node_id", "origin_equals_destination",
					"route origin and destination must differ", destination, SeverityError))
			}
			active := strings.EqualFold(strings.TrimSpace(row.Values["active"]), "true") || row.Values["active"] == "1"
			capacity, capacityPresent, _ := getFloat(row.Values, "vehicle_capacity")
			sbq, sbqPresent, _ := getFloat(row.Values, "min_batch_quantity")
			if active && capacityPresent && capacity <= 0 {
				out = append(out, finding(batchID, row, StageBusinessRules, "vehicle_capacity", "non_positive_capacity",
					"vehicle capacity must be > 0 for an active route", row.Values["vehicle_capacity"], SeverityError))
			}
			if sbqPresent && capacityPresent && sbq > capacity {
				out = append(out, finding(batchID, row, StageBusinessRules, "min_batch_quantity", "sbq_exceeds_capacity",
					"minimum batch quantity exceeds vehicle capacity", row.Values["min_batch_quantity"], SeverityError))
			}
			for _, costField := range []string{"variable_cost", "fixed_cost_per_trip"} {
				if v, present, err := getFloat(row.Values, costField); present && err == nil && v < 0 {
					out = append(out, finding(batchID, row, StageBusinessRules, costField, "negative_cost",
						fmt.Sprintf("%s must be >= 0", costField), row.Values[costField], SeverityError))
				}
			}
		case ingestion.TargetSafetyStockPolicies:
			safety, safetyPresent, _ := getFloat(row.Values, "safety_stock_tonnes")
			max, maxPresent, _ := getFloat(row.Values, "max_inventory_tonnes")
			if safetyPresent && maxPresent && safety > max {
				out = append(out, finding(batchID, row, StageBusinessRules, "safety_stock_tonnes", "safety_stock_exceeds_max",
					"safety stock exceeds maximum inventory", row.Values["safety_stock_tonnes"], SeverityError))
			}
		case ingestion.TargetInitialInventory:
			if v, present, err := getFloat(row.Values, "tonnes"); present && err == nil && v < 0 {
				out = append(out, finding(batchID, row, StageBusinessRules, "tonnes", "negative_inventory",
					"initial inventory must be >= 0", row.Values["tonnes"], SeverityError))
			}
		}
	}
	return out
}

// stageReferentialIntegrity checks that every foreign identifier resolves to
// an existing canonical plant row, unless the canonical plants table is
// still empty (bootstrap exemption, spec §4.2.3).
func stageReferentialIntegrity(batchID, targetTable string, rows []staging.Row, canonical *store.CanonicalStore) []Finding {
	var out []Finding
	if canonical == nil {
		return out
	}
	count, err := canonical.CountPlants()
	if err != nil || count == 0 {
		return out
	}

	refFields := referenceFieldsFor(targetTable)
	if len(refFields) == 0 {
		return out
	}

	cache := make(map[string]bool)
	exists := func(id string) bool {
		if id == "" {
			return true
		}
		if v, ok := cache[id]; ok {
			return v
		}
		_, err := canonical.GetPlant(id)
		found := err == nil
		cache[id] = found
		return found
	}

	for _, row := range rows {
		for _, field := range refFields {
			id := strings.TrimSpace(row.Values[field])
			if id != "" && !exists(id) {
				out = append(out, finding(batchID, row, StageReferentialIntegrity, field, "unresolved_reference",
					fmt.Sprintf("%s %q does not match any known node", field, id), id, SeverityError))
			}
		}
	}
	return out
}

func referenceFieldsFor(targetTable string) []string {
	switch targetTable {
	case ingestion.TargetProductionCapacityCost:
		return []string{"plant_id"}
	case ingestion.TargetTransportRoutes:
		return []string{"origin_plant_id", "destination_node_id"}
	case ingestion.TargetDemandForecasts:
		return []string{"customer_node_id"}
	case ingestion.TargetInitialInventory:
		return []string{"node_id"}
	case ingestion.TargetSafetyStockPolicies:
		return []string{"node_id"}
	default:
		return nil
	}
}

// stageUnitConsistency checks that a route priced per tonne-km carries
// enough information (a positive distance) to be expanded to a per-tonne
// figure, and when it does, sets the row's variable_cost to the per-tonne
// value (per-tonne-km cost times distance) in memory for the rest of the
// sweep. The staged row itself is not rewritten; promotion
// (internal/promotion.routeVariableCostPerTonne) expands the same figure
// from the staged values.
func stageUnitConsistency(batchID, targetTable string, rows []staging.Row, _ *store.CanonicalStore) []Finding {
	var out []Finding
	if targetTable != ingestion.TargetTransportRoutes {
		return out
	}
	for _, row := range rows {
		distance, hasDistance, _ := getFloat(row.Values, "distance_km")
		_, hasCost, _ := getFloat(row.Values, "variable_cost")
		perTonneKM, hasPerTonneKM, perTonneKMErr := getFloat(row.Values, "variable_cost_per_tonne_km")
		if !hasCost && hasPerTonneKM && (!hasDistance || distance <= 0) {
			out = append(out, finding(batchID, row, StageUnitConsistency, "variable_cost", "cannot_normalize_tonne_km",
				"variable cost given per tonne-km but distance is missing or non-positive", row.Values["distance_km"], SeverityError))
		} else if !hasCost && hasPerTonneKM && perTonneKMErr == nil {
			row.Values["variable_cost"] = strconv.FormatFloat(perTonneKM*distance, 'f', -1, 64)
		}
	}
	return out
}

// stageMissingData reports rows that would silently break the planner even
// though every earlier stage passed.
func stageMissingData(batchID, targetTable string, rows []staging.Row, canonical *store.CanonicalStore) []Finding {
	var out []Finding

	switch targetTable {
	case ingestion.TargetTransportRoutes:
		for _, row := range rows {
			_, hasCost, _ := getFloat(row.Values, "variable_cost")
			_, hasPerTonneKM, _ := getFloat(row.Values, "variable_cost_per_tonne_km")
			if !hasCost && !hasPerTonneKM {
				out = append(out, finding(batchID, row, StageMissingData, "variable_cost", "no_priceable_cost",
					"route has neither a per-tonne nor per-tonne-km cost; it cannot be priced", "", SeverityError))
			}
		}
	case ingestion.TargetProductionCapacityCost:
		for _, row := range rows {
			if _, hasHolding, _ := getFloat(row.Values, "holding_cost"); !hasHolding {
				out = append(out, finding(batchID, row, StageMissingData, "holding_cost", "missing_holding_cost",
					"no holding cost is given for this plant and period", "", SeverityError))
			}
		}
	case ingestion.TargetDemandForecasts:
		if canonical == nil {
			return out
		}
		capacityPeriods := make(map[string]bool)
		costs, err := canonical.ListCapacityCosts()
		if err == nil {
			for _, c := range costs {
				capacityPeriods[c.Period] = true
			}
		}
		if len(capacityPeriods) == 0 {
			return out
		}
		for _, row := range rows {
			period := strings.TrimSpace(row.Values["period"])
			if period != "" && !capacityPeriods[period] {
				out = append(out, finding(batchID, row, StageMissingData, "period", "demand_period_without_capacity",
					fmt.Sprintf("no production capacity is defined for period %q", period), period, SeverityWarning))
			}
		}
	}
	return out
}
