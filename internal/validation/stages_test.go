/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package validation

import (
	"testing"

	"github.com/marcus-qen/clinkerplan/internal/ingestion"
	"github.com/marcus-qen/clinkerplan/internal/staging"
)

func hasCode(findings []Finding, code string) bool {
	for _, f := range findings {
		if f.Code == code {
			return true
		}
	}
	return false
}

func TestStageSchemaFlagsMissingRequiredColumn(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{"plant_id": "P1", "period": "2026-01"}}}
	findings := stageSchema("B1", ingestion.TargetProductionCapacityCost, rows, nil)
	if !hasCode(findings, "missing_required_value") {
		t.Fatalf("expected missing_required_value finding, got %+v", findings)
	}
}

func TestStageSchemaFlagsUnparseableNumber(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{
		"plant_id": "P1", "period": "2026-01", "max_capacity": "not-a-number",
	}}}
	findings := stageSchema("B1", ingestion.TargetProductionCapacityCost, rows, nil)
	if !hasCode(findings, "unparseable_number") {
		t.Fatalf("expected unparseable_number finding, got %+v", findings)
	}
}

func TestStageSchemaFlagsInvalidPlantType(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{"id": "P1", "name": "Plant One", "type": "spaceport"}}}
	findings := stageSchema("B1", ingestion.TargetPlants, rows, nil)
	if !hasCode(findings, "invalid_enum_value") {
		t.Fatalf("expected invalid_enum_value finding, got %+v", findings)
	}
}

func TestStageBusinessRulesRejectsNegativeDemand(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{"customer_node_id": "C1", "period": "2026-01", "demand": "-5"}}}
	findings := stageBusinessRules("B1", ingestion.TargetDemandForecasts, rows, nil)
	if !hasCode(findings, "negative_demand") {
		t.Fatalf("expected negative_demand finding, got %+v", findings)
	}
}

func TestStageBusinessRulesWarnsOnLowCostFloor(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{
		"plant_id": "P1", "period": "2026-01", "max_capacity": "100", "variable_cost": "5", "fixed_cost": "1", "holding_cost": "1",
	}}}
	findings := stageBusinessRules("B1", ingestion.TargetProductionCapacityCost, rows, nil)
	var warning *Finding
	for i := range findings {
		if findings[i].Code == "suspiciously_low_cost" {
			warning = &findings[i]
		}
	}
	if warning == nil {
		t.Fatalf("expected suspiciously_low_cost finding, got %+v", findings)
	}
	if warning.Severity != SeverityWarning {
		t.Fatalf("expected warning severity, got %s", warning.Severity)
	}
}

func TestStageBusinessRulesRejectsSBQExceedingCapacity(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{
		"origin_plant_id": "P1", "destination_node_id": "C1", "active": "true",
		"vehicle_capacity": "20", "min_batch_quantity": "50",
	}}}
	findings := stageBusinessRules("B1", ingestion.TargetTransportRoutes, rows, nil)
	if !hasCode(findings, "sbq_exceeds_capacity") {
		t.Fatalf("expected sbq_exceeds_capacity finding, got %+v", findings)
	}
}

func TestStageBusinessRulesRejectsOriginEqualsDestination(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{"origin_plant_id": "P1", "destination_node_id": "P1"}}}
	findings := stageBusinessRules("B1", ingestion.TargetTransportRoutes, rows, nil)
	if !hasCode(findings, "origin_equals_destination") {
		t.Fatalf("expected origin_equals_destination finding, got %+v", findings)
	}
}

func TestStageUnitConsistencyExpandsTonneKM(t *testing.T) {
	row := staging.Row{SourceRowNumber: 1, Values: map[string]string{
		"distance_km": "100", "variable_cost_per_tonne_km": "0.5",
	}}
	findings := stageUnitConsistency("B1", ingestion.TargetTransportRoutes, []staging.Row{row}, nil)
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
	if row.Values["variable_cost"] != "50" {
		t.Fatalf("expected expanded variable_cost of 50, got %q", row.Values["variable_cost"])
	}
}

func TestStageUnitConsistencyFlagsUnresolvableTonneKM(t *testing.T) {
	row := staging.Row{SourceRowNumber: 1, Values: map[string]string{"variable_cost_per_tonne_km": "0.5"}}
	findings := stageUnitConsistency("B1", ingestion.TargetTransportRoutes, []staging.Row{row}, nil)
	if !hasCode(findings, "cannot_normalize_tonne_km") {
		t.Fatalf("expected cannot_normalize_tonne_km finding, got %+v", findings)
	}
}

func TestStageMissingDataFlagsUnpriceableRoute(t *testing.T) {
	rows := []staging.Row{{SourceRowNumber: 1, Values: map[string]string{"origin_plant_id": "P1", "destination_node_id": "C1"}}}
	findings := stageMissingData("B1", ingestion.TargetTransportRoutes, rows, nil)
	if !hasCode(findings, "no_priceable_cost") {
		t.Fatalf("expected no_priceable_cost finding, got %+v", findings)
	}
}
