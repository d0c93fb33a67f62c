/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package ingestion

import "testing"

func TestAliasForResolvesKnownDuplicates(t *testing.T) {
	cases := map[string]string{
		"capacity_tonnes":     "max_capacity",
		"max_capacity_tonnes": "max_capacity",
		"demand_tonnes":       "demand",
		"forecast_tonnes":     "demand",
		"sbq":                 "min_batch_quantity",
		"unrecognized_column": "unrecognized_column",
	}
	for in, want := range cases {
		if got := AliasFor(in); got != want {
			t.Errorf("AliasFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsKnownColumn(t *testing.T) {
	if !IsKnownColumn("capacity_tonnes") {
		t.Error("expected capacity_tonnes to be known")
	}
	if IsKnownColumn("totally_made_up_column") {
		t.Error("expected unrecognized column to be unknown")
	}
}

func TestInferTargetTableByFilename(t *testing.T) {
	cols := map[string]bool{"plant_id": true, "period": true, "max_capacity": true}
	table, err := inferTargetTable("2026-q3-capacity-export.csv", cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table != TargetProductionCapacityCost {
		t.Fatalf("expected %s, got %s", TargetProductionCapacityCost, table)
	}
}

func TestInferTargetTableByColumnsWhenFilenameUninformative(t *testing.T) {
	cols := map[string]bool{"id": true, "name": true, "type": true}
	table, err := inferTargetTable("export_20260731.csv", cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table != TargetPlants {
		t.Fatalf("expected %s, got %s", TargetPlants, table)
	}
}

func TestInferTargetTableFailsWhenAmbiguous(t *testing.T) {
	if _, err := inferTargetTable("mystery.csv", map[string]bool{"foo": true}); err == nil {
		t.Fatal("expected error for unrecognizable column set")
	}
}
