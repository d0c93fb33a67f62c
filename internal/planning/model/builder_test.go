package model

import (
	"testing"

	"github.com/marcus-qen/clinkerplan/internal/store"
)

// s1Data builds the exact literal inputs from spec scenario S1: two plants,
// one customer, one period, two routes.
func s1Data() PlanningData {
	return PlanningData{
		Plants: PlantSet{
			{ID: "P1", Name: "Plant One", Type: store.PlantTypeClinker},
			{ID: "P2", Name: "Plant Two", Type: store.PlantTypeClinker},
		},
		Capacities: CapacityMap{
			{PlantID: "P1", Period: "t1"}: {PlantID: "P1", Period: "t1", MaxCapacity: 200, VariableCost: 10},
			{PlantID: "P2", Period: "t1"}: {PlantID: "P2", Period: "t1", MaxCapacity: 200, VariableCost: 12},
		},
		Routes: RouteSet{
			{OriginPlantID: "P1", DestinationNodeID: "C1", TransportMode: "road", VariableCostPerTonne: 5, VehicleCapacity: 1000, MinBatchQuantity: 0, Active: true},
			{OriginPlantID: "P2", DestinationNodeID: "C1", TransportMode: "road", VariableCostPerTonne: 6, VehicleCapacity: 1000, MinBatchQuantity: 0, Active: true},
		},
		Demand: DemandMap{
			{CustomerID: "C1", Period: "t1"}: {CustomerNodeID: "C1", Period: "t1", Demand: 100},
		},
		Policies:         PolicyMap{},
		InitialInventory: InventoryMap{},
		Periods:          PeriodList{"t1"},
	}
}

func TestBuildS1ProducesExpectedShape(t *testing.T) {
	m, err := Build(s1Data(), PlanningOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// 2 plants × (prod + inv) + 2 routes × (ship + trips + use) = 4 + 6 = 10.
	if len(m.Variables) != 10 {
		t.Fatalf("expected 10 variables, got %d", len(m.Variables))
	}

	if got := m.Objective[varProd("P1", "t1")]; got != 10 {
		t.Fatalf("expected production cost 10 for P1, got %v", got)
	}
	if got := m.Objective[varShip("P1", "C1", "road", "t1")]; got != 5 {
		t.Fatalf("expected transport cost 5 for P1->C1, got %v", got)
	}

	demandConstraint := findConstraint(t, m, "demand|C1|t1")
	if demandConstraint.Sense != EQ || demandConstraint.RHS != 100 {
		t.Fatalf("unexpected demand constraint: %+v", demandConstraint)
	}
	if demandConstraint.Coeffs[varShip("P1", "C1", "road", "t1")] != 1 {
		t.Fatal("expected demand constraint to include P1->C1 shipment")
	}

	if m.BigM != 100 {
		t.Fatalf("expected bigM = total demand = 100, got %v", m.BigM)
	}
}

func TestBuildDerivesPeriodsWhenOmitted(t *testing.T) {
	data := s1Data()
	data.Periods = nil
	m, err := Build(data, PlanningOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.VarByName(varProd("P1", "t1")) == nil {
		t.Fatal("expected period t1 derived from demand")
	}
}

func TestBuildExcludesZeroCapacityRoutesUpstreamOfBuilder(t *testing.T) {
	data := s1Data()
	data.Routes = append(data.Routes, store.TransportRoute{
		OriginPlantID: "P1", DestinationNodeID: "C1", TransportMode: "rail", VehicleCapacity: 0, Active: true,
	})
	filtered := filterUsableRoutes(data.Routes)
	if len(filtered) != 2 {
		t.Fatalf("expected zero-capacity route excluded, got %d usable routes", len(filtered))
	}
}

func TestBuildSoftDemandAddsSlackVariable(t *testing.T) {
	m, err := Build(s1Data(), PlanningOptions{SoftDemand: true, DemandPenaltyPerTonne: 1000})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.VarByName(varSlack("C1", "t1")) == nil {
		t.Fatal("expected slack variable when SoftDemand is enabled")
	}
	demandConstraint := findConstraint(t, m, "demand|C1|t1")
	if demandConstraint.Coeffs[varSlack("C1", "t1")] != 1 {
		t.Fatal("expected slack variable wired into demand constraint")
	}
}

func findConstraint(t *testing.T, m *Model, name string) Constraint {
	t.Helper()
	for _, c := range m.Constraints {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("constraint %q not found", name)
	return Constraint{}
}
