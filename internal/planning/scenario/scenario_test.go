package scenario

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/planning/model"
	"github.com/marcus-qen/clinkerplan/internal/planning/solver"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

func s1Data() model.PlanningData {
	return model.PlanningData{
		Plants: model.PlantSet{
			{ID: "P1", Name: "Plant One", Type: store.PlantTypeClinker},
			{ID: "P2", Name: "Plant Two", Type: store.PlantTypeClinker},
		},
		Capacities: model.CapacityMap{
			{PlantID: "P1", Period: "t1"}: {PlantID: "P1", Period: "t1", MaxCapacity: 200, VariableCost: 10},
			{PlantID: "P2", Period: "t1"}: {PlantID: "P2", Period: "t1", MaxCapacity: 200, VariableCost: 12},
		},
		Routes: model.RouteSet{
			{OriginPlantID: "P1", DestinationNodeID: "C1", TransportMode: "road", VariableCostPerTonne: 5, VehicleCapacity: 1000},
			{OriginPlantID: "P2", DestinationNodeID: "C1", TransportMode: "road", VariableCostPerTonne: 6, VehicleCapacity: 1000},
		},
		Demand: model.DemandMap{
			{CustomerID: "C1", Period: "t1"}: {CustomerNodeID: "C1", Period: "t1", Demand: 100},
		},
		Policies:         model.PolicyMap{},
		InitialInventory: model.InventoryMap{},
		Periods:          model.PeriodList{"t1"},
	}
}

func TestPerturbDemandHighAppliesDefaultScalingFactor(t *testing.T) {
	perturbed, err := perturbDemand(s1Data(), Config{Name: "high", Type: TypeHigh})
	if err != nil {
		t.Fatalf("perturb: %v", err)
	}
	got := perturbed.Demand[model.CustomerKeyPeriod{CustomerID: "C1", Period: "t1"}].Demand
	if math.Abs(got-110) > 1e-9 {
		t.Fatalf("expected demand scaled to 110, got %v", got)
	}
}

func TestPerturbDemandLowAppliesDefaultScalingFactor(t *testing.T) {
	perturbed, err := perturbDemand(s1Data(), Config{Name: "low", Type: TypeLow})
	if err != nil {
		t.Fatalf("perturb: %v", err)
	}
	got := perturbed.Demand[model.CustomerKeyPeriod{CustomerID: "C1", Period: "t1"}].Demand
	if got != 90 {
		t.Fatalf("expected demand scaled to 90, got %v", got)
	}
}

func TestPerturbDemandStochasticRequiresDistribution(t *testing.T) {
	_, err := perturbDemand(s1Data(), Config{Name: "stoch", Type: TypeStochastic})
	if err == nil {
		t.Fatal("expected an error when no distribution is specified")
	}
}

func TestPerturbDemandUnknownTypeRejected(t *testing.T) {
	_, err := perturbDemand(s1Data(), Config{Name: "bogus", Type: "not-a-type"})
	if err == nil {
		t.Fatal("expected an error for an unknown scenario type")
	}
}

func TestRunCapturesPerScenarioOutcomes(t *testing.T) {
	driver := solver.NewDriver(solver.DefaultChain(), zap.NewNop())
	configs := []Config{
		{Name: "base", Type: TypeBase},
		{Name: "high", Type: TypeHigh},
		{Name: "bad", Type: "unknown"},
	}
	results, err := Run(context.Background(), s1Data(), configs, driver, model.PlanningOptions{}, solver.Options{TimeLimitSeconds: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}

	if byName["base"].Status != StatusCompleted {
		t.Fatalf("expected base scenario to complete, got status %v err %v", byName["base"].Status, byName["base"].Err)
	}
	if byName["high"].Status != StatusCompleted {
		t.Fatalf("expected high scenario to complete, got status %v err %v", byName["high"].Status, byName["high"].Err)
	}
	if byName["bad"].Status != StatusInvalidScenario {
		t.Fatalf("expected bad scenario to be invalid_scenario, got %v", byName["bad"].Status)
	}
}
