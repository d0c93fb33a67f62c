/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package model

import (
	"math"
	"sort"

	"github.com/marcus-qen/clinkerplan/internal/store"
)

// PlantKeyPeriod composite-keys a plant/period pair.
type PlantKeyPeriod struct {
	PlantID string
	Period  string
}

// CustomerKeyPeriod composite-keys a customer/period pair.
type CustomerKeyPeriod struct {
	CustomerID string
	Period     string
}

// PlantSet is the ordered, deduplicated set of plants (spec §4.5 set I).
type PlantSet []store.Plant

// CapacityMap indexes production capacity/cost rows by (plant, period).
type CapacityMap map[PlantKeyPeriod]store.ProductionCapacityCost

// RouteSet is the set of active routes eligible for planning (spec §4.5 set R).
type RouteSet []store.TransportRoute

// DemandMap indexes demand forecasts by (customer, period).
type DemandMap map[CustomerKeyPeriod]store.DemandForecast

// PolicyMap indexes safety-stock policies by node id.
type PolicyMap map[string]store.SafetyStockPolicy

// InventoryMap indexes each node's opening inventory — the earliest period's
// value only, per spec §3's InitialInventory invariant.
type InventoryMap map[string]float64

// PeriodList is the ordered time horizon (spec §4.5 set T).
type PeriodList []string

// PlanningData is the typed-record lowering spec.md §9 calls for: explicit
// structs and slices in place of the source's dataframe abstraction.
type PlanningData struct {
	Plants           PlantSet
	Capacities       CapacityMap
	Routes           RouteSet
	Demand           DemandMap
	Policies         PolicyMap
	InitialInventory InventoryMap
	Periods          PeriodList
}

// PlanningOptions toggles the opt-in soft-demand extension (spec §4.5,
// disabled by default per Open Question #3).
type PlanningOptions struct {
	SoftDemand            bool
	DemandPenaltyPerTonne float64
}

// LoadPlanningData reads cleaned canonical data into a PlanningData. When
// periods is empty, the horizon is derived as the sorted union of periods
// appearing in demand (spec §4.5).
func LoadPlanningData(canonical *store.CanonicalStore, periods []string) (PlanningData, error) {
	plants, err := canonical.ListPlants()
	if err != nil {
		return PlanningData{}, err
	}
	capacities, err := canonical.ListCapacityCosts()
	if err != nil {
		return PlanningData{}, err
	}
	routes, err := canonical.ListActiveRoutes()
	if err != nil {
		return PlanningData{}, err
	}
	demand, err := canonical.ListDemand()
	if err != nil {
		return PlanningData{}, err
	}
	policies, err := canonical.ListSafetyStockPolicies()
	if err != nil {
		return PlanningData{}, err
	}
	inventory, err := canonical.ListInitialInventory()
	if err != nil {
		return PlanningData{}, err
	}

	data := PlanningData{
		Plants:           plants,
		Capacities:       make(CapacityMap, len(capacities)),
		Routes:           filterUsableRoutes(routes),
		Demand:           make(DemandMap, len(demand)),
		Policies:         make(PolicyMap, len(policies)),
		InitialInventory: earliestInventoryByNode(inventory),
	}
	for _, c := range capacities {
		data.Capacities[PlantKeyPeriod{PlantID: c.PlantID, Period: c.Period}] = c
	}
	for _, d := range demand {
		data.Demand[CustomerKeyPeriod{CustomerID: d.CustomerNodeID, Period: d.Period}] = d
	}
	for _, p := range policies {
		data.Policies[p.NodeID] = p
	}

	if len(periods) > 0 {
		data.Periods = periods
	} else {
		data.Periods = derivePeriods(data.Demand)
	}

	return data, nil
}

// filterUsableRoutes drops routes with non-positive vehicle capacity (spec
// §4.5 edge policy: "routes with vehicle capacity ≤ 0 are excluded from R
// before construction").
func filterUsableRoutes(routes []store.TransportRoute) RouteSet {
	usable := make(RouteSet, 0, len(routes))
	for _, r := range routes {
		if r.VehicleCapacity <= 0 {
			continue
		}
		usable = append(usable, r)
	}
	return usable
}

// earliestInventoryByNode keeps only the earliest period's tonnage per node,
// per spec §3: "only the earliest period per node is consumed by the planner."
func earliestInventoryByNode(rows []store.InitialInventory) InventoryMap {
	earliest := make(map[string]store.InitialInventory, len(rows))
	for _, row := range rows {
		existing, ok := earliest[row.NodeID]
		if !ok || row.Period < existing.Period {
			earliest[row.NodeID] = row
		}
	}
	out := make(InventoryMap, len(earliest))
	for nodeID, row := range earliest {
		out[nodeID] = row.Tonnes
	}
	return out
}

func derivePeriods(demand DemandMap) PeriodList {
	set := make(map[string]struct{})
	for key := range demand {
		set[key.Period] = struct{}{}
	}
	periods := make(PeriodList, 0, len(set))
	for period := range set {
		periods = append(periods, period)
	}
	sort.Strings(periods)
	return periods
}

// TotalDemand sums every (customer, period) demand value — the minimum
// valid big-M per spec §9 ("Big-M should be at least Σ demand... implementers
// must compute it per-build, not hard-code").
func TotalDemand(demand DemandMap) float64 {
	total := 0.0
	for _, d := range demand {
		total += d.Demand
	}
	if total <= 0 {
		return 1 // a model with zero demand still needs a finite, positive bound
	}
	return total
}

func maxInventoryOf(policy store.SafetyStockPolicy, hasPolicy bool) float64 {
	if !hasPolicy || policy.MaxInventoryTonnes == nil {
		return math.Inf(1)
	}
	return *policy.MaxInventoryTonnes
}

func safetyStockOf(policy store.SafetyStockPolicy, hasPolicy bool) float64 {
	if !hasPolicy {
		return 0
	}
	return policy.SafetyStockTonnes
}
