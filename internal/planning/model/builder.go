/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package model

import (
	"fmt"
	"math"
	"sort"
)

// routeKey identifies one (origin, destination, mode) lane.
type routeKey struct {
	Origin      string
	Destination string
	Mode        string
}

// Build constructs the MILP from a cleaned planning dataset (spec §4.5). It
// performs no I/O and does not mutate data. When data.Periods is empty, the
// horizon is the sorted union of periods appearing in demand.
func Build(data PlanningData, opts PlanningOptions) (*Model, error) {
	if len(data.Periods) == 0 {
		data.Periods = derivePeriods(data.Demand)
	}
	if len(data.Periods) == 0 {
		return nil, fmt.Errorf("model.Build: no periods in planning horizon")
	}

	plantIDs := plantIDsOf(data.Plants)
	customerIDs := customerIDsOf(data.Demand)
	routes := routesByKey(data.Routes)

	bigM := TotalDemand(data.Demand)

	m := &Model{
		Objective: make(map[string]float64),
		BigM:      bigM,
	}

	for _, plantID := range plantIDs {
		for _, period := range data.Periods {
			m.Variables = append(m.Variables, newVariable(varProd(plantID, period), Continuous))
			m.Variables = append(m.Variables, newVariable(varInv(plantID, period), Continuous))
		}
	}
	for key := range routes {
		for _, period := range data.Periods {
			m.Variables = append(m.Variables, newVariable(varShip(key.Origin, key.Destination, key.Mode, period), Continuous))
			trips := newVariable(varTrips(key.Origin, key.Destination, key.Mode, period), Integer)
			m.Variables = append(m.Variables, trips)
			m.Variables = append(m.Variables, newVariable(varUseMode(key.Origin, key.Destination, key.Mode, period), Binary))
		}
	}
	if opts.SoftDemand {
		for _, customerID := range customerIDs {
			for _, period := range data.Periods {
				m.Variables = append(m.Variables, newVariable(varSlack(customerID, period), Continuous))
			}
		}
	}
	sortVariables(m)

	// Production capacity: prod[i,t] <= cap[i,t].
	for _, plantID := range plantIDs {
		for _, period := range data.Periods {
			cap, _ := data.Capacities[PlantKeyPeriod{PlantID: plantID, Period: period}]
			c := newConstraint(fmt.Sprintf("capacity|%s|%s", plantID, period), LE, cap.MaxCapacity)
			c.Coeffs[varProd(plantID, period)] = 1
			m.Constraints = append(m.Constraints, c)

			pcost := cap.VariableCost
			m.Objective[varProd(plantID, period)] += pcost
		}
	}

	// Inventory balance: inv_prev + prod[i,t] = Σ ship[i,*,*,t] + inv[i,t].
	for _, plantID := range plantIDs {
		for ti, period := range data.Periods {
			c := newConstraint(fmt.Sprintf("inv_balance|%s|%s", plantID, period), EQ, 0)
			c.Coeffs[varProd(plantID, period)] += 1
			c.Coeffs[varInv(plantID, period)] -= 1
			if ti == 0 {
				c.RHS = -data.InitialInventory[plantID]
			} else {
				c.Coeffs[varInv(plantID, data.Periods[ti-1])] += 1
			}
			for key := range routes {
				if key.Origin != plantID {
					continue
				}
				c.Coeffs[varShip(key.Origin, key.Destination, key.Mode, period)] -= 1
			}
			m.Constraints = append(m.Constraints, c)

			policy, hasPolicy := data.Policies[plantID]
			ss := safetyStockOf(policy, hasPolicy)
			maxInv := maxInventoryOf(policy, hasPolicy)

			floor := newConstraint(fmt.Sprintf("safety_stock|%s|%s", plantID, period), GE, ss)
			floor.Coeffs[varInv(plantID, period)] = 1
			m.Constraints = append(m.Constraints, floor)

			if !math.IsInf(maxInv, 1) {
				ceiling := newConstraint(fmt.Sprintf("max_inventory|%s|%s", plantID, period), LE, maxInv)
				ceiling.Coeffs[varInv(plantID, period)] = 1
				m.Constraints = append(m.Constraints, ceiling)
			}

			cap := data.Capacities[PlantKeyPeriod{PlantID: plantID, Period: period}]
			m.Objective[varInv(plantID, period)] += cap.HoldingCost
		}
	}

	// Demand satisfaction: Σ ship[*,j,*,t] = demand[j,t] (hard equality by
	// default; soft via a slack variable and per-tonne penalty, Open Question #3).
	for _, customerID := range customerIDs {
		for _, period := range data.Periods {
			demandQty := data.Demand[CustomerKeyPeriod{CustomerID: customerID, Period: period}].Demand
			c := newConstraint(fmt.Sprintf("demand|%s|%s", customerID, period), EQ, demandQty)
			for key := range routes {
				if key.Destination != customerID {
					continue
				}
				c.Coeffs[varShip(key.Origin, key.Destination, key.Mode, period)] += 1
			}
			if opts.SoftDemand {
				c.Coeffs[varSlack(customerID, period)] += 1
				m.Objective[varSlack(customerID, period)] += opts.DemandPenaltyPerTonne
			}
			m.Constraints = append(m.Constraints, c)
		}
	}

	// Trip capacity, SBQ bounds, and the objective's transport terms.
	for key, route := range routes {
		for _, period := range data.Periods {
			shipVar := varShip(key.Origin, key.Destination, key.Mode, period)
			tripsVar := varTrips(key.Origin, key.Destination, key.Mode, period)
			useVar := varUseMode(key.Origin, key.Destination, key.Mode, period)

			tripCap := newConstraint(fmt.Sprintf("trip_capacity|%s|%s|%s|%s", key.Origin, key.Destination, key.Mode, period), LE, 0)
			tripCap.Coeffs[shipVar] = 1
			tripCap.Coeffs[tripsVar] = -route.VehicleCapacity
			m.Constraints = append(m.Constraints, tripCap)

			sbqFloor := newConstraint(fmt.Sprintf("sbq_floor|%s|%s|%s|%s", key.Origin, key.Destination, key.Mode, period), GE, 0)
			sbqFloor.Coeffs[shipVar] = 1
			sbqFloor.Coeffs[useVar] = -route.MinBatchQuantity
			m.Constraints = append(m.Constraints, sbqFloor)

			activation := newConstraint(fmt.Sprintf("sbq_activation|%s|%s|%s|%s", key.Origin, key.Destination, key.Mode, period), LE, 0)
			activation.Coeffs[shipVar] = 1
			activation.Coeffs[useVar] = -bigM
			m.Constraints = append(m.Constraints, activation)

			// A per-tonne-km cost is expanded into a per-tonne figure at
			// promotion time (internal/promotion), so the builder consumes
			// VariableCostPerTonne directly (spec §4.5).
			m.Objective[shipVar] += route.VariableCostPerTonne
			m.Objective[tripsVar] += route.FixedCostPerTrip
		}
	}

	return m, nil
}

func plantIDsOf(plants PlantSet) []string {
	seen := make(map[string]struct{}, len(plants))
	ids := make([]string, 0, len(plants))
	for _, p := range plants {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

func customerIDsOf(demand DemandMap) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(demand))
	for key := range demand {
		if _, ok := seen[key.CustomerID]; ok {
			continue
		}
		seen[key.CustomerID] = struct{}{}
		ids = append(ids, key.CustomerID)
	}
	sort.Strings(ids)
	return ids
}

func routesByKey(routes RouteSet) map[routeKey]routeRecord {
	out := make(map[routeKey]routeRecord, len(routes))
	for _, r := range routes {
		out[routeKey{Origin: r.OriginPlantID, Destination: r.DestinationNodeID, Mode: r.TransportMode}] = routeRecord{
			VariableCostPerTonne: r.VariableCostPerTonne,
			FixedCostPerTrip:     r.FixedCostPerTrip,
			VehicleCapacity:      r.VehicleCapacity,
			MinBatchQuantity:     r.MinBatchQuantity,
		}
	}
	return out
}

// routeRecord is the builder's own flattened view of a route, decoupled from
// store.TransportRoute so the builder never depends on storage types beyond
// this translation point.
type routeRecord struct {
	VariableCostPerTonne float64
	FixedCostPerTrip     float64
	VehicleCapacity      float64
	MinBatchQuantity     float64
}

func sortVariables(m *Model) {
	sort.Slice(m.Variables, func(i, j int) bool { return m.Variables[i].Name < m.Variables[j].Name })
}
