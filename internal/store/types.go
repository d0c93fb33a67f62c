/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package store implements the Canonical Store: the durable, transactional
// home for promoted master data (plants, capacities, routes, demand,
// inventory, safety-stock policies), validation batch bookkeeping, the route
// cache, and post-run optimization/KPI records. Every write to a master-data
// table happens through promotion; nothing outside this package and the
// Promoter opens a transaction against these tables.
package store

import "time"

// PlantType enumerates the roles a node can play in the network.
const (
	PlantTypeClinker   = "clinker"
	PlantTypeGrinding  = "grinding"
	PlantTypeTerminal  = "terminal"
	PlantTypeCustomer  = "customer"
)

// Plant is a node in the supply network: a production site, terminal, or
// customer demand point. Created and mutated only by promotion.
type Plant struct {
	ID        string
	Name      string
	Type      string
	Latitude  *float64
	Longitude *float64
	Region    string
	Country   string
}

// ProductionCapacityCost holds one plant's capacity and cost structure for
// one period.
type ProductionCapacityCost struct {
	PlantID         string
	Period          string
	MaxCapacity     float64
	VariableCost    float64
	FixedCost       float64
	MinRunLevel     float64
	HoldingCost     float64
}

// TransportRoute is one (origin, destination, mode) lane.
type TransportRoute struct {
	OriginPlantID       string
	DestinationNodeID   string
	TransportMode       string
	DistanceKM          *float64
	VariableCostPerTonne float64
	FixedCostPerTrip    float64
	VehicleCapacity     float64
	MinBatchQuantity    float64
	Active              bool
}

// DemandForecast is one customer node's forecast for one period.
type DemandForecast struct {
	CustomerNodeID string
	Period         string
	Demand         float64
	LowBand        *float64
	HighBand       *float64
	Confidence     *float64
	Source         string
}

// InitialInventory is the opening tonnage recorded for a node/period. Only
// the earliest period per node is consumed by the planner.
type InitialInventory struct {
	NodeID string
	Period string
	Tonnes float64
}

// SafetyStockPolicy is one node's safety-stock policy.
type SafetyStockPolicy struct {
	NodeID             string
	PolicyType         string
	PolicyValue        float64
	SafetyStockTonnes  float64
	MaxInventoryTonnes *float64
}

// ValidationBatch states.
const (
	BatchStatusPending   = "pending"
	BatchStatusValidated = "validated"
	BatchStatusPromoted  = "promoted"
	BatchStatusFailed    = "failed"
	BatchStatusExpired   = "expired"
)

// ValidationBatch tracks one ingested cohort of rows through its lifecycle.
type ValidationBatch struct {
	BatchID          string
	SourceDescriptor string
	TargetTable      string
	TotalRows        int
	ValidRows        int
	InvalidRows      int
	Status           string
	ErrorSummary     string
	CreatedAt        time.Time
	ValidatedAt      *time.Time
	PromotedAt       *time.Time
}

// RouteCacheEntry is one resolved (origin, destination, mode) lookup.
type RouteCacheEntry struct {
	OriginID       string
	DestinationID  string
	Mode           string
	DistanceKM     float64
	DurationMin    float64
	Provider       string
	CreatedAt      time.Time
	ExpiresAt      *time.Time
}

// OptimizationRun records one solved (or failed) planning run.
type OptimizationRun struct {
	RunID            string
	Scenario         string
	SolverName       string
	SolverStatus     string
	Objective        float64
	SolveTimeSeconds float64
	TimeLimitSeconds int
	GapTolerance     float64
	StartedAt        time.Time
	FinishedAt       *time.Time
	ValidationStatus string
}

// KPIPerPeriod is the materialized per-(scenario, period) summary.
type KPIPerPeriod struct {
	Scenario               string
	Period                 string
	TotalCost              float64
	ProductionCost         float64
	TransportCost          float64
	FixedTripCost          float64
	HoldingCost            float64
	PenaltyCost            float64
	TotalProductionTonnes  float64
	ProductionUtilization  float64
	TotalShipmentTonnes    float64
	TotalTrips             int
	TransportUtilization   float64
	SBQComplianceRate      float64
	AverageInventory       float64
	InventoryTurns         float64
	TotalDemand            float64
	TotalUnmetDemand       float64
	DemandFulfillmentRate  float64
	ServiceLevel           float64
	StockoutEvents         int
}

// KPIAggregated is the materialized per-scenario roll-up across all periods.
type KPIAggregated struct {
	Scenario              string
	TotalCost             float64
	ProductionCost        float64
	TransportCost         float64
	FixedTripCost         float64
	HoldingCost           float64
	PenaltyCost           float64
	TotalProductionTonnes float64
	TotalShipmentTonnes   float64
	TotalTrips            int
	AverageServiceLevel   float64
	TotalStockoutEvents   int
}
