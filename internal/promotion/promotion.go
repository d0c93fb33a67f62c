/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package promotion implements the Promoter: it copies every valid row of a
// validated batch into the canonical store under a single transaction
// boundary, all or nothing (spec §4.3).
package promotion

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/ingestion"
	"github.com/marcus-qen/clinkerplan/internal/metrics"
	"github.com/marcus-qen/clinkerplan/internal/staging"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// Promoter copies a validated batch's rows into the canonical store.
type Promoter struct {
	staging   *staging.Store
	canonical *store.CanonicalStore
	logger    *zap.Logger
}

// New builds a Promoter over the given staging and canonical stores.
func New(stagingStore *staging.Store, canonicalStore *store.CanonicalStore, logger *zap.Logger) *Promoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoter{staging: stagingStore, canonical: canonicalStore, logger: logger}
}

// Promote copies every valid row of batchID into the canonical store and
// marks the batch promoted. The batch must be in status validated with zero
// invalid rows, else it returns errs.KindIllegalState. Any failure inside the
// transaction leaves the batch in validated so the caller can retry.
func (p *Promoter) Promote(ctx context.Context, batchID string) (int, error) {
	batch, err := p.canonical.GetBatch(batchID)
	if err != nil {
		return 0, err
	}
	if batch.Status != store.BatchStatusValidated || batch.InvalidRows != 0 {
		metrics.RecordPromotion("illegal_state")
		return 0, errs.New(errs.KindIllegalState, "promotion.Promote",
			fmt.Sprintf("batch %q is not eligible for promotion (status=%s invalid_rows=%d)", batchID, batch.Status, batch.InvalidRows))
	}

	rows, err := p.staging.ListValidRows(batchID)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageError, "promotion.Promote", err)
	}

	tx, err := p.canonical.DB().Begin()
	if err != nil {
		metrics.RecordPromotion("error")
		return 0, errs.Wrap(errs.KindStorageError, "promotion.Promote", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		if err := promoteRow(tx, batch.TargetTable, row); err != nil {
			metrics.RecordPromotion("error")
			return 0, err
		}
	}

	if err := store.MarkBatchPromoted(tx, batchID); err != nil {
		metrics.RecordPromotion("error")
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordPromotion("error")
		return 0, errs.Wrap(errs.KindStorageError, "promotion.Promote", err)
	}

	metrics.RecordPromotion("promoted")
	p.logger.Info("batch promoted", zap.String("batch_id", batchID), zap.Int("rows_promoted", len(rows)))

	return len(rows), nil
}

func promoteRow(tx store.Execer, targetTable string, row staging.Row) error {
	switch targetTable {
	case ingestion.TargetPlants:
		return store.UpsertPlantTx(tx, store.Plant{
			ID:        row.Values["id"],
			Name:      row.Values["name"],
			Type:      strings.ToLower(strings.TrimSpace(row.Values["type"])),
			Latitude:  parseFloatPtr(row.Values["latitude"]),
			Longitude: parseFloatPtr(row.Values["longitude"]),
			Region:    row.Values["region"],
			Country:   row.Values["country"],
		})
	case ingestion.TargetProductionCapacityCost:
		return store.UpsertCapacityCostTx(tx, store.ProductionCapacityCost{
			PlantID:      row.Values["plant_id"],
			Period:       row.Values["period"],
			MaxCapacity:  parseFloat(row.Values["max_capacity"]),
			VariableCost: parseFloat(row.Values["variable_cost"]),
			FixedCost:    parseFloat(row.Values["fixed_cost"]),
			MinRunLevel:  parseFloat(row.Values["min_run_level"]),
			HoldingCost:  parseFloat(row.Values["holding_cost"]),
		})
	case ingestion.TargetTransportRoutes:
		return store.UpsertRouteTx(tx, store.TransportRoute{
			OriginPlantID:        row.Values["origin_plant_id"],
			DestinationNodeID:    row.Values["destination_node_id"],
			TransportMode:        row.Values["transport_mode"],
			DistanceKM:           parseFloatPtr(row.Values["distance_km"]),
			VariableCostPerTonne: routeVariableCostPerTonne(row.Values),
			FixedCostPerTrip:     parseFloat(row.Values["fixed_cost_per_trip"]),
			VehicleCapacity:      parseFloat(row.Values["vehicle_capacity"]),
			MinBatchQuantity:     parseFloat(row.Values["min_batch_quantity"]),
			Active:               parseBool(row.Values["active"]),
		})
	case ingestion.TargetDemandForecasts:
		return store.UpsertDemandTx(tx, store.DemandForecast{
			CustomerNodeID: row.Values["customer_node_id"],
			Period:         row.Values["period"],
			Demand:         parseFloat(row.Values["demand"]),
			LowBand:        parseFloatPtr(row.Values["low_band"]),
			HighBand:       parseFloatPtr(row.Values["high_band"]),
			Confidence:     parseFloatPtr(row.Values["confidence"]),
			Source:         row.Values["source"],
		})
	case ingestion.TargetInitialInventory:
		return store.UpsertInitialInventoryTx(tx, store.InitialInventory{
			NodeID: row.Values["node_id"],
			Period: row.Values["period"],
			Tonnes: parseFloat(row.Values["tonnes"]),
		})
	case ingestion.TargetSafetyStockPolicies:
		return store.UpsertSafetyStockPolicyTx(tx, store.SafetyStockPolicy{
			NodeID:             row.Values["node_id"],
			PolicyType:         row.Values["policy_type"],
			PolicyValue:        parseFloat(row.Values["policy_value"]),
			SafetyStockTonnes:  parseFloat(row.Values["safety_stock_tonnes"]),
			MaxInventoryTonnes: parseFloatPtr(row.Values["max_inventory_tonnes"]),
		})
	default:
		return errs.New(errs.KindIllegalState, "promotion.promoteRow", fmt.Sprintf("unknown target table %q", targetTable))
	}
}

// routeVariableCostPerTonne resolves the canonical per-tonne transport cost
// for a staged route row, expanding a per-tonne-km figure with distance when
// no direct per-tonne cost was supplied. The validator's unit consistency
// stage already guarantees a row reaching promotion has a positive distance
// whenever it relies on this fallback (spec §4.2.4).
func routeVariableCostPerTonne(values map[string]string) float64 {
	if raw := strings.TrimSpace(values["variable_cost"]); raw != "" {
		return parseFloat(raw)
	}
	return parseFloat(values["variable_cost_per_tonne_km"]) * parseFloat(values["distance_km"])
}

func parseFloat(raw string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return f
}

func parseFloatPtr(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseBool(raw string) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	return raw == "true" || raw == "1"
}
