/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package ingestion implements the Batch Lifecycle Manager: it accepts raw
// rows tagged with (or inferred to have) a target table, writes them into
// the Staging Store under a freshly minted batch id inside one staging
// transaction, and then records a ValidationBatch in the Canonical Store.
// If that record cannot be written, the staged rows are deleted again, so a
// failed ingest leaves no batch record behind.
package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/metrics"
	"github.com/marcus-qen/clinkerplan/internal/staging"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// Manager is the Batch Lifecycle Manager. It owns no domain validation logic
// of its own — it only stages rows and records batch metadata; the
// validation package decides pass/warn/fail.
type Manager struct {
	staging   *staging.Store
	canonical *store.CanonicalStore
	logger    *zap.Logger
}

// New builds a Batch Lifecycle Manager over the given staging and canonical
// stores.
func New(stagingStore *staging.Store, canonicalStore *store.CanonicalStore, logger *zap.Logger) *Manager {
	return &Manager{staging: stagingStore, canonical: canonicalStore, logger: nopIfNil(logger)}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Ingest writes rows into the staging table for targetTable (inferred from
// source when targetTable is empty) under a freshly minted batch id, and
// records a pending ValidationBatch. The staging rows are written in one
// transaction; the batch record is written after it commits, and if that
// write fails the staged rows are deleted (best effort) and an error is
// returned.
func (m *Manager) Ingest(ctx context.Context, rows []map[string]any, targetTable string, source string) (string, int, error) {
	if len(rows) == 0 {
		return "", 0, errs.New(errs.KindEmptySource, "ingestion.Ingest", "no rows supplied")
	}

	normalizedRows := make([]staging.Row, 0, len(rows))
	sampleColumns := make(map[string]bool)
	for _, raw := range rows {
		for col := range raw {
			sampleColumns[AliasFor(staging.NormalizeColumnName(col))] = true
		}
		break
	}

	resolvedTable := targetTable
	if resolvedTable == "" {
		inferred, err := inferTargetTable(source, sampleColumns)
		if err != nil {
			return "", 0, err
		}
		resolvedTable = inferred
	}

	batchID := uuid.NewString()
	for i, raw := range rows {
		values := make(map[string]string, len(raw))
		unknown := make([]string, 0)
		for col, val := range raw {
			normalized := staging.NormalizeColumnName(col)
			canonical := AliasFor(normalized)
			if !IsKnownColumn(normalized) {
				unknown = append(unknown, normalized)
			}
			values[canonical] = fmt.Sprintf("%v", val)
		}
		errorsForRow := make([]string, 0, len(unknown))
		for _, u := range unknown {
			errorsForRow = append(errorsForRow, fmt.Sprintf("warning: unrecognized column %q", u))
		}
		normalizedRows = append(normalizedRows, staging.Row{
			BatchID:          batchID,
			SourceRowNumber:  i + 1,
			TargetTable:      resolvedTable,
			Values:           values,
			ValidationStatus: staging.StatusPending,
			Errors:           errorsForRow,
		})
	}

	tx, err := m.staging.DB().Begin()
	if err != nil {
		return "", 0, errs.Wrap(errs.KindStorageError, "ingestion.Ingest", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := staging.InsertRows(tx, normalizedRows); err != nil {
		return "", 0, errs.Wrap(errs.KindStorageError, "ingestion.Ingest", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, errs.Wrap(errs.KindStorageError, "ingestion.Ingest", err)
	}

	if err := m.canonical.InsertBatch(store.ValidationBatch{
		BatchID:          batchID,
		SourceDescriptor: source,
		TargetTable:      resolvedTable,
		TotalRows:        len(rows),
		Status:           store.BatchStatusPending,
	}); err != nil {
		_ = m.staging.DeleteBatch(batchID)
		return "", 0, errs.Wrap(errs.KindStorageError, "ingestion.Ingest", err)
	}

	metrics.RecordBatchIngested(resolvedTable)
	m.logger.Info("batch ingested", zap.String("batch_id", batchID), zap.String("target_table", resolvedTable), zap.Int("rows", len(rows)))

	return batchID, len(rows), nil
}

// Status returns a batch's current snapshot.
func (m *Manager) Status(ctx context.Context, batchID string) (*store.ValidationBatch, error) {
	return m.canonical.GetBatch(batchID)
}

// ListRecent returns the most recently created batches, newest first.
func (m *Manager) ListRecent(ctx context.Context, limit int) ([]store.ValidationBatch, error) {
	return m.canonical.ListRecentBatches(limit)
}

func errUnknownTarget(source string) error {
	return errs.New(errs.KindUnknownTarget, "ingestion.inferTargetTable", fmt.Sprintf("could not infer target table for source %q", source))
}
