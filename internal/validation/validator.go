/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package validation implements the Validator: a five-stage sweep over a
// batch's staged rows that writes per-row verdicts back into the staging
// store and updates the batch's row counts and status in the canonical
// store. Every stage runs regardless of whether an earlier stage recorded
// errors (spec §4.2).
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/metrics"
	"github.com/marcus-qen/clinkerplan/internal/staging"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// Validator runs the ordered stage pipeline over a batch.
type Validator struct {
	staging   *staging.Store
	canonical *store.CanonicalStore
	logger    *zap.Logger
}

// New builds a Validator over the given staging and canonical stores.
func New(stagingStore *staging.Store, canonicalStore *store.CanonicalStore, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{staging: stagingStore, canonical: canonicalStore, logger: logger}
}

// Validate runs all five stages over batchID's staged rows, writes per-row
// verdicts back into the staging store, and updates the batch's row counts
// and status in the canonical store. Idempotent: re-validating the same
// batch overwrites the previous verdict (spec invariant #3).
func (v *Validator) Validate(ctx context.Context, batchID string) (Report, error) {
	start := time.Now()

	batch, err := v.canonical.GetBatch(batchID)
	if err != nil {
		return Report{}, err
	}

	rows, err := v.staging.ListRows(batchID)
	if err != nil {
		return Report{}, errs.Wrap(errs.KindStorageError, "validation.Validate", err)
	}
	if len(rows) == 0 {
		return Report{}, errs.New(errs.KindValidationIncomplete, "validation.Validate", fmt.Sprintf("batch %q has no staged rows", batchID))
	}

	stages := []stageFunc{
		func(table string, rows []staging.Row, canonical *store.CanonicalStore) []Finding {
			return stageSchema(batchID, table, rows, canonical)
		},
		func(table string, rows []staging.Row, canonical *store.CanonicalStore) []Finding {
			return stageBusinessRules(batchID, table, rows, canonical)
		},
		func(table string, rows []staging.Row, canonical *store.CanonicalStore) []Finding {
			return stageReferentialIntegrity(batchID, table, rows, canonical)
		},
		func(table string, rows []staging.Row, canonical *store.CanonicalStore) []Finding {
			return stageUnitConsistency(batchID, table, rows, canonical)
		},
		func(table string, rows []staging.Row, canonical *store.CanonicalStore) []Finding {
			return stageMissingData(batchID, table, rows, canonical)
		},
	}

	report := Report{
		BatchID:     batchID,
		RowVerdicts: make(map[int]string, len(rows)),
	}
	errorsByRule := make(map[string]int)

	for _, stageFn := range stages {
		findings := stageFn(batch.TargetTable, rows, v.canonical)
		for _, f := range findings {
			if f.Severity == SeverityError {
				report.Errors = append(report.Errors, f)
				errorsByRule[f.Code]++
			} else {
				report.Warnings = append(report.Warnings, f)
			}
		}
	}

	errorRows := make(map[int]bool, len(report.Errors))
	for _, f := range report.Errors {
		errorRows[f.SourceRowNumber] = true
	}

	invalidRows := 0
	for _, row := range rows {
		status := staging.StatusValid
		if errorRows[row.SourceRowNumber] {
			status = staging.StatusInvalid
			invalidRows++
		}
		report.RowVerdicts[row.SourceRowNumber] = status

		rowErrors := make([]string, 0)
		for _, f := range report.Errors {
			if f.SourceRowNumber == row.SourceRowNumber {
				rowErrors = append(rowErrors, fmt.Sprintf("[%s] %s: %s", f.Stage, f.Field, f.Message))
			}
		}
		for _, f := range report.Warnings {
			if f.SourceRowNumber == row.SourceRowNumber {
				rowErrors = append(rowErrors, fmt.Sprintf("warning [%s] %s: %s", f.Stage, f.Field, f.Message))
			}
		}
		if err := v.staging.UpdateVerdict(batchID, row.SourceRowNumber, status, rowErrors); err != nil {
			return Report{}, errs.Wrap(errs.KindStorageError, "validation.Validate", err)
		}
	}

	report.IsValid = len(report.Errors) == 0
	status := store.BatchStatusValidated
	if !report.IsValid {
		status = store.BatchStatusFailed
	}
	report.ErrorSummary = summarize(report.Errors)

	if err := v.canonical.UpdateBatchValidation(batchID, len(rows)-invalidRows, invalidRows, status, report.ErrorSummary); err != nil {
		return Report{}, errs.Wrap(errs.KindStorageError, "validation.Validate", err)
	}

	outcome := "pass"
	if !report.IsValid {
		outcome = "fail"
	}
	metrics.RecordValidationSweep(outcome, time.Since(start), errorsByRule)
	v.logger.Info("batch validated",
		zap.String("batch_id", batchID),
		zap.Bool("valid", report.IsValid),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)))

	return report, nil
}

func summarize(findings []Finding) string {
	if len(findings) == 0 {
		return ""
	}
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, fmt.Sprintf("row %d: %s/%s", f.SourceRowNumber, f.Stage, f.Code))
	}
	return strings.Join(parts, "; ")
}
