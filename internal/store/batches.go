/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus-qen/clinkerplan/internal/errs"
)

// InsertBatch creates a new validation batch row in status pending. Callers
// (the ingestion package) pass an already-minted batch_id.
func (s *CanonicalStore) InsertBatch(b ValidationBatch) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = BatchStatusPending
	}
	_, err := s.db.Exec(`INSERT INTO validation_batches (batch_id, source_descriptor, target_table, total_rows, valid_rows, invalid_rows, status, error_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.BatchID, b.SourceDescriptor, b.TargetTable, b.TotalRows, b.ValidRows, b.InvalidRows, b.Status, b.ErrorSummary, b.CreatedAt)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.InsertBatch", err)
	}
	return nil
}

// GetBatch returns one validation batch by id.
func (s *CanonicalStore) GetBatch(batchID string) (*ValidationBatch, error) {
	var b ValidationBatch
	var validatedAt, promotedAt sql.NullTime
	err := s.db.QueryRow(`SELECT batch_id, source_descriptor, target_table, total_rows, valid_rows, invalid_rows, status, error_summary, created_at, validated_at, promoted_at
		FROM validation_batches WHERE batch_id = $1`, batchID).
		Scan(&b.BatchID, &b.SourceDescriptor, &b.TargetTable, &b.TotalRows, &b.ValidRows, &b.InvalidRows, &b.Status, &b.ErrorSummary, &b.CreatedAt, &validatedAt, &promotedAt)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.KindBatchNotFound, "store.GetBatch", fmt.Sprintf("batch %q not found", batchID))
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.GetBatch", err)
	}
	if validatedAt.Valid {
		b.ValidatedAt = &validatedAt.Time
	}
	if promotedAt.Valid {
		b.PromotedAt = &promotedAt.Time
	}
	return &b, nil
}

// UpdateBatchValidation records validator results on a batch: row counts,
// status, and error summary. Idempotent — re-validating overwrites the
// previous verdict (spec invariant #3).
func (s *CanonicalStore) UpdateBatchValidation(batchID string, validRows, invalidRows int, status, errorSummary string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE validation_batches
		SET valid_rows = $1, invalid_rows = $2, status = $3, error_summary = $4, validated_at = $5
		WHERE batch_id = $6`,
		validRows, invalidRows, status, errorSummary, now, batchID)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpdateBatchValidation", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return errs.New(errs.KindBatchNotFound, "store.UpdateBatchValidation", fmt.Sprintf("batch %q not found", batchID))
	}
	return nil
}

// MarkBatchPromoted transitions a batch to promoted with a promoted_at timestamp.
// Run inside the caller's transaction (the Promoter's single transaction
// boundary), so it takes a *sql.Tx rather than using s.db directly.
func MarkBatchPromoted(tx *sql.Tx, batchID string) error {
	now := time.Now().UTC()
	res, err := tx.Exec(`UPDATE validation_batches SET status = $1, promoted_at = $2 WHERE batch_id = $3`,
		BatchStatusPromoted, now, batchID)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.MarkBatchPromoted", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return errs.New(errs.KindBatchNotFound, "store.MarkBatchPromoted", fmt.Sprintf("batch %q not found", batchID))
	}
	return nil
}

// ListRecentBatches returns the most recent batches, newest first.
func (s *CanonicalStore) ListRecentBatches(limit int) ([]ValidationBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT batch_id, source_descriptor, target_table, total_rows, valid_rows, invalid_rows, status, error_summary, created_at, validated_at, promoted_at
		FROM validation_batches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.ListRecentBatches", err)
	}
	defer rows.Close()

	var out []ValidationBatch
	for rows.Next() {
		var b ValidationBatch
		var validatedAt, promotedAt sql.NullTime
		if err := rows.Scan(&b.BatchID, &b.SourceDescriptor, &b.TargetTable, &b.TotalRows, &b.ValidRows, &b.InvalidRows, &b.Status, &b.ErrorSummary, &b.CreatedAt, &validatedAt, &promotedAt); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, "store.ListRecentBatches", err)
		}
		if validatedAt.Valid {
			b.ValidatedAt = &validatedAt.Time
		}
		if promotedAt.Valid {
			b.PromotedAt = &promotedAt.Time
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
