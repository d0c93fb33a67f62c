/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package staging implements the Staging Store: a write-isolated SQLite area
// that receives raw ingested rows tagged with a batch id, ahead of
// validation and promotion. Rows arrive as dynamic column maps (the wire
// format is outside this module's scope), so staging rows are stored
// polymorphically — one row per source row, keyed by (batch_id,
// source_row_number) and tagged with its target_table — rather than one fixed-schema table per
// canonical entity; this keeps the store agnostic to which columns a given
// source happened to supply.
package staging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/marcus-qen/clinkerplan/internal/migration"
)

// Row statuses.
const (
	StatusPending = "pending"
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// Row is one staged record: the normalized column values exactly as
// ingested, plus validator verdicts written back in place.
type Row struct {
	BatchID          string
	SourceRowNumber  int
	TargetTable      string
	Values           map[string]string
	ValidationStatus string
	Errors           []string
}

// Store is the staging area's SQLite-backed handle.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a staging database at dbPath. A single pooled
// connection keeps write ordering deterministic under concurrent ingestion
// goroutines, matching the job queue store's pattern.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open staging db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS staging_rows (
		batch_id          TEXT NOT NULL,
		source_row_number INTEGER NOT NULL,
		target_table      TEXT NOT NULL,
		values_json       TEXT NOT NULL,
		validation_status TEXT NOT NULL DEFAULT 'pending',
		errors_json       TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (batch_id, source_row_number)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create staging_rows table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_staging_rows_batch ON staging_rows(batch_id)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_staging_rows_status ON staging_rows(batch_id, validation_status)`)

	if err := migration.EnsureVersion(db, 1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema version: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle so the ingestion package can open the
// single transaction that writes a batch's rows.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InsertRows writes rows inside tx (the caller's transaction, so that a
// batch's rows and its ValidationBatch metadata row commit atomically).
func InsertRows(tx *sql.Tx, rows []Row) error {
	stmt, err := tx.Prepare(`INSERT INTO staging_rows (batch_id, source_row_number, target_table, values_json, validation_status, errors_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		valuesJSON, err := json.Marshal(normalizeColumns(r.Values))
		if err != nil {
			return fmt.Errorf("marshal row %d values: %w", r.SourceRowNumber, err)
		}
		status := r.ValidationStatus
		if status == "" {
			status = StatusPending
		}
		errorsJSON, err := json.Marshal(r.Errors)
		if err != nil {
			return fmt.Errorf("marshal row %d errors: %w", r.SourceRowNumber, err)
		}
		if _, err := stmt.Exec(r.BatchID, r.SourceRowNumber, r.TargetTable, string(valuesJSON), status, string(errorsJSON)); err != nil {
			return fmt.Errorf("insert row %d: %w", r.SourceRowNumber, err)
		}
	}
	return nil
}

// ListRows returns every row belonging to batchID, ordered by source row number.
func (s *Store) ListRows(batchID string) ([]Row, error) {
	rows, err := s.db.Query(`SELECT batch_id, source_row_number, target_table, values_json, validation_status, errors_json
		FROM staging_rows WHERE batch_id = ? ORDER BY source_row_number`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListValidRows returns only the rows whose validation_status is valid,
// ordered by source row number — what the Promoter copies into canonical
// tables.
func (s *Store) ListValidRows(batchID string) ([]Row, error) {
	rows, err := s.db.Query(`SELECT batch_id, source_row_number, target_table, values_json, validation_status, errors_json
		FROM staging_rows WHERE batch_id = ? AND validation_status = ? ORDER BY source_row_number`, batchID, StatusValid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateVerdict writes a row's validator verdict back in place. Idempotent:
// re-validating the same batch simply overwrites each row's verdict.
func (s *Store) UpdateVerdict(batchID string, sourceRowNumber int, status string, errors []string) error {
	errorsJSON, err := json.Marshal(errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	_, err = s.db.Exec(`UPDATE staging_rows SET validation_status = ?, errors_json = ? WHERE batch_id = ? AND source_row_number = ?`,
		status, string(errorsJSON), batchID, sourceRowNumber)
	return err
}

// CountByStatus returns the number of rows in batchID with the given status.
func (s *Store) CountByStatus(batchID, status string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM staging_rows WHERE batch_id = ? AND validation_status = ?`, batchID, status).Scan(&n)
	return n, err
}

// DeleteBatch removes every staged row for batchID (retention pruning or
// post-promotion cleanup).
func (s *Store) DeleteBatch(batchID string) error {
	_, err := s.db.Exec(`DELETE FROM staging_rows WHERE batch_id = ?`, batchID)
	return err
}

func scanRow(rows *sql.Rows) (*Row, error) {
	var r Row
	var valuesJSON, errorsJSON string
	if err := rows.Scan(&r.BatchID, &r.SourceRowNumber, &r.TargetTable, &valuesJSON, &r.ValidationStatus, &errorsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(valuesJSON), &r.Values); err != nil {
		return nil, fmt.Errorf("unmarshal row values: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &r.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal row errors: %w", err)
	}
	return &r, nil
}

// normalizeColumns trims, lowercases, and substitutes spaces with
// underscores in every column name, per the ingestion input contract.
func normalizeColumns(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[NormalizeColumnName(k)] = v
	}
	return out
}

// NormalizeColumnName applies the column-name normalization rule shared by
// the staging store and the ingestion package.
func NormalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.ReplaceAll(name, " ", "_")
}
