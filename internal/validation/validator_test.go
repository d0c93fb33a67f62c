/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcus-qen/clinkerplan/internal/ingestion"
	"github.com/marcus-qen/clinkerplan/internal/staging"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// newTestStores opens a staging store against a temp file and a canonical
// store against PLANNER_TEST_DATABASE_URL, skipping when no live Postgres is
// configured — Validate touches both stores, so it can only be exercised
// end-to-end with a real canonical store available.
func newTestStores(t *testing.T) (*staging.Store, *store.CanonicalStore) {
	t.Helper()
	url := os.Getenv("PLANNER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PLANNER_TEST_DATABASE_URL not set; skipping validator integration test")
	}

	stagingStore, err := staging.NewStore(filepath.Join(t.TempDir(), "staging.db"))
	if err != nil {
		t.Fatalf("new staging store: %v", err)
	}
	t.Cleanup(func() { _ = stagingStore.Close() })

	canonical, err := store.Open(url)
	if err != nil {
		t.Fatalf("open canonical store: %v", err)
	}
	t.Cleanup(func() { _ = canonical.Close() })

	return stagingStore, canonical
}

func TestValidateMarksBatchValidatedWhenAllRowsPass(t *testing.T) {
	stagingStore, canonical := newTestStores(t)

	if err := canonical.InsertBatch(store.ValidationBatch{BatchID: "B1", TargetTable: ingestion.TargetPlants, TotalRows: 1}); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	tx, err := stagingStore.DB().Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := staging.InsertRows(tx, []staging.Row{{BatchID: "B1", SourceRowNumber: 1, TargetTable: ingestion.TargetPlants,
		Values: map[string]string{"id": "P1", "name": "Plant One", "type": "clinker"}}}); err != nil {
		t.Fatalf("insert rows: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v := New(stagingStore, canonical, nil)
	report, err := v.Validate(context.Background(), "B1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.IsValid {
		t.Fatalf("expected valid report, got errors: %+v", report.Errors)
	}

	batch, err := canonical.GetBatch("B1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Status != store.BatchStatusValidated {
		t.Fatalf("expected status validated, got %s", batch.Status)
	}
}

func TestValidateMarksBatchFailedWhenRowsHaveErrors(t *testing.T) {
	stagingStore, canonical := newTestStores(t)

	if err := canonical.InsertBatch(store.ValidationBatch{BatchID: "B2", TargetTable: ingestion.TargetPlants, TotalRows: 1}); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	tx, _ := stagingStore.DB().Begin()
	_ = staging.InsertRows(tx, []staging.Row{{BatchID: "B2", SourceRowNumber: 1, TargetTable: ingestion.TargetPlants,
		Values: map[string]string{"id": "", "name": "Plant One", "type": "clinker"}}})
	_ = tx.Commit()

	v := New(stagingStore, canonical, nil)
	report, err := v.Validate(context.Background(), "B2")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.IsValid {
		t.Fatal("expected invalid report for missing plant id")
	}

	batch, err := canonical.GetBatch("B2")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Status != store.BatchStatusFailed {
		t.Fatalf("expected status failed, got %s", batch.Status)
	}
	if batch.InvalidRows != 1 {
		t.Fatalf("expected 1 invalid row, got %d", batch.InvalidRows)
	}
}
