/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package promotion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/ingestion"
	"github.com/marcus-qen/clinkerplan/internal/staging"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

func TestParseHelpers(t *testing.T) {
	if got := parseFloat("12.5"); got != 12.5 {
		t.Fatalf("parseFloat: got %v", got)
	}
	if got := parseFloat("not-a-number"); got != 0 {
		t.Fatalf("parseFloat fallback: got %v", got)
	}
	if parseFloatPtr("") != nil {
		t.Fatal("expected nil for empty string")
	}
	if got := parseFloatPtr("3.5"); got == nil || *got != 3.5 {
		t.Fatalf("parseFloatPtr: got %v", got)
	}
	if !parseBool("true") || !parseBool("1") {
		t.Fatal("expected true for 'true' and '1'")
	}
	if parseBool("false") || parseBool("") {
		t.Fatal("expected false for 'false' and empty")
	}
}

func newTestStores(t *testing.T) (*staging.Store, *store.CanonicalStore) {
	t.Helper()
	url := os.Getenv("PLANNER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PLANNER_TEST_DATABASE_URL not set; skipping promotion integration test")
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

func TestPromoteRejectsNonValidatedBatch(t *testing.T) {
	stagingStore, canonical := newTestStores(t)

	if err := canonical.InsertBatch(store.ValidationBatch{BatchID: "B1", TargetTable: ingestion.TargetPlants, Status: store.BatchStatusPending}); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	p := New(stagingStore, canonical, nil)
	if _, err := p.Promote(context.Background(), "B1"); !errs.Is(err, errs.KindIllegalState) {
		t.Fatalf("expected illegal state error, got %v", err)
	}
}

func TestPromoteCopiesValidRows(t *testing.T) {
	stagingStore, canonical := newTestStores(t)

	if err := canonical.InsertBatch(store.ValidationBatch{BatchID: "B2", TargetTable: ingestion.TargetPlants, Status: store.BatchStatusValidated}); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	tx, _ := stagingStore.DB().Begin()
	_ = staging.InsertRows(tx, []staging.Row{{
		BatchID: "B2", SourceRowNumber: 1, TargetTable: ingestion.TargetPlants,
		Values: map[string]string{"id": "P1", "name": "Plant One", "type": "clinker"}, ValidationStatus: staging.StatusValid,
	}})
	_ = tx.Commit()

	p := New(stagingStore, canonical, nil)
	n, err := p.Promote(context.Background(), "B2")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row promoted, got %d", n)
	}

	got, err := canonical.GetPlant("P1")
	if err != nil {
		t.Fatalf("get plant: %v", err)
	}
	if got.Name != "Plant One" {
		t.Fatalf("unexpected plant: %+v", got)
	}

	batch, err := canonical.GetBatch("B2")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Status != store.BatchStatusPromoted {
		t.Fatalf("expected status promoted, got %s", batch.Status)
	}
}
