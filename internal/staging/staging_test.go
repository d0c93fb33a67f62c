/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package staging

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "staging.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndListRows(t *testing.T) {
	s := newTestStore(t)

	rows := []Row{
		{BatchID: "B1", SourceRowNumber: 1, TargetTable: "plants", Values: map[string]string{"ID": "P1", "Name ": "Plant One"}},
		{BatchID: "B1", SourceRowNumber: 2, TargetTable: "plants", Values: map[string]string{"id": "P2"}},
	}

	tx, err := s.DB().Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := InsertRows(tx, rows); err != nil {
		t.Fatalf("insert rows: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := s.ListRows("B1")
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Values["id"] != "P1" {
		t.Fatalf("expected normalized column name 'id', got %+v", got[0].Values)
	}
	if got[0].Values["name"] != "Plant One" {
		t.Fatalf("expected trimmed+lowered 'name' column, got %+v", got[0].Values)
	}
	if got[0].ValidationStatus != StatusPending {
		t.Fatalf("expected default status pending, got %s", got[0].ValidationStatus)
	}
}

func TestUpdateVerdictIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	tx, _ := s.DB().Begin()
	_ = InsertRows(tx, []Row{{BatchID: "B1", SourceRowNumber: 1, TargetTable: "plants", Values: map[string]string{"id": "P1"}}})
	_ = tx.Commit()

	if err := s.UpdateVerdict("B1", 1, StatusInvalid, []string{"missing name"}); err != nil {
		t.Fatalf("update verdict: %v", err)
	}
	if err := s.UpdateVerdict("B1", 1, StatusValid, nil); err != nil {
		t.Fatalf("re-validate: %v", err)
	}

	rows, err := s.ListRows("B1")
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if rows[0].ValidationStatus != StatusValid {
		t.Fatalf("expected latest verdict to win, got %s", rows[0].ValidationStatus)
	}
	if len(rows[0].Errors) != 0 {
		t.Fatalf("expected errors cleared on re-validate, got %v", rows[0].Errors)
	}
}

func TestListValidRowsAndCountByStatus(t *testing.T) {
	s := newTestStore(t)

	tx, _ := s.DB().Begin()
	_ = InsertRows(tx, []Row{
		{BatchID: "B1", SourceRowNumber: 1, TargetTable: "plants", Values: map[string]string{"id": "P1"}},
		{BatchID: "B1", SourceRowNumber: 2, TargetTable: "plants", Values: map[string]string{"id": "P2"}},
		{BatchID: "B1", SourceRowNumber: 3, TargetTable: "plants", Values: map[string]string{"id": "P3"}},
	})
	_ = tx.Commit()

	_ = s.UpdateVerdict("B1", 1, StatusValid, nil)
	_ = s.UpdateVerdict("B1", 2, StatusValid, nil)
	_ = s.UpdateVerdict("B1", 3, StatusInvalid, []string{"duplicate id"})

	valid, err := s.ListValidRows("B1")
	if err != nil {
		t.Fatalf("list valid rows: %v", err)
	}
	if len(valid) != 2 {
		t.Fatalf("expected 2 valid rows, got %d", len(valid))
	}

	n, err := s.CountByStatus("B1", StatusInvalid)
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 invalid row, got %d", n)
	}
}

func TestDeleteBatch(t *testing.T) {
	s := newTestStore(t)

	tx, _ := s.DB().Begin()
	_ = InsertRows(tx, []Row{{BatchID: "B1", SourceRowNumber: 1, TargetTable: "plants", Values: map[string]string{"id": "P1"}}})
	_ = tx.Commit()

	if err := s.DeleteBatch("B1"); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	rows, err := s.ListRows("B1")
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows after delete, got %d", len(rows))
	}
}

func TestNormalizeColumnName(t *testing.T) {
	cases := map[string]string{
		"  ID  ":      "id",
		"Plant Name":  "plant_name",
		"already_ok": "already_ok",
	}
	for in, want := range cases {
		if got := NormalizeColumnName(in); got != want {
			t.Errorf("NormalizeColumnName(%q) = %q, want %q", in, got, want)
		}
	}
}
