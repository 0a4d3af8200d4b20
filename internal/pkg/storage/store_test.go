// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package storage

import (
	"path/filepath"
	"testing"
)

func openTestTable(t *testing.T) *Table {
	t.Helper()
	dir := t.TempDir()
	tbl, err := Open(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tbl
}

func TestCreateAndOne(t *testing.T) {
	tbl := openTestTable(t)
	id, err := tbl.Create(Record{"name": "default"}, []string{"name"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	gotID, rec, ok := tbl.One(map[string]interface{}{"name": "default"})
	if !ok || gotID != id || rec["name"] != "default" {
		t.Fatalf("One returned %v %v %v", gotID, rec, ok)
	}
}

func TestCreateRejectsDuplicateUniqueField(t *testing.T) {
	tbl := openTestTable(t)
	if _, err := tbl.Create(Record{"name": "default"}, []string{"name"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := tbl.Create(Record{"name": "default"}, []string{"name"}); err == nil {
		t.Fatal("expected a uniqueness error on the second Create")
	}
}

func TestTransactionRollbackRestoresSnapshot(t *testing.T) {
	tbl := openTestTable(t)
	id, _ := tbl.Create(Record{"name": "default", "image": "a"}, []string{"name"})

	commit, rollback := tbl.Begin()
	_ = commit
	if err := tbl.Update(Record{"image": "b"}, map[string]interface{}{"name": "default"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, _ := tbl.Get(id)
	if rec["image"] != "b" {
		t.Fatalf("expected in-flight update visible before rollback, got %v", rec)
	}
	if err := rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	rec, _ = tbl.Get(id)
	if rec["image"] != "a" {
		t.Fatalf("expected rollback to restore original value, got %v", rec)
	}
}

func TestNestedTransactionOnlyOutermostPersists(t *testing.T) {
	tbl := openTestTable(t)
	commitOuter, _ := tbl.Begin()
	commitInner, _ := tbl.Begin()

	if _, err := tbl.Create(Record{"name": "p1"}, []string{"name"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := commitInner(); err != nil {
		t.Fatalf("inner commit: %v", err)
	}
	if !tbl.Contains(map[string]interface{}{"name": "p1"}) {
		t.Fatal("expected record visible in-memory after inner commit")
	}

	if err := commitOuter(); err != nil {
		t.Fatalf("outer commit: %v", err)
	}
}

func TestDeleteAndPurge(t *testing.T) {
	tbl := openTestTable(t)
	tbl.Create(Record{"name": "a"}, []string{"name"})
	tbl.Create(Record{"name": "b"}, []string{"name"})

	if err := tbl.Delete(map[string]interface{}{"name": "a"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if tbl.Contains(map[string]interface{}{"name": "a"}) {
		t.Fatal("expected a to be gone")
	}
	if err := tbl.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(tbl.All()) != 0 {
		t.Fatal("expected an empty table after Purge")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := tbl.Create(Record{"name": "default"}, []string{"name"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Contains(map[string]interface{}{"name": "default"}) {
		t.Fatal("expected record to survive a reopen")
	}
}
