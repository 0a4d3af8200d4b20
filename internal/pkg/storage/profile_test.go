// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package storage

import (
	"path/filepath"
	"testing"
)

func openTestProfileStore(t *testing.T) *ProfileStore {
	t.Helper()
	s, err := OpenProfileStore(filepath.Join(t.TempDir(), "profiles.json"))
	if err != nil {
		t.Fatalf("OpenProfileStore: %v", err)
	}
	return s
}

func TestProfileCreateHomogenizesFiles(t *testing.T) {
	s := openTestProfileStore(t)
	_, err := s.Create(Profile{Name: "default", Files: []string{"/a/b/../c/"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, p, ok := s.Get("default")
	if !ok {
		t.Fatal("expected to find the created profile")
	}
	if len(p.Files) != 1 || p.Files[0] != "/a/c" {
		t.Fatalf("expected homogenized files, got %v", p.Files)
	}
}

func TestDeletingSelectedProfileClearsSelection(t *testing.T) {
	s := openTestProfileStore(t)
	s.Create(Profile{Name: "default"})
	if err := s.Select("default"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := s.Delete("default"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Selected(); err == nil {
		t.Fatal("expected Selected to fail after its profile was deleted")
	}
}

func TestSelectedReturnsProfileSelectionError(t *testing.T) {
	s := openTestProfileStore(t)
	if _, err := s.Selected(); err == nil {
		t.Fatal("expected an error when nothing is selected")
	}
}
