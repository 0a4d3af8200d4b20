// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package test collects small helpers shared by _test.go files across the
// module, mirroring how the teacher centralizes test scaffolding instead of
// duplicating it per package.
package test

import (
	"os"
	"testing"
)

// DropPrivilege is a no-op placeholder for parity with code ported from a
// setuid-aware test suite: e4s-cl-go never runs setuid, so there is no
// privilege to drop, but keeping the call site lets tests share structure
// with the teacher's.
func DropPrivilege(t *testing.T) {
	t.Helper()
}

// ResetPrivilege mirrors DropPrivilege; see its comment.
func ResetPrivilege(t *testing.T) {
	t.Helper()
}

// TempDir returns a fresh temporary directory that is removed when the test
// completes, used by tests that need a scratch filesystem tree (profile
// storage, bind staging).
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("could not create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}
