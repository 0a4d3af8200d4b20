// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package bindset

import "testing"

func TestIdempotence(t *testing.T) {
	req := Request{Origin: "/usr/lib/libmpi.so", Destination: "/usr/lib/libmpi.so"}
	var s Set
	s = s.Add(req).Add(req)
	if len(s) != 1 {
		t.Fatalf("expected a single entry after adding the same request twice, got %d", len(s))
	}
}

func TestAbsorption(t *testing.T) {
	dir := Request{Origin: "/opt/mpi", Destination: "/opt/mpi", Mode: ReadOnly}
	child := Request{Origin: "/opt/mpi/lib/libmpi.so", Destination: "/opt/mpi/lib/libmpi.so", Mode: ReadOnly}

	var s Set
	s = s.Add(dir).Add(child)

	if len(s) != 1 {
		t.Fatalf("expected the child binding to be absorbed into the parent, got %d entries: %+v", len(s), s)
	}
	if s[0] != dir {
		t.Fatalf("expected surviving entry to be the parent binding, got %+v", s[0])
	}
}

func TestContainmentReplacesNarrowerEntries(t *testing.T) {
	child1 := Request{Origin: "/opt/mpi/lib/libmpi.so", Destination: "/opt/mpi/lib/libmpi.so", Mode: ReadOnly}
	child2 := Request{Origin: "/opt/mpi/lib/libmpi_mpifh.so", Destination: "/opt/mpi/lib/libmpi_mpifh.so", Mode: ReadOnly}
	dir := Request{Origin: "/opt/mpi", Destination: "/opt/mpi", Mode: ReadOnly}

	var s Set
	s = s.Add(child1).Add(child2).Add(dir)

	if len(s) != 1 {
		t.Fatalf("expected both children to be replaced by the containing directory, got %+v", s)
	}
}

func TestPermissionMonotonicityPromotesOnAbsorb(t *testing.T) {
	dir := Request{Origin: "/opt/mpi", Destination: "/opt/mpi", Mode: ReadOnly}
	rwChild := Request{Origin: "/opt/mpi/lib/libmpi.so", Destination: "/opt/mpi/lib/libmpi.so", Mode: ReadWrite}

	var s Set
	s = s.Add(dir).Add(rwChild)

	if len(s) != 1 {
		t.Fatalf("expected the child to be absorbed, got %+v", s)
	}
	if s[0].Mode != ReadWrite {
		t.Fatalf("expected the containing directory to be promoted to ReadWrite, got %v", s[0].Mode)
	}
}

func TestPermissionMonotonicityNeverDemotes(t *testing.T) {
	dir := Request{Origin: "/opt/mpi", Destination: "/opt/mpi", Mode: ReadWrite}
	roChild := Request{Origin: "/opt/mpi/lib/libmpi.so", Destination: "/opt/mpi/lib/libmpi.so", Mode: ReadOnly}

	var s Set
	s = s.Add(dir).Add(roChild)

	if len(s) != 1 || s[0].Mode != ReadWrite {
		t.Fatalf("expected the ReadWrite directory binding to remain, got %+v", s)
	}
}

func TestSubsetDemotionUnionsPermissionOnMerge(t *testing.T) {
	roChild := Request{Origin: "/opt/mpi/lib/libmpi.so", Destination: "/opt/mpi/lib/libmpi.so", Mode: ReadOnly}
	rwChild := Request{Origin: "/opt/mpi/lib/libmpi_mpifh.so", Destination: "/opt/mpi/lib/libmpi_mpifh.so", Mode: ReadWrite}
	dir := Request{Origin: "/opt/mpi", Destination: "/opt/mpi", Mode: ReadOnly}

	var s Set
	s = s.Add(roChild).Add(rwChild).Add(dir)

	if len(s) != 1 {
		t.Fatalf("expected a single merged entry, got %+v", s)
	}
	if s[0].Mode != ReadWrite {
		t.Fatalf("expected merge to union permissions up to ReadWrite, got %v", s[0].Mode)
	}
}

func TestUnrelatedBindingsBothSurvive(t *testing.T) {
	a := Request{Origin: "/opt/mpi", Destination: "/opt/mpi"}
	b := Request{Origin: "/etc/hosts", Destination: "/etc/hosts"}

	var s Set
	s = s.Add(a).Add(b)

	if len(s) != 2 {
		t.Fatalf("expected two unrelated bindings to both survive, got %+v", s)
	}
}
