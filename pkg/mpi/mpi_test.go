// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package mpi

import "testing"

func TestIdentifyBanner(t *testing.T) {
	cases := []struct {
		banner      string
		wantVendor  string
		wantVersion string
	}{
		{"Open MPI v4.1.4, package: Open MPI root@build Distribution", "Open MPI", "4.1.4"},
		{"Intel(R) MPI Library 2019 Update 9 for Linux* OS", "Intel MPI", "2019 Update 9"},
		{"MVAPICH2 Version      :\t2.3.7", "MVAPICH", "2.3.7"},
		{"CRAY MPICH version 8.1.25 (ANL base 3.4a2)", "Cray MPICH", "8.1.25"},
	}
	for _, c := range cases {
		id, ok := IdentifyBanner(c.banner)
		if !ok {
			t.Errorf("banner %q: expected a match", c.banner)
			continue
		}
		if id.Vendor != c.wantVendor || id.Version != c.wantVersion {
			t.Errorf("banner %q: got %+v, want {%s %s}", c.banner, id, c.wantVendor, c.wantVersion)
		}
	}
}

func TestIdentifyBannerNoMatch(t *testing.T) {
	if _, ok := IdentifyBanner("some unrelated library banner"); ok {
		t.Error("expected no match for an unrelated banner")
	}
}

func TestDetectRequiresAgreement(t *testing.T) {
	agree := map[string]string{
		"/opt/mpi/lib/libmpi.so":        "Open MPI v4.1.4, package: x",
		"/opt/mpi/lib/libmpi_mpifh.so":  "Open MPI v4.1.4, package: x",
	}
	if _, ok := Detect(agree); !ok {
		t.Error("expected agreeing banners to produce a match")
	}

	disagree := map[string]string{
		"/opt/mpi/lib/libmpi.so":       "Open MPI v4.1.4, package: x",
		"/opt/other/lib/libmpi.so":     "MVAPICH2 Version      :\t2.3.7",
	}
	if _, ok := Detect(disagree); ok {
		t.Error("expected disagreeing banners to produce no match")
	}
}

func TestFilterCoreLibraries(t *testing.T) {
	in := []string{"/opt/mpi/lib/libmpi.so.40", "/opt/mpi/lib/libmpi_mpifh.so", "/opt/mpi/lib/libopen-pal.so"}
	out := FilterCoreLibraries(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 core libraries, got %v", out)
	}
}
