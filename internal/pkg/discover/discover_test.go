// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package discover

import "testing"

func TestPathSetUnionDeduplicates(t *testing.T) {
	a := &PathSet{Libraries: []string{"/lib/libmpi.so"}, Files: []string{"/etc/foo.conf"}}
	b := &PathSet{Libraries: []string{"/lib/libmpi.so", "/lib/libucx.so"}}

	u := a.Union(b)
	if len(u.Libraries) != 2 {
		t.Fatalf("expected 2 deduplicated libraries, got %v", u.Libraries)
	}
	if len(u.Files) != 1 {
		t.Fatalf("expected 1 file, got %v", u.Files)
	}
}

func TestIsReservedBlacklistsPseudoFilesystems(t *testing.T) {
	if !isReserved("/proc/1/maps", nil) {
		t.Fatal("expected /proc paths to be reserved")
	}
	if isReserved("/opt/mpi/lib/libmpi.so", nil) {
		t.Fatal("expected a normal library path to not be reserved")
	}
}

func TestIsReservedHonorsLauncherExtras(t *testing.T) {
	if !isReserved("/var/spool/slurmd/job1", []string{"/var/spool/slurmd"}) {
		t.Fatal("expected the launcher-reserved directory to be honored")
	}
}

func TestFilterPollutionKeepsCoreLibraries(t *testing.T) {
	libs := []string{"/opt/mpi/lib/libmpi.so.12", "/opt/mpi/lib/libpmi.so"}
	kept := FilterPollution(libs, "/opt/mpi", FilterAuto, nil)
	if len(kept) != 1 || kept[0] != "/opt/mpi/lib/libmpi.so.12" {
		t.Fatalf("expected only the core library to survive, got %v", kept)
	}
}

func TestFilterPollutionOffKeepsEverything(t *testing.T) {
	libs := []string{"/opt/mpi/lib/libmpi.so.12", "/opt/mpi/lib/libpmi.so"}
	kept := FilterPollution(libs, "/opt/mpi", FilterOff, nil)
	if len(kept) != 2 {
		t.Fatalf("expected both libraries to survive, got %v", kept)
	}
}
