// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package wi4mpi

import "testing"

func TestIsSupported(t *testing.T) {
	openmpi, _ := ByVendorName("Open MPI")
	intelmpi, _ := ByVendorName("Intel MPI")

	if !IsSupported(openmpi, intelmpi) {
		t.Error("expected Open MPI -> Intel MPI to be a supported translation")
	}
	if IsSupported(openmpi, openmpi) {
		t.Error("expected a family translated to itself to be unsupported")
	}
}

func TestConfigureRequiresRoot(t *testing.T) {
	openmpi, _ := ByVendorName("Open MPI")
	intelmpi, _ := ByVendorName("Intel MPI")

	if _, err := Configure("", openmpi, intelmpi, nil); err == nil {
		t.Error("expected an error when no install root is given")
	}
}

func TestConfigureRejectsUnsupportedPair(t *testing.T) {
	openmpi, _ := ByVendorName("Open MPI")

	if _, err := Configure("/opt/wi4mpi", openmpi, openmpi, []string{"/opt/openmpi/lib/libmpi.so"}); err == nil {
		t.Error("expected an error for an unsupported translation pair")
	}
}

func TestConfigureBuildsEnvAndArgv(t *testing.T) {
	openmpi, _ := ByVendorName("Open MPI")
	intelmpi, _ := ByVendorName("Intel MPI")
	libs := []string{"/opt/openmpi/lib/libmpi.so", "/opt/openmpi/lib/libmpi_mpifh.so"}

	plan, err := Configure("/opt/wi4mpi", openmpi, intelmpi, libs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Env["WI4MPI_FROM"] != "openmpi" || plan.Env["WI4MPI_TO"] != "intelmpi" {
		t.Errorf("unexpected translation direction in env: %+v", plan.Env)
	}
	if plan.Env["OPENMPI_ROOT"] != "/opt/openmpi" {
		t.Errorf("expected OPENMPI_ROOT to be deduced as /opt/openmpi, got %q", plan.Env["OPENMPI_ROOT"])
	}
	if len(plan.ArgvPrefix) == 0 || plan.ArgvPrefix[0] != "/opt/wi4mpi/bin/wi4mpi" {
		t.Errorf("unexpected argv prefix: %v", plan.ArgvPrefix)
	}
}
