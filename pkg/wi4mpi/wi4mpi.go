// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package wi4mpi orchestrates the Wi4MPI ABI-translation shim: given a
// detected source MPI family and a container's target family, it resolves
// the installed shim, locates both families' runtime libraries, and builds
// the environment and argv prefix needed to run under translation.
package wi4mpi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
)

// Family mirrors a single entry of the shim's vendor metadata table: the
// names it's known by on its CLI and in its env vars, and the canonical
// sonames of its C and Fortran interface libraries.
type Family struct {
	VendorName      string
	CLIName         string
	EnvName         string
	PathKey         string
	DefaultPathKey  string
	MPICSoname      string
	MPIFortranSoname string
}

// Metadata is the static table of families the shim understands, grounded
// on the four families the original tool shipped wrappers for.
var Metadata = []Family{
	{
		VendorName: "Intel MPI", CLIName: "intelmpi", EnvName: "INTEL_MPI",
		PathKey: "INTELMPI_ROOT", DefaultPathKey: "I_MPI_ROOT",
		MPICSoname: "libmpi.so", MPIFortranSoname: "libmpifort.so",
	},
	{
		VendorName: "Open MPI", CLIName: "openmpi", EnvName: "OPEN_MPI",
		PathKey: "OPENMPI_ROOT", DefaultPathKey: "OPAL_PREFIX",
		MPICSoname: "libmpi.so", MPIFortranSoname: "libmpi_mpifh.so",
	},
	{
		VendorName: "MPICH", CLIName: "mpich", EnvName: "MPICH",
		PathKey: "MPICH_ROOT", DefaultPathKey: "MPICH_ROOT",
		MPICSoname: "libmpi.so", MPIFortranSoname: "libmpifort.so",
	},
	{
		VendorName: "Cray MPICH", CLIName: "mpich", EnvName: "CRAY_MPICH",
		PathKey: "MPICH_ROOT", DefaultPathKey: "MPICH_DIR",
		MPICSoname: "libmpi_cray.so", MPIFortranSoname: "libmpifort_cray.so",
	},
}

func byVendor(vendor string) (Family, bool) {
	for _, f := range Metadata {
		if f.VendorName == vendor {
			return f, true
		}
	}
	return Family{}, false
}

// translationPair is an (source, target) CLI-name pair.
type translationPair struct{ source, target string }

// SupportedTranslations is the static set of (source, target) family pairs
// the shim ships wrapper libraries for.
var SupportedTranslations = map[translationPair]bool{
	{"openmpi", "intelmpi"}: true,
	{"openmpi", "mpich"}:    true,
	{"intelmpi", "openmpi"}: true,
	{"intelmpi", "mpich"}:   true,
	{"mpich", "openmpi"}:    true,
	{"mpich", "intelmpi"}:   true,
}

// IsSupported reports whether translating from source to target is one of
// the shim's shipped combinations.
func IsSupported(source, target Family) bool {
	return SupportedTranslations[translationPair{source.CLIName, target.CLIName}]
}

// Plan is the outcome of configuring a translation: the environment
// variables to export into the backend's container-facing environment, and
// the argv prefix to place in front of the user's command line.
type Plan struct {
	Env        map[string]string
	ArgvPrefix []string
}

// Configure resolves the eight WI4MPI_* variables and the shim's own argv
// prefix for running source-built code against a target-family container,
// given the shim's install root and the set of libraries discovered by the
// dependency-discovery engine for the source installation.
func Configure(root string, source, target Family, sourceLibraries []string) (*Plan, error) {
	if root == "" {
		return nil, e4serr.NewTranslationSetupFailureError(
			"no Wi4MPI installation found",
			"set WI4MPI_ROOT or configure wi4mpi_root in the active profile")
	}
	if !IsSupported(source, target) {
		return nil, e4serr.NewTranslationSetupFailureError(
			fmt.Sprintf("translation from %s to %s is not supported", source.VendorName, target.VendorName))
	}

	cLib := findBySoname(sourceLibraries, source.MPICSoname)
	fLib := findBySoname(sourceLibraries, source.MPIFortranSoname)
	if cLib == "" {
		return nil, e4serr.NewTranslationSetupFailureError(
			fmt.Sprintf("could not locate %s amongst discovered libraries", source.MPICSoname))
	}

	env := map[string]string{
		"WI4MPI_ROOT":           root,
		source.PathKey:          filepath.Dir(filepath.Dir(cLib)),
		"WI4MPI_FROM":           source.CLIName,
		"WI4MPI_TO":             target.CLIName,
		"WI4MPI_RUN_MPI_C_LIB":  cLib,
		"WI4MPI_RUN_MPIIO_C_LIB": cLib,
	}
	if fLib != "" {
		env["WI4MPI_RUN_MPI_F_LIB"] = fLib
		env["WI4MPI_RUN_MPIIO_F_LIB"] = fLib
	}

	if preload := fakeLibraryPreloads(root, source.CLIName); len(preload) > 0 {
		existing := os.Getenv("LD_PRELOAD")
		all := append([]string{}, preload...)
		if existing != "" {
			all = append(all, existing)
		}
		env["LD_PRELOAD"] = strings.Join(all, ":")
	}

	return &Plan{
		Env:        env,
		ArgvPrefix: []string{filepath.Join(root, "bin", "wi4mpi"), "-f", source.CLIName, "-t", target.CLIName},
	}, nil
}

func findBySoname(libraries []string, soname string) string {
	for _, l := range libraries {
		if filepath.Base(l) == soname || strings.HasPrefix(filepath.Base(l), strings.TrimSuffix(soname, ".so")+".so") {
			return l
		}
	}
	return ""
}

// fakeLibraryPreloads lists every library under
// <root>/libexec/wi4mpi/fakelib<source>/, the shim's mechanism for
// shadowing the source MPI's own libraries inside the target container so
// the dynamic linker resolves to the translation wrapper instead.
func fakeLibraryPreloads(root, sourceCLIName string) []string {
	dir := filepath.Join(root, "libexec", "wi4mpi", "fakelib"+sourceCLIName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "lib") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// ByVendorName resolves the Family entry for a detected MPI vendor name
// (as produced by pkg/mpi), used by the launch pipeline to turn a detected
// Identifier into the Family Configure expects.
func ByVendorName(vendor string) (Family, bool) {
	return byVendor(vendor)
}

// ByCLIName resolves the Family entry for a shim CLI name, e.g. the value
// of the launch pipeline's "--from" flag ("openmpi", "intelmpi", "mpich").
func ByCLIName(name string) (Family, bool) {
	for _, f := range Metadata {
		if f.CLIName == name {
			return f, true
		}
	}
	return Family{}, false
}
