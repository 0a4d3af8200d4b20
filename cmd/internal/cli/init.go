// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/pipeline/detect"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/storage"
	"github.com/e4s-cl/e4s-cl-go/pkg/cmdline"
	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
	"github.com/e4s-cl/e4s-cl-go/pkg/mpi"
	"github.com/e4s-cl/e4s-cl-go/pkg/stablehash"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

var (
	initLauncher      string
	initLauncherArgs  string
	initMPI           string
	initSource        string
	initImage         string
	initBackend       string
	initProfileName   string
	initWi4MPI        string
	initWi4MPIOptions string
)

var initLauncherFlag = cmdline.Flag{ID: "initLauncherFlag", Value: &initLauncher, DefaultValue: "", Name: "launcher", Usage: "MPI launcher required to run a sample program"}
var initLauncherArgsFlag = cmdline.Flag{ID: "initLauncherArgsFlag", Value: &initLauncherArgs, DefaultValue: "", Name: "launcher-args", Usage: "arguments passed to the launcher when running the sample program"}
var initMPIFlag = cmdline.Flag{ID: "initMPIFlag", Value: &initMPI, DefaultValue: "", Name: "mpi", Usage: "path of the MPI installation to use with this profile"}
var initSourceFlag = cmdline.Flag{ID: "initSourceFlag", Value: &initSource, DefaultValue: "", Name: "source", Usage: "script to source before execution with this profile"}
var initImageFlag = cmdline.Flag{ID: "initImageFlag", Value: &initImage, DefaultValue: "", Name: "image", Usage: "container image to use by default with this profile"}
var initBackendFlag = cmdline.Flag{ID: "initBackendFlag", Value: &initBackend, DefaultValue: "", Name: "backend", Usage: "container backend to use by default with this profile"}
var initProfileNameFlag = cmdline.Flag{ID: "initProfileNameFlag", Value: &initProfileName, DefaultValue: "", Name: "profile", Usage: "profile to create; this will erase an existing profile of the same name"}
var initWi4MPIFlag = cmdline.Flag{ID: "initWi4MPIFlag", Value: &initWi4MPI, DefaultValue: "", Name: "wi4mpi", Usage: "path to the install directory of WI4MPI"}
var initWi4MPIOptionsFlag = cmdline.Flag{ID: "initWi4MPIOptionsFlag", Value: &initWi4MPIOptions, DefaultValue: "", Name: "wi4mpi-options", Usage: "options to use with WI4MPI"}

// sampleProgram is a minimal MPI program compiled on the fly to trace
// under a launcher when no other initialization method is requested.
const sampleProgram = `#include <mpi.h>
int main(int argc, char **argv) {
	MPI_Init(&argc, &argv);
	MPI_Finalize();
	return 0;
}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a profile from the MPI library and launcher available in the environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wi4mpiArgs := initWi4MPI != "" || initWi4MPIOptions != ""
		detectArgs := initMPI != "" || initLauncher != "" || initLauncherArgs != ""
		if detectArgs && wi4mpiArgs {
			return e4serr.NewUsageError("--wi4mpi and --mpi/--launcher/--launcher-args are mutually exclusive")
		}

		store, err := openStore()
		if err != nil {
			return err
		}

		profile := storage.Profile{
			Image: initImage, Backend: initBackend, Source: initSource,
			Wi4MPI: initWi4MPI, Wi4MPIOptions: initWi4MPIOptions,
		}

		var name string
		switch {
		case wi4mpiArgs:
			name = "wi4mpi"
		default:
			name = detect.InitTempProfileName
		}
		if initProfileName != "" {
			name = initProfileName
		}
		profile.Name = name

		_ = store.Delete(name)
		if _, err := store.Create(profile); err != nil {
			return err
		}
		if err := store.Select(name); err != nil {
			return err
		}

		// Shifter supplies its own MPI runtime inside the image, and a
		// wi4mpi-configured profile gets its binding set from the shim
		// installation itself: neither needs a sample-program trace.
		runAnalysis := initBackend != "shifter" && !wi4mpiArgs
		var analysisErr error
		if runAnalysis {
			analysisErr = runSampleAnalysis(cmd, store, name)
		}
		if analysisErr != nil {
			_ = store.Delete(name)
			return analysisErr
		}

		renameAfterAnalysis(store, name)

		fmt.Printf("Profile %s created and selected.\n", currentProfileName(store, name))
		return nil
	},
}

// runSampleAnalysis finds an MPI compiler and launcher, compiles the
// embedded sample program, and traces it through the detect pipeline to
// populate the profile's files and libraries.
func runSampleAnalysis(cmd *cobra.Command, store *storage.ProfileStore, name string) error {
	compiler := which("mpicc")
	launcher := which("mpirun")

	if initMPI != "" {
		if p := filepath.Join(initMPI, "bin", "mpicc"); fileExists(p) {
			compiler = p
		}
		if p := filepath.Join(initMPI, "bin", "mpirun"); fileExists(p) {
			launcher = p
		}
		if p := filepath.Join(initMPI, "lib"); fileExists(p) {
			os.Setenv("LD_LIBRARY_PATH", p)
		}
	}
	if initLauncher != "" {
		if resolved := which(initLauncher); resolved != "" {
			launcher = resolved
		} else {
			launcher = initLauncher
		}
	}
	if compiler == "" {
		return e4serr.NewAnalysisFailureError("no MPI compiler detected; load a module or use --mpi to specify the MPI installation to use")
	}
	if launcher == "" {
		return e4serr.NewAnalysisFailureError("no MPI launcher detected; load a module, or use --mpi/--launcher to specify the launcher program")
	}

	binary, err := compileSample(compiler)
	if err != nil {
		return e4serr.NewAnalysisFailureError(err.Error())
	}
	defer os.Remove(binary)

	launcherArgs := strings.Fields(initLauncherArgs)
	sylog.Warningf("tracing MPI execution using compiler %s, launcher %s", compiler, launcher)

	command := append(append([]string{launcher}, launcherArgs...), binary)
	return detect.Run(cmd.Context(), currentContext(), store, detect.Options{ProfileName: name, Command: command})
}

func compileSample(compiler string) (string, error) {
	src, err := os.CreateTemp("", "e4s-cl-sample-*.c")
	if err != nil {
		return "", err
	}
	defer os.Remove(src.Name())
	if _, err := src.WriteString(sampleProgram); err != nil {
		src.Close()
		return "", err
	}
	src.Close()

	out, err := os.CreateTemp("", "e4s-cl-sample-*")
	if err != nil {
		return "", err
	}
	out.Close()

	run := exec.Command(compiler, "-o", out.Name(), "-lm", src.Name())
	run.Stdout, run.Stderr = os.Stdout, os.Stderr
	if err := run.Run(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("compiling sample program with %s: %w", compiler, err)
	}
	return out.Name(), nil
}

// renameAfterAnalysis renames the temporary profile according to the
// vendor/version detected in its own MPI libraries, falling back to a
// stable hash of the profile name and its library list when no vendor
// could be determined, and
// leaves the profile as-is if an explicit --profile name was requested.
func renameAfterAnalysis(store *storage.ProfileStore, name string) {
	if initProfileName != "" || name != detect.InitTempProfileName {
		return
	}
	_, p, ok := store.Get(name)
	if !ok {
		return
	}
	coreLibs := mpi.FilterCoreLibraries(p.Libraries)
	id, ok := mpi.DetectFromLibraries(coreLibs)
	if !ok {
		newName := "default-" + stablehash.Hex(name+strings.Join(p.Libraries, ","), 16)
		if err := renameProfile(store, name, newName); err != nil {
			sylog.Debugf("init: could not rename profile: %s", err)
		}
		return
	}
	if err := renameProfile(store, name, id.String()); err != nil {
		sylog.Debugf("init: could not rename profile to %s: %s", id.String(), err)
	}
}

func renameProfile(store *storage.ProfileStore, from, to string) error {
	_ = store.Delete(to)
	return store.Update(storage.Profile{Name: to}, from)
}

func currentProfileName(store *storage.ProfileStore, fallback string) string {
	if p, err := store.Selected(); err == nil {
		return p.Name
	}
	return fallback
}

func which(name string) string {
	p, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return p
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func init() {
	cmdInits = append(cmdInits, func(manager *cmdline.CommandManager) {
		manager.RegisterFlagForCmd(&initLauncherFlag, initCmd)
		manager.RegisterFlagForCmd(&initLauncherArgsFlag, initCmd)
		manager.RegisterFlagForCmd(&initMPIFlag, initCmd)
		manager.RegisterFlagForCmd(&initSourceFlag, initCmd)
		manager.RegisterFlagForCmd(&initImageFlag, initCmd)
		manager.RegisterFlagForCmd(&initBackendFlag, initCmd)
		manager.RegisterFlagForCmd(&initProfileNameFlag, initCmd)
		manager.RegisterFlagForCmd(&initWi4MPIFlag, initCmd)
		manager.RegisterFlagForCmd(&initWi4MPIOptionsFlag, initCmd)
		manager.RootCmd().AddCommand(initCmd)
	})
}
