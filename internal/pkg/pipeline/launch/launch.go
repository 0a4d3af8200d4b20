// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package launch implements the "launch" pipeline: merge profile and CLI
// parameters, detect whether MPI translation is needed, and build the
// argv/env the execute-child stage runs with.
package launch

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/backend"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/launcher"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/rt"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/storage"
	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
	"github.com/e4s-cl/e4s-cl-go/pkg/mpi"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
	"github.com/e4s-cl/e4s-cl-go/pkg/wi4mpi"
)

// Parameters is the merged view of a launch request: CLI flags take
// precedence over the selected/named profile's own fields, field by field.
type Parameters struct {
	Image      string
	Backend    string
	Source     string
	Libraries  []string
	Files      []string
	Wi4MPI     string
	FromFamily string
}

// MergeProfile fills any Parameters field left empty with the matching
// field from p, CLI-given values always winning.
func MergeProfile(params Parameters, p storage.Profile) Parameters {
	if params.Image == "" {
		params.Image = p.Image
	}
	if params.Backend == "" {
		params.Backend = p.Backend
	}
	if params.Source == "" {
		params.Source = p.Source
	}
	if params.Wi4MPI == "" {
		params.Wi4MPI = p.Wi4MPI
	}
	if len(params.Libraries) == 0 {
		params.Libraries = p.Libraries
	}
	if len(params.Files) == 0 {
		params.Files = p.Files
	}
	return params
}

// Options bundles everything Run needs beyond the merged Parameters.
type Options struct {
	Params  Parameters
	Command []string
}

// executableName is the current executable's own argv[0], re-invoked as the
// execute-child once per rank by the launcher.
func executableName() (string, error) {
	return os.Executable()
}

// Run validates the merged parameters, resolves MPI translation if needed,
// and either prints the execute-child argv (dry-run) or execs the launcher
// with it substituted for the user's own command.
func Run(rc rt.Context, opts Options) error {
	params := opts.Params
	if params.Backend == "" || params.Image == "" {
		return e4serr.NewUsageError("missing required field: 'backend' and 'image' must be set, via flags or a selected profile")
	}

	if _, err := backend.New(params.Backend); err != nil {
		return e4serr.NewBackendNotAvailableError(params.Backend)
	}

	launcherArgv, programArgv := launcher.Interpret(opts.Command)
	for _, dir := range launcher.ReservedDirectories(launcherArgv) {
		params.Files = appendIfMissing(params.Files, dir)
	}

	wi4mpiArgvPrefix, wi4mpiEnv, err := resolveTranslation(&params)
	if err != nil {
		return err
	}

	exe, err := executableName()
	if err != nil {
		return fmt.Errorf("launch: %w", err)
	}

	executeArgv := formatExecuteArgv(exe, params)

	argv := append([]string{}, launcherArgv...)
	argv = append(argv, wi4mpiArgvPrefix...)
	argv = append(argv, executeArgv...)
	argv = append(argv, programArgv...)

	if rc.DryRun {
		sylog.Infof("dry-run: %s", argv)
		return nil
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = os.Environ()
	for k, v := range wi4mpiEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return e4serr.NewSubprocessNonZeroError(argv, exitErr.ExitCode(), nil)
		}
		return fmt.Errorf("launch: %w", err)
	}
	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if e, ok := err.(*exec.ExitError); ok {
		*target = e
		return true
	}
	return false
}

// resolveTranslation determines whether the profile's MPI libraries belong
// to a different vendor family than FromFamily, and if so configures
// Wi4MPI, returning its argv prefix and environment.
func resolveTranslation(params *Parameters) ([]string, map[string]string, error) {
	if params.FromFamily == "" {
		return nil, nil, nil
	}

	source, ok := wi4mpi.ByCLIName(params.FromFamily)
	if !ok {
		return nil, nil, e4serr.NewUsageError("unknown MPI family: " + params.FromFamily)
	}

	coreLibs := mpi.FilterCoreLibraries(params.Libraries)
	identified, ok := mpi.DetectFromLibraries(coreLibs)
	if !ok {
		sylog.Warningf("could not determine the profile's own MPI family; skipping translation")
		return nil, nil, nil
	}
	target, ok := wi4mpi.ByVendorName(identified.Vendor)
	if !ok {
		return nil, nil, e4serr.NewTranslationSetupFailureError(
			fmt.Sprintf("unsupported MPI translation: %s -> %s", source.CLIName, identified.Vendor))
	}
	if target.CLIName == source.CLIName {
		return nil, nil, nil
	}

	if !wi4mpi.IsSupported(source, target) {
		return nil, nil, e4serr.NewTranslationSetupFailureError(
			fmt.Sprintf("unsupported MPI translation: %s -> %s", source.CLIName, target.CLIName))
	}

	root := params.Wi4MPI
	if root == "" {
		return nil, nil, e4serr.NewTranslationSetupFailureError("no Wi4MPI installation configured")
	}

	plan, err := wi4mpi.Configure(root, source, target, coreLibs)
	if err != nil {
		return nil, nil, e4serr.NewTranslationSetupFailureError(err.Error())
	}
	return plan.ArgvPrefix, plan.Env, nil
}

// formatExecuteArgv builds the argv the launcher will run once per rank:
// the current executable invoked as its own hidden "execute" subcommand,
// carrying the image, backend, source, libraries and files as flags (the
// Wi4MPI root and FromFamily are not passed).
func formatExecuteArgv(exe string, p Parameters) []string {
	argv := []string{exe, "execute"}
	if p.Image != "" {
		argv = append(argv, "--image", p.Image)
	}
	if p.Backend != "" {
		argv = append(argv, "--backend", p.Backend)
	}
	if p.Source != "" {
		argv = append(argv, "--source", p.Source)
	}
	if len(p.Libraries) > 0 {
		argv = append(argv, "--libraries", joinComma(p.Libraries))
	}
	if len(p.Files) > 0 {
		argv = append(argv, "--files", joinComma(p.Files))
	}
	return argv
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func appendIfMissing(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}
