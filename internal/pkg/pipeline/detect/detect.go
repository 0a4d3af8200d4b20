// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package detect implements the "profile detect" pipeline: run a program
// (optionally under an MPI launcher, across every rank), discover its
// dependencies, and save the result into a profile.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/discover"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/launcher"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/relay"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/rt"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/storage"
	"github.com/e4s-cl/e4s-cl-go/pkg/elfx"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

// LauncherEnvVar carries the launcher's argv[0] from a detect-child's
// parent to itself, across the launcher's own exec, so the child knows
// which launcher's reserved directories to exclude without re-parsing argv.
const LauncherEnvVar = "__E4S_CL_DETECT_LAUNCHER"

// Options controls a single detect run.
type Options struct {
	ProfileName string
	Command     []string
}

// Run executes Options.Command (interpreting a leading launcher invocation
// if present), discovers its dependencies, and either prints them as a JSON
// fragment (when running as a detect-child under rt.RoleDetectChild) or
// saves them into the named or selected profile.
func Run(ctx context.Context, rc rt.Context, store *storage.ProfileStore, opts Options) error {
	if len(opts.Command) == 0 {
		return fmt.Errorf("detect: no command given")
	}

	launcherArgv, programArgv := launcher.Interpret(opts.Command)

	var result *discover.PathSet
	var err error
	if len(launcherArgv) > 0 {
		result, err = discover.AggregateRanks(ctx, launcherArgv, append([]string{"profile", "detect"}, programArgv...))
	} else {
		result, err = traceOne(ctx, programArgv, os.Getenv(LauncherEnvVar))
	}
	if err != nil {
		return err
	}

	if rc.Role == rt.RoleDetectChild {
		return emit(result)
	}
	return save(store, opts.ProfileName, result)
}

// traceOne runs a single, non-MPI command under the tracer directly.
func traceOne(ctx context.Context, argv []string, launcherArgv0 string) (*discover.PathSet, error) {
	var reserved []string
	if launcherArgv0 != "" {
		reserved = launcher.ReservedDirectories([]string{launcherArgv0})
	}

	_, paths, err := discover.Trace(ctx, argv, reserved)
	if err != nil {
		return nil, fmt.Errorf("detect: trace: %w", err)
	}

	if len(argv) > 0 {
		if obj, parseErr := elfx.Parse(argv[0]); parseErr == nil && obj != nil {
			sylog.Debugf("detect: traced binary rpath=%v runpath=%v", obj.RPath, obj.RunPath)
		}
	}

	libs, files, err := discover.Classify(paths)
	if err != nil {
		return nil, fmt.Errorf("detect: classify: %w", err)
	}
	return &discover.PathSet{Libraries: libs, Files: files}, nil
}

// emit prints the discovered dependencies as a single JSON line, the
// wire format a detect-child's parent reads back over internal/pkg/relay.
func emit(result *discover.PathSet) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if f, ok := relay.AttachFromEnv(); ok {
		_, err := f.Write(append(data, '\n'))
		return err
	}
	if f, ok := relay.AttachNamedFromEnv(); ok {
		_, err := f.Write(append(data, '\n'))
		return err
	}
	_, err = fmt.Println(string(data))
	return err
}

// InitTempProfileName names the temporary profile created by init, and by
// a bare detect run (no --profile, nothing selected). When it is the
// selected profile, save updates it without the warning given when any
// other selected profile is updated.
const InitTempProfileName = "__e4s_cl_init_temp__"

func save(store *storage.ProfileStore, name string, result *discover.PathSet) error {
	identifier := name
	if identifier == "" {
		selected, err := store.Selected()
		if err != nil {
			identifier = InitTempProfileName
			if _, createErr := store.Create(storage.Profile{Name: identifier}); createErr != nil {
				return fmt.Errorf("detect: creating fallback profile: %w", createErr)
			}
		} else {
			identifier = selected.Name
			if identifier != InitTempProfileName {
				sylog.Warningf("no profile specified: updating currently selected profile %q", identifier)
			}
		}
	} else if _, _, ok := store.Get(identifier); !ok {
		if _, err := store.Create(storage.Profile{Name: identifier}); err != nil {
			return fmt.Errorf("detect: creating profile %q: %w", identifier, err)
		}
	}

	return store.Update(storage.Profile{Libraries: result.Libraries, Files: result.Files}, identifier)
}
