// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package execute implements the execute-child stage: the per-rank process
// that the launch pipeline substitutes for the user's own command. It loads
// the named backend driver, binds every discovered library and file into
// it, sources an optional setup script, and execs the program.
package execute

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/backend"
	"github.com/e4s-cl/e4s-cl-go/pkg/bindset"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

// Options is the execute-child's own argv, produced by the launch pipeline's
// formatExecuteArgv.
type Options struct {
	Backend   string
	Image     string
	Source    string
	Libraries []string
	Files     []string
	Program   []string
}

// importLibraryDir is where every discovered library is bound inside the
// container, regardless of its original host path; files, by contrast, are
// bound at their original absolute path so path-dependent lookups (config
// files referencing siblings, dlopen by absolute path) keep working.
const importLibraryDir = "/lib/e4s-cl"

// Run loads Options.Backend, binds every library and file, builds the
// backend's argv/env, and execs it in place of the current process
// (replacing the execute-child rather than forking a further child, so the
// launcher's own process accounting for the rank stays correct).
func Run(opts Options) error {
	drv, err := backend.New(opts.Backend)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	for _, lib := range opts.Libraries {
		// SecureJoin rather than a plain filepath.Join: a discovered
		// soname is untrusted input by the time it reaches here, and a
		// basename crafted with ".." must not let it escape
		// importLibraryDir.
		dest, err := securejoin.SecureJoin(importLibraryDir, filepath.Base(lib))
		if err != nil {
			return fmt.Errorf("execute: resolving bind destination for %s: %w", lib, err)
		}
		drv.BindFile(lib, dest, bindset.ReadOnly)
	}
	drv.AddLibraryPath(importLibraryDir)

	for _, f := range opts.Files {
		drv.BindFile(f, f, bindset.ReadOnly)
	}

	program := opts.Program
	if opts.Source != "" {
		program = []string{"/bin/sh", "-c", fmt.Sprintf("source %s && exec \"$@\"", shellQuote(opts.Source)), "--"}
		program = append(program, opts.Program...)
	}

	plan, err := drv.Prepare(opts.Image, program)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	sylog.Debugf("execute: argv=%v", plan.Argv)

	env := os.Environ()
	for k, v := range plan.Env {
		env = append(env, k+"="+v)
	}

	exePath := plan.Argv[0]
	if !strings.Contains(exePath, "/") {
		if resolved, err := lookPath(exePath); err == nil {
			exePath = resolved
		}
	}
	return syscall.Exec(exePath, plan.Argv, env)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func lookPath(name string) (string, error) {
	for _, dir := range strings.Split(os.Getenv("PATH"), ":") {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("execute: %q not found in PATH", name)
}
