// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package elfx wraps debug/elf with the soname/NEEDED/RPATH extraction and
// versioned-symlink discovery the dependency-discovery engine needs to
// classify a traced path as a library or a plain file. It does not resolve
// a library's search path the way the dynamic linker does.
package elfx

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

// ELF is a thin, already-closed snapshot of the dynamic-section data we
// care about; callers never hold the underlying *elf.File open.
type ELF struct {
	Path    string
	Machine elf.Machine
	Soname  string
	Needed  []string
	RPath   []string
	RunPath []string
}

// Parse opens path and extracts its dynamic section. It returns (nil, nil)
// -- not an error -- when path doesn't exist or isn't a valid ELF file, so
// callers can unconditionally try every traced path without special-casing
// "not an ELF".
func Parse(path string) (*ELF, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, nil //nolint:nilerr
	}
	defer f.Close()

	out := &ELF{Path: path, Machine: f.Machine}

	if soname, err := f.DynString(elf.DT_SONAME); err == nil && len(soname) > 0 {
		out.Soname = soname[0]
	}
	if needed, err := f.DynString(elf.DT_NEEDED); err == nil {
		out.Needed = needed
	}
	if rpath, err := f.DynString(elf.DT_RPATH); err == nil {
		out.RPath = splitSearchPath(rpath)
	}
	if runpath, err := f.DynString(elf.DT_RUNPATH); err == nil {
		out.RunPath = splitSearchPath(runpath)
	}

	return out, nil
}

func splitSearchPath(entries []string) []string {
	var out []string
	for _, e := range entries {
		out = append(out, strings.Split(e, ":")...)
	}
	return out
}

// IsLibrary reports whether path looks like a shared-object name; it's a
// cheap filter applied before the more expensive elf.Open.
func IsLibrary(path string) bool {
	return strings.Contains(filepath.Base(path), ".so")
}

// SelfMachine returns the ELF machine ID of the currently running process,
// used to filter out libraries built for a foreign architecture.
func SelfMachine() (elf.Machine, error) {
	self, err := elf.Open("/proc/self/exe")
	if err != nil {
		return 0, fmt.Errorf("could not open /proc/self/exe: %w", err)
	}
	defer self.Close()
	return self.Machine, nil
}

// SoLinks returns every versioned symlink in libPath's directory that
// (transitively) resolves to libPath, e.g. libmpi.so -> libmpi.so.12 ->
// libmpi.so.12.0.0 all get bound alongside the real file.
func SoLinks(libPath string) ([]string, error) {
	bareLibPath := strings.SplitN(libPath, ".so", 2)[0]
	candidates, _ := filepath.Glob(bareLibPath + "*")
	if len(candidates) == 0 {
		return nil, fmt.Errorf("library not found: %s", libPath)
	}

	var links []string
	for _, c := range candidates {
		fi, err := os.Lstat(c)
		if err != nil {
			sylog.Warningf("could not stat %s: %v", c, err)
			continue
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			continue
		}
		resolved, err := filepath.EvalSymlinks(c)
		if err != nil {
			sylog.Warningf("could not resolve symlink %s: %v", c, err)
			continue
		}
		if resolved == libPath {
			links = append(links, c)
		}
	}
	return links, nil
}

// SameFile reports whether a and b refer to the same file once symlinks are
// resolved, used by discover.Classify to match a library's symlinks back to
// the file itself.
func SameFile(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ra == rb
}
