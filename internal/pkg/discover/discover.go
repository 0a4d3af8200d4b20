// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package discover implements dependency discovery: running a command
// under the syscall tracer, classifying every path it touched into
// libraries or plain files, filtering out MPI-internal pollution, and
// aggregating the result across every rank of a launched job.
package discover

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/launcher"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/relay"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/trace"
	"github.com/e4s-cl/e4s-cl-go/pkg/elfx"
	"github.com/e4s-cl/e4s-cl-go/pkg/mpi"
	"github.com/e4s-cl/e4s-cl-go/pkg/pathutil"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

// rankProgress shows a count of the rank fragments AggregateRanks parses
// once the launcher has exited and its output has been read, unless running
// silent; mirrors the original tool's download progress bar, repurposed for
// an unknown total.
func rankProgress() (*mpb.Progress, *mpb.Bar) {
	if sylog.GetLevel() <= -1 {
		return nil, nil
	}
	p := mpb.New()
	bar := p.AddBar(0,
		mpb.PrependDecorators(decor.Name("aggregating rank reports: ")),
		mpb.AppendDecorators(decor.CountersNoUnit("%d ranks"), decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace)),
	)
	return p, bar
}

// PathSet is the result of discovery: two path lists destined for two
// different treatments by the launch pipeline (libraries get resolved by
// soname inside the container, files get bound at their identical path).
type PathSet struct {
	Libraries []string
	Files     []string
}

// Union merges another PathSet into a fresh deduplicated, sorted PathSet.
func (s *PathSet) Union(other *PathSet) *PathSet {
	libs := map[string]bool{}
	files := map[string]bool{}
	for _, p := range s.Libraries {
		libs[p] = true
	}
	for _, p := range s.Files {
		files[p] = true
	}
	if other != nil {
		for _, p := range other.Libraries {
			libs[p] = true
		}
		for _, p := range other.Files {
			files[p] = true
		}
	}
	return &PathSet{Libraries: sortedKeys(libs), Files: sortedKeys(files)}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// reservedDirectories are always excluded from discovery output, regardless
// of which launcher (if any) is in play: they are either pseudo-filesystems
// or the dynamic linker's own cache, never something worth binding.
var reservedDirectories = []string{"/tmp", "/proc", "/sys", "/dev", "/run", "/etc/ld.so.cache"}

func isReserved(path string, extra []string) bool {
	for _, r := range reservedDirectories {
		if pathutil.Contains(r, path) || path == r {
			return true
		}
	}
	for _, r := range extra {
		if pathutil.Contains(r, path) {
			return true
		}
	}
	return false
}

// Trace runs argv under the syscall tracer and returns every path it
// opened that doesn't fall under a reserved or launcher-owned directory.
func Trace(ctx context.Context, argv []string, launcherReserved []string) (int, []string, error) {
	code, paths, err := trace.New().Trace(ctx, argv)
	if err != nil {
		return code, nil, err
	}
	kept := paths[:0]
	for _, p := range paths {
		if !isReserved(p, launcherReserved) {
			kept = append(kept, p)
		}
	}
	return code, kept, nil
}

// Classify partitions a set of accessed paths into libraries (ELF objects
// that the dynamic linker would itself resolve to that exact path) and
// files (everything else, including ELF objects the linker wouldn't pick
// up under their own soname, e.g. plugins dlopen'd by absolute path).
func Classify(paths []string) (libraries, files []string, err error) {
	for _, p := range paths {
		info, statErr := os.Stat(p)
		if statErr != nil || info.IsDir() {
			continue
		}

		obj, parseErr := elfx.Parse(p)
		if parseErr != nil {
			return nil, nil, parseErr
		}
		if obj == nil {
			files = append(files, p)
			continue
		}

		resolved, ok := resolvesToSelf(obj)
		if ok && resolved {
			libraries = append(libraries, p)
		} else {
			files = append(files, p)
		}
	}
	return libraries, files, nil
}

// resolvesToSelf asks whether the dynamic linker, searching obj's own
// rpath/runpath plus the system search path, would resolve obj's soname
// back to the same file obj was parsed from. If it can't be determined
// either way, ok is false and the caller should treat obj conservatively
// as a file rather than a library.
func resolvesToSelf(obj *elfx.ELF) (resolved bool, ok bool) {
	links, err := elfx.SoLinks(obj.Path)
	if err != nil {
		return false, false
	}
	for _, candidate := range links {
		if elfx.SameFile(candidate, obj.Path) {
			return true, true
		}
	}
	return false, true
}

// FilterPolicy controls how aggressively MPI-internal pollution (libraries
// pulled in only because they happen to be loaded by the MPI runtime
// itself, e.g. its own PMI/UCX/libfabric stack, not the application) is
// stripped from the discovered library set.
type FilterPolicy string

const (
	// FilterAuto drops non-core MPI libraries whose path falls under the
	// launcher's own installation prefix, and keeps everything else.
	FilterAuto FilterPolicy = "auto"
	// FilterOff disables pollution filtering entirely.
	FilterOff FilterPolicy = "off"
	// FilterManual drops the libraries named in an exclude list, except
	// core MPI libraries, which are kept even when listed.
	FilterManual FilterPolicy = "manual"
)

// FilterPollution applies policy to libs, removing libraries judged to be
// MPI-runtime pollution rather than genuine application dependencies. Core
// MPI libraries (libmpi.so*, and vendor equivalents) are never removed:
// those have to ship with the profile for the container's MPI runtime to
// interoperate with the host's.
func FilterPollution(libs []string, launcherPrefix string, policy FilterPolicy, exclude []string) []string {
	core := map[string]bool{}
	for _, l := range mpi.FilterCoreLibraries(libs) {
		core[l] = true
	}

	switch policy {
	case FilterOff:
		return libs
	case FilterManual:
		excluded := map[string]bool{}
		for _, e := range exclude {
			excluded[e] = true
		}
		var kept []string
		for _, l := range libs {
			if core[l] || !excluded[l] {
				kept = append(kept, l)
			}
		}
		return kept
	case FilterAuto:
		fallthrough
	default:
		if launcherPrefix == "" {
			// No launcher prefix to filter against: fail open and keep
			// everything rather than guess.
			return libs
		}
		var kept []string
		for _, l := range libs {
			if core[l] || !pathutil.Contains(launcherPrefix, l) {
				kept = append(kept, l)
			}
		}
		return kept
	}
}

const launcherEnvVar = "__E4S_CL_DETECT_LAUNCHER"

// AggregateRanks re-invokes the current executable as a detect-child once
// per rank through the launcher, collecting each rank's discovered
// dependencies over a relay pipe and unioning them into a single PathSet.
func AggregateRanks(ctx context.Context, launcherArgv, childArgv []string) (*PathSet, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("discover: could not resolve own executable: %w", err)
	}

	pipe, err := relay.NewPipe()
	if err != nil {
		return nil, err
	}

	argv := append(append([]string{}, launcherArgv...), self)
	argv = append(argv, childArgv...)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), launcherEnvVar+"="+launcherArgv[0])
	cmd.Stderr = os.Stderr
	pipe.Attach(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("discover: starting launcher: %w", err)
	}

	data, readErr := pipe.Read()
	waitErr := cmd.Wait()
	if waitErr != nil {
		sylog.Warningf("discover: launcher exited with an error: %v", waitErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("discover: reading rank results: %w", readErr)
	}

	progress, bar := rankProgress()

	result := &PathSet{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), relay.DataSize)
	for scanner.Scan() {
		var fragment PathSet
		if err := json.Unmarshal(scanner.Bytes(), &fragment); err != nil {
			continue
		}
		result = result.Union(&fragment)
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.SetTotal(bar.Current(), true)
		progress.Wait()
	}
	return result, nil
}

// ReservedDirectoriesFor exposes a launcher's own reserved-path list to
// callers assembling the extra directories Trace should ignore.
func ReservedDirectoriesFor(launcherArgv []string) []string {
	return launcher.ReservedDirectories(launcherArgv)
}
