// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package mpi identifies the vendor and version of an MPI installation
// from its runtime library banner, and filters a path list down to the
// core MPI shared objects within it. It merges the two vendor tables the
// original tool carried in parallel (one used for profile auto-naming, one
// used for translation-shim bookkeeping) into a single source of truth;
// detection here never triggers an install of anything -- that decision
// belongs to the caller, not the detector.
package mpi

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/blang/semver/v4"
)

// Identifier names a detected MPI installation.
type Identifier struct {
	Vendor  string
	Version string
}

func (i Identifier) String() string {
	return strings.ReplaceAll(fmt.Sprintf("%s@%s", i.Vendor, i.Version), " ", "_")
}

// extractor pulls a version string out of a raw library-version banner
// already known to contain its vendor's keyword.
type extractor func(banner string) string

type vendorEntry struct {
	keyword   string
	vendor    string
	extractor extractor
}

// vendors is ordered so that more specific keywords (longer, more
// qualified strings like "CRAY MPICH") are tried before more general ones
// that could also match ("MPICH"); Detect additionally re-sorts candidates
// by keyword length before picking the best match, mirroring the original
// tool's "sort by length descending" tie-break.
var vendors = []vendorEntry{
	{"Intel(R) MPI", "Intel MPI", cutBetween("Library", "for")},
	{"Open MPI", "Open MPI", cutAfter("v", ",")},
	{"Spectrum MPI", "Spectrum MPI", cutAfter("v", ",")},
	{"CRAY MPICH", "Cray MPICH", cutAfter("version", "(")},
	{"MVAPICH", "MVAPICH", cutAfter(":", "M")},
	{"MPICH", "MPICH", cutAfter(":", "M")},
}

func cutBetween(start, end string) extractor {
	return func(s string) string {
		parts := strings.SplitN(s, start, 2)
		if len(parts) < 2 {
			return ""
		}
		parts = strings.SplitN(parts[1], end, 2)
		return strings.TrimSpace(parts[0])
	}
}

func cutAfter(start, end string) extractor {
	return func(s string) string {
		parts := strings.SplitN(s, start, 2)
		if len(parts) < 2 {
			return ""
		}
		parts = strings.SplitN(parts[1], end, 2)
		return strings.TrimSpace(parts[0])
	}
}

// IdentifyBanner returns the Identifier described by a raw
// MPI_Get_library_version banner string, or false if no known vendor
// keyword is present.
func IdentifyBanner(banner string) (Identifier, bool) {
	var candidates []vendorEntry
	for _, v := range vendors {
		if strings.Contains(banner, v.keyword) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return Identifier{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].keyword) > len(candidates[j].keyword)
	})
	best := candidates[0]
	version := best.extractor(banner)
	if version == "" {
		return Identifier{}, false
	}
	return Identifier{Vendor: best.vendor, Version: version}, true
}

// versionsCompatible reports whether two version strings name the same
// release for the purpose of cross-library agreement: identical strings
// always match; otherwise, both are parsed leniently as semantic versions
// and compared at the major.minor level, tolerating the patch-level drift
// that can appear between a library's C and Fortran interface builds.
// Strings that don't parse as semver at all fall back to exact equality.
func versionsCompatible(a, b string) bool {
	if a == b {
		return true
	}
	va, erra := semver.ParseTolerant(a)
	vb, errb := semver.ParseTolerant(b)
	if erra != nil || errb != nil {
		return false
	}
	return va.Major == vb.Major && va.Minor == vb.Minor
}

// Detect resolves an Identifier from a set of library-version banners (one
// per discovered MPI library path, typically produced by an external probe
// since pure Go cannot dlopen and call a C ABI entry point directly). It
// returns a match only if every banner agrees on the same vendor and a
// compatible version, since a mix of libraries from different installs
// cannot be unambiguously attributed to a single MPI family.
func Detect(banners map[string]string) (Identifier, bool) {
	var found *Identifier
	for _, banner := range banners {
		id, ok := IdentifyBanner(banner)
		if !ok {
			continue
		}
		if found == nil {
			found = &id
		} else if found.Vendor != id.Vendor || !versionsCompatible(found.Version, id.Version) {
			return Identifier{}, false
		}
	}
	if found == nil {
		return Identifier{}, false
	}
	return *found, true
}

var coreLibraryPattern = regexp.MustCompile(`^libmpi.*\.so`)

// FilterCoreLibraries keeps only paths whose basename looks like a core MPI
// shared object (libmpi*.so*), discarding unrelated libraries swept up by a
// broad dependency trace.
func FilterCoreLibraries(paths []string) []string {
	var out []string
	for _, p := range paths {
		if coreLibraryPattern.MatchString(filepath.Base(p)) {
			out = append(out, p)
		}
	}
	return out
}

// DetectFromLibraries is defined in banner.go, next to ExtractBanner, the
// banner-acquisition step it builds on.
