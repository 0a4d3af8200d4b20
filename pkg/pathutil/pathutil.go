// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package pathutil implements the POSIX path normalization and containment
// checks shared by the bind-set optimizer, the profile store, and the
// backend drivers.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Normalize collapses a path to a canonical POSIX form: slash-separated,
// "." and ".." segments resolved lexically, no trailing slash (except for
// the root), without touching the filesystem (so it works for paths that
// don't exist on this host, e.g. while composing a bind plan).
func Normalize(p string) string {
	if p == "" {
		return p
	}
	cleaned := filepath.ToSlash(filepath.Clean(p))
	if cleaned == "." {
		return "."
	}
	return cleaned
}

// Contains reports whether containee is container itself, or lies under it
// as a path-segment-respecting descendant (not merely a string prefix:
// "/usr/libexec" is not contained by "/usr/lib").
func Contains(container, containee string) bool {
	container = Normalize(container)
	containee = Normalize(containee)

	if container == containee {
		return true
	}
	rel, err := filepath.Rel(container, containee)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// CommonAncestor returns the deepest directory that is an ancestor of (or
// equal to) every path given, used to deduce an MPI install prefix from a
// set of discovered library paths.
func CommonAncestor(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	best := filepath.Dir(Normalize(paths[0]))
	for _, p := range paths[1:] {
		dir := filepath.Dir(Normalize(p))
		best = commonPrefixDir(best, dir)
	}
	return best
}

func commonPrefixDir(a, b string) string {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	var out []string
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			break
		}
		out = append(out, as[i])
	}
	if len(out) == 0 {
		return "/"
	}
	return strings.Join(out, "/")
}
