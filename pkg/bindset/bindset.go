// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package bindset implements the host-into-container bind-mount optimizer:
// given a growing set of bind requests, it keeps the set minimal by
// absorbing requests already covered by a broader existing binding and by
// promoting permissions rather than ever silently demoting them.
package bindset

import "github.com/e4s-cl/e4s-cl-go/pkg/pathutil"

// Mode is the access mode requested for a bind.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Request describes a single host-path-into-container bind.
type Request struct {
	Origin      string
	Destination string
	Mode        Mode
}

// contains reports whether containee is already satisfied by container:
// either they're the exact same bind, or containee's origin and
// destination both lie under container's origin and destination at the
// same relative offset (an "arborescence" match -- binding a parent
// directory covers every path beneath it at the mirrored destination).
func contains(container, containee Request) bool {
	if container.Origin == containee.Origin && container.Destination == containee.Destination {
		return true
	}
	if !pathutil.Contains(container.Origin, containee.Origin) {
		return false
	}
	if !pathutil.Contains(container.Destination, containee.Destination) {
		return false
	}
	return relativeOffset(container.Origin, containee.Origin) == relativeOffset(container.Destination, containee.Destination)
}

func relativeOffset(base, path string) string {
	base = pathutil.Normalize(base)
	path = pathutil.Normalize(path)
	if len(path) <= len(base) {
		return ""
	}
	return path[len(base):]
}

// Set is an optimized, deduplicated collection of bind requests.
type Set []Request

// Add returns a new Set with req folded in according to the containment,
// permission-monotonicity, absorption and subset-demotion rules:
//
//   - if an existing binding already contains req, req is absorbed; if req
//     needs ReadWrite and the containing binding is only ReadOnly, that
//     binding is promoted to ReadWrite rather than adding a redundant,
//     more specific entry (permission-monotonicity never demotes: a
//     ReadWrite binding is never narrowed back to ReadOnly by a later,
//     weaker request for the same or a contained path).
//   - otherwise, every existing binding that req would contain is removed
//     (absorbed into req instead), and req's mode is promoted to
//     ReadWrite if any of the absorbed bindings needed it.
func (s Set) Add(req Request) Set {
	var containing []int
	var contained []int

	for i, existing := range s {
		if contains(existing, req) {
			containing = append(containing, i)
		} else if contains(req, existing) {
			contained = append(contained, i)
		}
	}

	if len(containing) > 0 {
		out := make(Set, len(s))
		copy(out, s)
		if req.Mode == ReadWrite {
			for _, i := range containing {
				if out[i].Mode == ReadOnly {
					out[i].Mode = ReadWrite
				}
			}
		}
		return out
	}

	mode := req.Mode
	containedSet := make(map[int]struct{}, len(contained))
	for _, i := range contained {
		containedSet[i] = struct{}{}
		if s[i].Mode == ReadWrite {
			mode = ReadWrite
		}
	}

	out := make(Set, 0, len(s)+1)
	for i, existing := range s {
		if _, drop := containedSet[i]; drop {
			continue
		}
		out = append(out, existing)
	}
	req.Mode = mode
	return append(out, req)
}

// AddAll folds every request of others into s in order, returning the
// resulting optimized set.
func (s Set) AddAll(others ...Request) Set {
	out := s
	for _, r := range others {
		out = out.Add(r)
	}
	return out
}
